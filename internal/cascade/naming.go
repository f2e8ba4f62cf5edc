package cascade

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OptimizedSuffix is appended to the base name of successful outputs.
const OptimizedSuffix = "-optimized"

const fallbackExtension = "jpg"

// OptimizedName derives the output name for a successful strategy.
func OptimizedName(original string, strategy Strategy) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	if base == "" {
		base = original
		ext = ""
	}
	newExt := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(strategy.Parameters.Format), "."))
	if newExt == "" {
		newExt = strings.TrimPrefix(ext, ".")
	}
	if newExt == "" {
		newExt = fallbackExtension
	}
	return base + OptimizedSuffix + "." + newExt
}

// Savings returns the percentage size reduction of output relative to original.
func Savings(originalSize, outputSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	return float64(originalSize-outputSize) * 100 / float64(originalSize)
}

// FormatBytes renders a byte count with binary units, e.g. "1.5 KB".
func FormatBytes(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	value := float64(size)
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}
	formatted := fmt.Sprintf("%.2f", value)
	formatted = strings.TrimRight(strings.TrimRight(formatted, "0"), ".")
	return formatted + " " + units[idx]
}
