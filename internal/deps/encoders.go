package deps

import (
	"os/exec"
	"strings"
)

// EncoderRequirements lists the external encoders the image backend uses for
// formats the Go image libraries cannot write. Both are optional: cascades
// that stay on jpeg, png, or gif never invoke them.
func EncoderRequirements(cwebpBinary, avifencBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "cwebp",
			Command:     cwebpBinary,
			Description: "Required for WebP strategies",
			Optional:    true,
		},
		{
			Name:        "avifenc",
			Command:     avifencBinary,
			Description: "Required for AVIF strategies",
			Optional:    true,
		},
	}
}

// ResolveBinary returns the absolute path of command when it is on PATH (or
// already a path to an executable).
func ResolveBinary(command string) (string, bool) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", false
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return command, false
	}
	return resolved, true
}
