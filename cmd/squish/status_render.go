package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"squish/internal/cascade"
	"squish/internal/queue"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
	statusPlain
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiDim    = "\x1b[2m"
)

const (
	statusLabelWidth = 28
	statusIndent     = "  "
	traceKindWidth   = 14
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	return paint(base, statusKindColor(kind), colorize)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	return []string{paint(line, ansiBlue, colorize), paint(rule, ansiBlue, colorize)}
}

// traceKindStatus maps trace kinds onto the status palette.
func traceKindStatus(kind cascade.TraceKind) statusKind {
	switch kind {
	case cascade.TraceSuccess:
		return statusOK
	case cascade.TraceFailure:
		return statusError
	case cascade.TraceStrategyStart:
		return statusWarn
	case cascade.TraceSystem:
		return statusInfo
	default:
		return statusPlain
	}
}

func renderTraceLine(entry queue.TraceEntry, colorize bool) string {
	line := fmt.Sprintf("%s%3d  %-*s %s", statusIndent, entry.Sequence, traceKindWidth, entry.Kind, entry.Text)
	if entry.Kind == cascade.TraceRationale || entry.Kind == cascade.TraceCommand {
		return paint(line, ansiDim, colorize)
	}
	return paint(line, statusKindColor(traceKindStatus(entry.Kind)), colorize)
}

func renderTrace(entries []queue.TraceEntry, colorize bool) []string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, renderTraceLine(entry, colorize))
	}
	return lines
}

func recordStatusKind(status queue.Status) statusKind {
	switch status {
	case queue.StatusComplete:
		return statusOK
	case queue.StatusOptimizationFailed:
		return statusWarn
	case queue.StatusError:
		return statusError
	default:
		return statusInfo
	}
}

func paint(text, color string, colorize bool) string {
	if !colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
