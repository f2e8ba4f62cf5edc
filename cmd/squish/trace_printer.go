package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"squish/internal/queue"
)

// tracePrinter streams each record's trace to a writer as entries land.
type tracePrinter struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	printed  map[string]int
	settled  map[string]bool
}

func newTracePrinter(out io.Writer, colorize bool) *tracePrinter {
	return &tracePrinter{
		out:      out,
		colorize: colorize,
		printed:  make(map[string]int),
		settled:  make(map[string]bool),
	}
}

// RecordUpdated implements workflow.Observer.
func (p *tracePrinter) RecordUpdated(snap queue.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Status == queue.StatusQueued || p.settled[snap.ID] {
		return
	}
	last, seen := p.printed[snap.ID]
	if !seen {
		title := fmt.Sprintf("%s (%s)", snap.Original.Name, snap.Profile.Label())
		for _, line := range renderSectionHeader(title, p.colorize) {
			fmt.Fprintln(p.out, line)
		}
	}
	for _, entry := range snap.Trace {
		if entry.Sequence <= last {
			continue
		}
		fmt.Fprintln(p.out, renderTraceLine(entry, p.colorize))
		last = entry.Sequence
	}
	p.printed[snap.ID] = last

	if snap.Done() {
		p.settled[snap.ID] = true
		fmt.Fprintln(p.out, renderStatusLine("Result", recordStatusKind(snap.Status), outcomeSummary(snap), p.colorize))
		fmt.Fprintln(p.out)
	}
}

func outcomeSummary(snap queue.Snapshot) string {
	switch snap.Status {
	case queue.StatusComplete:
		if snap.Result == nil {
			return string(snap.Status)
		}
		return fmt.Sprintf("%s via %s, %.1f%% smaller", snap.Result.Output.Name, snap.Result.Strategy.Name, snap.Result.Savings)
	case queue.StatusOptimizationFailed:
		return "no strategy reduced the file"
	case queue.StatusError:
		if msg := strings.TrimSpace(snap.Error); msg != "" {
			return msg
		}
		return string(snap.Status)
	default:
		return string(snap.Status)
	}
}
