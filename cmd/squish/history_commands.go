package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"squish/internal/cascade"
	"squish/internal/history"
	"squish/internal/queue"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the journal of finished records",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatusFilter(statuses)
			if err != nil {
				return err
			}
			return ctx.withHistory(func(store *history.Store) error {
				entries, err := store.List(cmd.Context(), 0)
				if err != nil {
					return err
				}
				entries = filterEntries(entries, filter, limit)
				if jsonOutput {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "History is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "File", "Profile", "Status", "Original", "Optimized", "Savings", "Finished"},
					buildHistoryRows(entries),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only show these statuses (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one journaled record with its trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withHistory(func(store *history.Store) error {
				entry, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("record %s not found in history", id)
				}
				if jsonOutput {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				printHistoryEntry(out, *entry, shouldColorize(out))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the entry as JSON")
	return cmd
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count journaled records per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if len(stats) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "History is empty")
					return nil
				}
				rows := make([][]string, 0, len(stats))
				for _, status := range queue.AllStatuses() {
					if count, ok := stats[status]; ok {
						rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every journaled record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s) from history\n", removed)
				return nil
			})
		},
	}
}

func parseStatusFilter(values []string) (map[queue.Status]bool, error) {
	if len(values) == 0 {
		return nil, nil
	}
	filter := make(map[queue.Status]bool, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		filter[status] = true
	}
	return filter, nil
}

func filterEntries(entries []history.Entry, filter map[queue.Status]bool, limit int) []history.Entry {
	out := make([]history.Entry, 0, len(entries))
	for _, entry := range entries {
		if filter != nil && !filter[entry.Status] {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func buildHistoryRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		optimized, savings := "-", "-"
		if entry.Status == queue.StatusComplete {
			optimized = cascade.FormatBytes(entry.OutputBytes)
			savings = fmt.Sprintf("%.1f%%", entry.Savings)
		}
		rows = append(rows, []string{
			entry.ID,
			entry.ArtifactName,
			string(entry.Profile),
			string(entry.Status),
			cascade.FormatBytes(entry.OriginalBytes),
			optimized,
			savings,
			formatTimestamp(entry.FinishedAt),
		})
	}
	return rows
}

func printHistoryEntry(out io.Writer, entry history.Entry, colorize bool) {
	for _, line := range renderSectionHeader(fmt.Sprintf("%s (%s)", entry.ArtifactName, entry.Profile.Label()), colorize) {
		fmt.Fprintln(out, line)
	}

	detail := func(label, value string) {
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, label+":", value)
	}
	detail("ID", entry.ID)
	fmt.Fprintln(out, renderStatusLine("Status", recordStatusKind(entry.Status), string(entry.Status), colorize))
	detail("Original", cascade.FormatBytes(entry.OriginalBytes))
	if entry.Status == queue.StatusComplete {
		detail("Optimized", fmt.Sprintf("%s (%s)", entry.OutputName, cascade.FormatBytes(entry.OutputBytes)))
		detail("Strategy", fmt.Sprintf("%s (attempt %d)", entry.StrategyName, entry.AttemptIndex))
		detail("Savings", fmt.Sprintf("%.1f%%", entry.Savings))
	}
	if entry.ErrorMessage != "" {
		detail("Error", entry.ErrorMessage)
	}
	if !entry.StartedAt.IsZero() && !entry.FinishedAt.IsZero() {
		detail("Duration", entry.FinishedAt.Sub(entry.StartedAt).Round(time.Millisecond).String())
	}
	detail("Finished", formatTimestamp(entry.FinishedAt))

	if len(entry.Trace) == 0 {
		return
	}
	fmt.Fprintln(out)
	lines := make([]queue.TraceEntry, len(entry.Trace))
	for i, line := range entry.Trace {
		lines[i] = queue.TraceEntry{Sequence: line.Sequence, Kind: line.Kind, Text: line.Text, At: line.At}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Sequence < lines[j].Sequence })
	for _, line := range renderTrace(lines, colorize) {
		fmt.Fprintln(out, line)
	}
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04:05")
}
