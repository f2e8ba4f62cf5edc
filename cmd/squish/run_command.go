package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"squish/internal/cascade"
	"squish/internal/compress"
	"squish/internal/config"
	"squish/internal/fileutil"
	"squish/internal/history"
	"squish/internal/logging"
	"squish/internal/metrics"
	"squish/internal/notifications"
	"squish/internal/planner"
	"squish/internal/preflight"
	"squish/internal/queue"
	"squish/internal/workflow"
)

type runOptions struct {
	profile       string
	metricsListen string
	outputDir     string
	jsonOutput    bool
	quiet         bool
}

type runReport struct {
	Records  []recordReport  `json:"records"`
	Rejected []rejectedInput `json:"rejected,omitempty"`
}

type recordReport struct {
	ID            string  `json:"id"`
	File          string  `json:"file"`
	Profile       string  `json:"profile"`
	Status        string  `json:"status"`
	OriginalBytes int64   `json:"original_bytes"`
	OutputPath    string  `json:"output_path,omitempty"`
	OutputBytes   int64   `json:"output_bytes,omitempty"`
	Strategy      string  `json:"strategy,omitempty"`
	Attempt       int     `json:"attempt,omitempty"`
	Savings       float64 `json:"savings,omitempty"`
	Error         string  `json:"error,omitempty"`
}

type rejectedInput struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run <image>...",
		Short: "Compress images through the reduction cascade",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFiles(cmd, ctx, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.profile, "profile", "p", string(cascade.ProfileBalanced), "Quality profile (archive, balanced, super-small)")
	cmd.Flags().StringVar(&opts.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Write optimized files here instead of paths.output_dir")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the run report as JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not stream the cascade trace")
	return cmd
}

func runFiles(cmd *cobra.Command, ctx *commandContext, opts runOptions, paths []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	profile, err := cascade.ParseProfile(opts.profile)
	if err != nil {
		return err
	}
	outputDir, err := resolveOutputDir(cfg, opts.outputDir)
	if err != nil {
		return err
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another squish run is already using %s", cfg.Paths.StateDir)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	logger, err := ctx.logger()
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if failed := preflight.Failed(preflight.RunAll(runCtx, cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			details = append(details, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}

	provider, err := planner.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	backend := compress.New(cfg, logger)

	notifier := notifications.NewService(cfg)
	registry, collectors := metrics.NewRegistry()
	managerOpts := []workflow.ManagerOption{
		workflow.WithObserver(collectors),
		workflow.WithObserver(notifications.NewObserver(notifier, logger)),
	}
	if !opts.jsonOutput && !opts.quiet {
		out := cmd.OutOrStdout()
		managerOpts = append(managerOpts, workflow.WithObserver(newTracePrinter(out, shouldColorize(out))))
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		managerOpts = append(managerOpts, workflow.WithObserver(history.NewRecorder(store, logger)))
	}

	listen := strings.TrimSpace(opts.metricsListen)
	if listen == "" {
		listen = cfg.Metrics.Listen
	}
	if listen != "" {
		addr, err := metrics.Serve(runCtx, listen, registry, logger)
		if err != nil {
			return fmt.Errorf("start metrics endpoint: %w", err)
		}
		if !opts.jsonOutput {
			fmt.Fprintf(cmd.ErrOrStderr(), "Metrics: http://%s/metrics\n", addr)
		}
	}

	manager := workflow.NewManager(provider, backend, logger, managerOpts...)
	report := runReport{}
	for _, path := range paths {
		if _, err := enqueueFile(runCtx, manager, path, profile); err != nil {
			report.Rejected = append(report.Rejected, rejectedInput{Path: path, Error: err.Error()})
			logging.WarnWithContext(logger, "input rejected", "input_rejected",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "pass a readable jpeg, png, gif, webp, or bmp file"),
			)
		}
	}
	if len(report.Rejected) == len(paths) {
		return fmt.Errorf("no usable images among %d input(s)", len(paths))
	}

	started := time.Now()
	notify(logger, func(ctx context.Context) error {
		return notifier.NotifyRunStarted(ctx, len(paths)-len(report.Rejected))
	})
	runErr := manager.RunAll(runCtx)

	summary := notifications.RunSummary{Duration: time.Since(started)}
	names := newOutputNames()
	var writeErrs []error
	for _, snap := range manager.Snapshots() {
		entry, err := reportRecord(snap, outputDir, names, logger)
		if err != nil {
			entry.Error = err.Error()
			writeErrs = append(writeErrs, fmt.Errorf("%s: %w", snap.Original.Name, err))
			logging.ErrorWithContext(logger, "optimized file not written", "output_write_failed",
				logging.String(logging.FieldRecordID, snap.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions and free space in the output directory"),
			)
			summary.Failed++
			report.Records = append(report.Records, entry)
			continue
		}
		switch snap.Status {
		case queue.StatusComplete:
			summary.Complete++
			summary.BytesSaved += entry.OriginalBytes - entry.OutputBytes
		case queue.StatusOptimizationFailed:
			summary.Unreduced++
		case queue.StatusError:
			summary.Failed++
		}
		report.Records = append(report.Records, entry)
	}
	notify(logger, func(ctx context.Context) error {
		return notifier.NotifyRunCompleted(ctx, summary)
	})

	if opts.jsonOutput {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		printRunSummary(cmd, report)
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		failed := fmt.Errorf("%d of %d record(s) failed", summary.Failed, len(report.Records))
		return errors.Join(append([]error{failed}, writeErrs...)...)
	}
	return nil
}

// notify sends a best-effort notification on a fresh context so an
// interrupted run still reports how it ended.
func notify(logger *slog.Logger, send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := send(ctx); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run progress was not pushed to ntfy"),
		)
	}
}

func resolveOutputDir(cfg *config.Config, override string) (string, error) {
	dir := cfg.Paths.OutputDir
	if strings.TrimSpace(override) != "" {
		expanded, err := config.ExpandPath(strings.TrimSpace(override))
		if err != nil {
			return "", fmt.Errorf("resolve output dir: %w", err)
		}
		dir = expanded
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %q: %w", dir, err)
	}
	return dir, nil
}

func enqueueFile(ctx context.Context, manager *workflow.Manager, path string, profile cascade.Profile) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	artifact := cascade.NewArtifact(filepath.Base(path), data).WithPath(path)
	return manager.Enqueue(ctx, artifact, profile)
}

// outputNames hands out output file names that are unique within one run.
// A repeated name gets a numeric suffix before its extension.
type outputNames struct {
	used map[string]int
}

func newOutputNames() *outputNames {
	return &outputNames{used: make(map[string]int)}
}

func (n *outputNames) claim(name string) string {
	next, taken := n.used[name]
	if !taken {
		n.used[name] = 1
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := next + 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, clash := n.used[candidate]; clash {
			continue
		}
		n.used[name] = i
		n.used[candidate] = 1
		return candidate
	}
}

// reportRecord summarizes snap and, for COMPLETE records, writes the output.
// On error the returned entry still describes the record.
func reportRecord(snap queue.Snapshot, outputDir string, names *outputNames, logger *slog.Logger) (recordReport, error) {
	entry := recordReport{
		ID:            snap.ID,
		File:          snap.Original.Name,
		Profile:       string(snap.Profile),
		Status:        string(snap.Status),
		OriginalBytes: snap.Original.Size(),
		Error:         snap.Error,
	}
	if snap.Status != queue.StatusComplete || snap.Result == nil {
		return entry, nil
	}

	output := snap.Result.Output
	name := fileutil.SanitizeFileName(output.Name)
	if name == "" {
		name = cascade.OptimizedName(snap.Original.Name, snap.Result.Strategy)
	}
	target := filepath.Join(outputDir, names.claim(name))
	if snap.Original.Path != "" && sameFile(snap.Original.Path, target) {
		return entry, fmt.Errorf("refusing to overwrite input %s", snap.Original.Path)
	}
	if err := fileutil.WriteVerified(target, output.Bytes(), output.Digest); err != nil {
		return entry, err
	}
	logger.Info("optimized file written",
		logging.String(logging.FieldRecordID, snap.ID),
		logging.String("path", target),
		logging.Int64("bytes", output.Size()),
		logging.String(logging.FieldEventType, "output_written"),
	)

	entry.OutputPath = target
	entry.OutputBytes = output.Size()
	entry.Strategy = snap.Result.Strategy.Name
	entry.Attempt = snap.Result.AttemptIndex
	entry.Savings = snap.Result.Savings
	return entry, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return false
	}
	return absA == absB
}

func printRunSummary(cmd *cobra.Command, report runReport) {
	out := cmd.OutOrStdout()
	for _, rejected := range report.Rejected {
		fmt.Fprintf(out, "Skipped %s: %s\n", rejected.Path, rejected.Error)
	}
	if len(report.Records) == 0 {
		return
	}

	headers := []string{"File", "Status", "Strategy", "Original", "Optimized", "Savings"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(report.Records))
	var totalOriginal, totalOutput int64
	var writeFailures []recordReport
	for _, rec := range report.Records {
		if rec.Status == string(queue.StatusComplete) && rec.OutputPath == "" {
			writeFailures = append(writeFailures, rec)
		}
		optimized := "-"
		savings := "-"
		if rec.OutputPath != "" {
			optimized = cascade.FormatBytes(rec.OutputBytes)
			savings = fmt.Sprintf("%.1f%%", rec.Savings)
			totalOriginal += rec.OriginalBytes
			totalOutput += rec.OutputBytes
		}
		strategy := rec.Strategy
		if strategy == "" {
			strategy = "-"
		}
		rows = append(rows, []string{rec.File, rec.Status, strategy, cascade.FormatBytes(rec.OriginalBytes), optimized, savings})
	}

	var footer []string
	if totalOriginal > 0 {
		footer = []string{
			"Total", "", "",
			cascade.FormatBytes(totalOriginal),
			cascade.FormatBytes(totalOutput),
			fmt.Sprintf("%.1f%%", cascade.Savings(totalOriginal, totalOutput)),
		}
	}
	fmt.Fprintln(out, renderTableWithFooter(headers, rows, footer, aligns))
	for _, rec := range writeFailures {
		fmt.Fprintf(out, "Output not written for %s: %s\n", rec.File, rec.Error)
	}
}
