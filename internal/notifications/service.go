package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"squish/internal/cascade"
	"squish/internal/config"
)

const userAgent = "squish/0.1"

// RunSummary describes a finished `squish run`.
type RunSummary struct {
	Complete   int
	Unreduced  int
	Failed     int
	BytesSaved int64
	Duration   time.Duration
}

// Service defines the notification surface used by the CLI.
type Service interface {
	NotifyRunStarted(ctx context.Context, count int) error
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
	NotifyRecordFailed(ctx context.Context, name, message string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, count int) error {
	return n.send(ctx, payload{
		title:   "squish - Run Started",
		message: fmt.Sprintf("Compressing %d image(s)", count),
		tags:    []string{"squish", "run", "started"},
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, summary RunSummary) error {
	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "squish - Run Complete"
	tags := []string{"squish", "run", "completed"}
	if summary.Failed > 0 {
		title = "squish - Run Complete (with errors)"
		tags = append(tags, "warning")
	}
	message := fmt.Sprintf("%d reduced, %d unchanged, %d failed in %s; saved %s",
		summary.Complete,
		summary.Unreduced,
		summary.Failed,
		duration,
		cascade.FormatBytes(summary.BytesSaved),
	)
	return n.send(ctx, payload{title: title, message: message, tags: tags})
}

func (n *ntfyService) NotifyRecordFailed(ctx context.Context, name, message string) error {
	name = strings.TrimSpace(name)
	message = strings.TrimSpace(message)
	if message == "" {
		message = "unknown error"
	}
	return n.send(ctx, payload{
		title:    "squish - Error",
		message:  fmt.Sprintf("Error processing %s: %s", name, message),
		tags:     []string{"squish", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "squish - Test",
		message:  "Notification system test",
		tags:     []string{"squish", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, int) error              { return nil }
func (noopService) NotifyRunCompleted(context.Context, RunSummary) error     { return nil }
func (noopService) NotifyRecordFailed(context.Context, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
