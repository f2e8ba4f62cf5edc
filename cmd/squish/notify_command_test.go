package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"squish/internal/testsupport"
)

type ntfyTitles struct {
	mu     sync.Mutex
	titles []string
}

func (n *ntfyTitles) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		n.titles = append(n.titles, r.Header.Get("Title"))
		n.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
}

func (n *ntfyTitles) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.titles...)
}

func TestRunSendsNotifications(t *testing.T) {
	env := setupCLITestEnv(t)
	titles := &ntfyTitles{}
	server := httptest.NewServer(titles.handler())
	defer server.Close()

	env.cfg.Notifications.NtfyTopic = server.URL
	configPath := filepath.Join(env.baseDir, "notify.toml")
	writeTestConfig(t, configPath, env.cfg)

	noisy := writeInput(t, t.TempDir(), "noise.png", testsupport.NoisyPNG(t, 32, 32))
	if _, _, err := runCLI(t, []string{"run", "--quiet", noisy}, configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := titles.snapshot()
	if len(got) != 2 || got[0] != "squish - Run Started" || got[1] != "squish - Run Complete" {
		t.Fatalf("unexpected notifications %v", got)
	}
}

func TestTestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify without topic: %v", err)
	}
	requireContains(t, out, "nothing to send")

	titles := &ntfyTitles{}
	server := httptest.NewServer(titles.handler())
	defer server.Close()
	env.cfg.Notifications.NtfyTopic = server.URL
	configPath := filepath.Join(env.baseDir, "notify.toml")
	writeTestConfig(t, configPath, env.cfg)

	out, _, err = runCLI(t, []string{"test-notify"}, configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if got := titles.snapshot(); len(got) != 1 || got[0] != "squish - Test" {
		t.Fatalf("unexpected notifications %v", got)
	}
}

func TestRunNotifiesCompletionWhenAnOutputWriteFails(t *testing.T) {
	env := setupCLITestEnv(t)
	titles := &ntfyTitles{}
	server := httptest.NewServer(titles.handler())
	defer server.Close()

	env.cfg.Notifications.NtfyTopic = server.URL
	configPath := filepath.Join(env.baseDir, "notify.toml")
	writeTestConfig(t, configPath, env.cfg)

	noisy := writeInput(t, t.TempDir(), "noise.png", testsupport.NoisyPNG(t, 32, 32))
	if err := os.MkdirAll(filepath.Join(env.cfg.Paths.OutputDir, "noise-optimized.jpeg", "keep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, []string{"run", "--quiet", noisy}, configPath); err == nil {
		t.Fatal("expected the failed write to fail the run")
	}

	got := titles.snapshot()
	if len(got) != 2 || !strings.HasPrefix(got[1], "squish - Run Complete") {
		t.Fatalf("unexpected notifications %v", got)
	}
}
