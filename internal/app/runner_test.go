package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mixpanelsteve/mp-rolling/internal/logger"
	"github.com/mixpanelsteve/mp-rolling/internal/retention"
	"github.com/mixpanelsteve/mp-rolling/pkg/jobs"
	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
)

func writeConfigFile(t *testing.T, dir, name, raw string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNewRunnerWiresConfiguredFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.JobsFile = writeConfigFile(t, dir, "jobs.yaml", `
jobs:
  - id: games
    event: Game Started
    start_date: "2014-03-15"
    enabled: false
`)
	cfg.PublishersFile = writeConfigFile(t, dir, "publishers.yaml", `
publishers:
  - id: hook
    type: http
    http:
      url: http://127.0.0.1:1/reports
`)
	cfg.StorageType = "bbolt"
	cfg.BBoltPath = filepath.Join(dir, "data", "reports.db")

	runner, err := NewRunner(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if runner.fanout.Size() != 1 {
		t.Fatalf("expected one publisher, got %d", runner.fanout.Size())
	}

	// every job is disabled so Run returns without touching the network
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(cfg.BBoltPath); err != nil {
		t.Fatalf("ledger file not created: %v", err)
	}
}

func TestNewRunnerRejectsMissingPublishers(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.JobsFile = writeConfigFile(t, dir, "jobs.yaml", `
jobs:
  - id: games
    event: Game Started
    start_date: "2014-03-15"
`)
	cfg.PublishersFile = writeConfigFile(t, dir, "publishers.yaml", `
publishers:
  - id: hook
    type: http
    enabled: false
    http:
      url: http://127.0.0.1:1/reports
`)

	if _, err := NewRunner(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error with no enabled publishers")
	}
}

func TestNewRunnerRequiresCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	if _, err := NewRunner(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected credentials error")
	}
}

// countingRequester answers every query with an empty result and cancels after limit calls.
type countingRequester struct {
	mu     sync.Mutex
	calls  int
	limit  int
	cancel context.CancelFunc
	err    error
}

func (c *countingRequester) Request(context.Context, mixpanel.MethodPath, mixpanel.Params) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.limit > 0 && c.calls >= c.limit {
		c.cancel()
	}
	return map[string]any{}, c.err
}

func newLoopRunner(t *testing.T, client retention.Requester, interval time.Duration) *Runner {
	t.Helper()
	reg, err := jobs.NewRegistry([]jobs.Job{{ID: "games", Event: "Game Started", StartDate: "2014-03-19"}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	now := func() time.Time { return time.Date(2014, 3, 20, 12, 0, 0, 0, time.UTC) }
	return &Runner{
		cfg:      testConfig(),
		jobReg:   reg,
		service:  retention.NewService(retention.NewAnalyzer(client, nil, now), nil, nil, nil),
		interval: interval,
		log:      logger.NopLogger{},
	}
}

func TestRunnerLoopsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &countingRequester{limit: 3, cancel: cancel}

	done := make(chan error, 1)
	go func() { done <- newLoopRunner(t, client, 10*time.Millisecond).Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runner did not stop after cancellation")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.calls < 3 {
		t.Fatalf("expected scheduled passes, got %d calls", client.calls)
	}
}

func TestRunnerRunOnceReturnsJobErrors(t *testing.T) {
	client := &countingRequester{err: errors.New("offline")}
	err := newLoopRunner(t, client, 0).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "offline") {
		t.Fatalf("expected job error, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected a single pass, got %d calls", client.calls)
	}
}
