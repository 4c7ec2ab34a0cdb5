package daemon_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cardsync/internal/daemon"
	"cardsync/internal/resolver"
	"cardsync/internal/scanqueue"
	"cardsync/internal/testsupport"
)

type countingStepper struct {
	steps atomic.Int64
	queue *scanqueue.Queue
	seen  atomic.Value
}

func (s *countingStepper) Step(context.Context) resolver.State {
	s.steps.Add(1)
	if tag, ok := s.queue.TryReceive(); ok {
		s.seen.Store(tag)
	}
	return resolver.StateIdle
}

func (s *countingStepper) Status() resolver.Status {
	return resolver.Status{State: resolver.StateIdle.String(), Resolved: s.steps.Load()}
}

func newTestDaemon(t *testing.T) (*daemon.Daemon, *countingStepper) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Resolver.TickIntervalMillis = 5
	store := testsupport.MustOpenStore(t, cfg)
	queue := scanqueue.New(4)
	stepper := &countingStepper{queue: queue}
	d, err := daemon.New(cfg, daemon.Dependencies{
		Resolver: stepper,
		Queue:    queue,
		Store:    store,
		Gatherer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, stepper
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonStartStop(t *testing.T) {
	d, stepper := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.StoreBackend != "sqlite" {
		t.Fatalf("store backend = %q, want sqlite", status.StoreBackend)
	}
	if status.QueueCapacity != 4 {
		t.Fatalf("queue capacity = %d, want 4", status.QueueCapacity)
	}
	waitFor(t, "scheduler ticks", func() bool { return stepper.steps.Load() > 2 })

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	select {
	case <-d.Done():
	default:
		t.Fatal("expected Done to be closed after Stop")
	}
	after := stepper.steps.Load()
	time.Sleep(30 * time.Millisecond)
	if stepper.steps.Load() != after {
		t.Fatal("scheduler kept stepping after Stop")
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	build := func() *daemon.Daemon {
		queue := scanqueue.New(1)
		d, err := daemon.New(cfg, daemon.Dependencies{
			Resolver: &countingStepper{queue: queue},
			Queue:    queue,
			Store:    store,
			Gatherer: prometheus.NewRegistry(),
		})
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		return d
	}
	first := build()
	second := build()
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected")
	}
}

func TestDaemonStopsWhenParentContextEnds(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not wind down after context cancel")
	}
	if err := d.Err(); err != nil {
		t.Fatalf("unexpected component error: %v", err)
	}
}

func TestDaemonServesAPIAndFeedsResolver(t *testing.T) {
	d, stepper := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("expected bound api address")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	tagID, err := d.SubmitTag("04:ab:cd:ef", "")
	if err != nil {
		t.Fatalf("SubmitTag: %v", err)
	}
	if tagID != "04ABCDEF" {
		t.Fatalf("tag id = %q", tagID)
	}
	waitFor(t, "resolver to dequeue tag", func() bool {
		seen, _ := stepper.seen.Load().(string)
		return seen == "04ABCDEF"
	})
}

func TestDaemonStartReclaimsPartialDownloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Resolver.TickIntervalMillis = 5
	partial := filepath.Join(cfg.Paths.StagingDir, "Album_04A1B2C3.partial")
	if err := os.MkdirAll(partial, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	kept := filepath.Join(cfg.Paths.StagingDir, "Album_04A1B2C3")
	if err := os.MkdirAll(kept, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	queue := scanqueue.New(4)
	d, err := daemon.New(cfg, daemon.Dependencies{
		Resolver: &countingStepper{queue: queue},
		Queue:    queue,
		Store:    testsupport.MustOpenStore(t, cfg),
		Gatherer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Fatalf("expected partial directory removed, stat err = %v", err)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("expected completed directory kept: %v", err)
	}
}
