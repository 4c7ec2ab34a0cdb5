package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus"

	"cardsync/internal/assignments"
	"cardsync/internal/config"
	"cardsync/internal/daemon"
	"cardsync/internal/resolver"
	"cardsync/internal/scanqueue"
	"cardsync/internal/testsupport"
)

// recordingStepper drains the scan queue without talking to a card server.
type recordingStepper struct {
	queue *scanqueue.Queue

	mu   sync.Mutex
	seen []string
}

func (s *recordingStepper) Step(context.Context) resolver.State {
	if tag, ok := s.queue.TryReceive(); ok {
		s.mu.Lock()
		s.seen = append(s.seen, tag)
		s.mu.Unlock()
	}
	return resolver.StateIdle
}

func (s *recordingStepper) Status() resolver.Status {
	return resolver.Status{State: resolver.StateIdle.String(), Resolved: 2, Failed: 1, LastTagID: "04AABB", LastOutcome: "assigned"}
}

func (s *recordingStepper) tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

type cliTestEnv struct {
	cfg        *config.Config
	store      assignments.Store
	daemon     *daemon.Daemon
	stepper    *recordingStepper
	configPath string
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CARDSERVER_USERNAME", "CARDSERVER_PASSWORD", "CARDSYNC_API_TOKEN", "REDIS_URL", "OTEL_EXPORTER_OTLP_ENDPOINT", "NO_COLOR"} {
		t.Setenv(key, "")
	}
}

// setupCLITestEnv writes a config file and, when withDaemon is set, starts an
// in-process daemon whose API address is recorded in that file.
func setupCLITestEnv(t *testing.T, withDaemon bool) *cliTestEnv {
	t.Helper()
	clearEnv(t)
	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	cfg.Resolver.TickIntervalMillis = 5
	env := &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: filepath.Join(homeDir, ".config", "cardsync", "config.toml"),
	}

	if withDaemon {
		queue := scanqueue.New(4)
		env.stepper = &recordingStepper{queue: queue}
		d, err := daemon.New(cfg, daemon.Dependencies{
			Resolver: env.stepper,
			Queue:    queue,
			Store:    env.store,
			Gatherer: prometheus.NewRegistry(),
		})
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("daemon.Start: %v", err)
		}
		t.Cleanup(d.Stop)
		env.daemon = d
		cfg.API.Bind = d.APIAddr()
	} else {
		cfg.API.Bind = "127.0.0.1:1"
	}

	writeTestConfig(t, env.configPath, cfg)
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
