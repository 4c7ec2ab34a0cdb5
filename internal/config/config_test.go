package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cardsync/internal/config"
)

func clearCardServerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CARDSERVER_USERNAME", "CARDSERVER_PASSWORD", "CARDSYNC_API_TOKEN", "REDIS_URL", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPathsAndUsesCardServerDefaults(t *testing.T) {
	clearCardServerEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "cardsync", "cards")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.CardServer.URL != "http://cardserver.local" {
		t.Fatalf("unexpected card server url: %q", cfg.CardServer.URL)
	}
	if cfg.CardServer.Port != 80 {
		t.Fatalf("unexpected card server port: %d", cfg.CardServer.Port)
	}
	if cfg.CardServer.Username != "CardServerUserLogin" || cfg.CardServer.Password != "CardServerPassword" {
		t.Fatalf("unexpected default credentials: %q / %q", cfg.CardServer.Username, cfg.CardServer.Password)
	}
	if cfg.CardServer.MaxResponseBytes != 1000 {
		t.Fatalf("unexpected response cap: %d", cfg.CardServer.MaxResponseBytes)
	}
	if cfg.CardServerDownloadTimeout() != 5*time.Minute {
		t.Fatalf("unexpected download timeout: %s", cfg.CardServerDownloadTimeout())
	}
	if cfg.API.Bind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Fatalf("unexpected store backend: %q", cfg.Store.Backend)
	}
	if cfg.TickInterval() != 50*time.Millisecond {
		t.Fatalf("unexpected tick interval: %s", cfg.TickInterval())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if got := cfg.DatabasePath(); got != filepath.Join(cfg.Paths.LogDir, "assignments.db") {
		t.Fatalf("unexpected database path: %q", got)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearCardServerEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cardsync.toml")

	type payload struct {
		CardServer struct {
			URL      string `toml:"url"`
			Port     int    `toml:"port"`
			Username string `toml:"username"`
		} `toml:"card_server"`
		Scanner struct {
			AgentURL      string `toml:"agent_url"`
			QueueCapacity int    `toml:"queue_capacity"`
		} `toml:"scanner"`
	}
	custom := payload{}
	custom.CardServer.URL = "https://cards.example.com"
	custom.CardServer.Port = 8443
	custom.CardServer.Username = "box"
	custom.Scanner.AgentURL = "ws://localhost:18080/ws"
	custom.Scanner.QueueCapacity = 4
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.CardServer.Username != "box" {
		t.Fatalf("expected username from file, got %q", cfg.CardServer.Username)
	}
	if cfg.Scanner.QueueCapacity != 4 {
		t.Fatalf("expected queue capacity 4, got %d", cfg.Scanner.QueueCapacity)
	}
	base, err := cfg.CardServerBaseURL()
	if err != nil {
		t.Fatalf("CardServerBaseURL: %v", err)
	}
	if base != "https://cards.example.com:8443" {
		t.Fatalf("unexpected base url: %q", base)
	}
}

func TestEnvVarOverridesConfigFileForCredentials(t *testing.T) {
	clearCardServerEnv(t)
	configPath := filepath.Join(t.TempDir(), "cardsync.toml")
	contents := "[card_server]\nusername = \"file-user\"\npassword = \"file-pass\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CARDSERVER_USERNAME", "env-user")
	t.Setenv("CARDSERVER_PASSWORD", "env-pass")
	t.Setenv("CARDSYNC_API_TOKEN", "env-token")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CardServer.Username != "env-user" {
		t.Errorf("expected username from env, got %q", cfg.CardServer.Username)
	}
	if cfg.CardServer.Password != "env-pass" {
		t.Errorf("expected password from env, got %q", cfg.CardServer.Password)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("expected api token from env, got %q", cfg.API.Token)
	}
}

func TestCardServerBaseURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		port int
		want string
	}{
		{name: "default http port omitted", url: "http://cardserver.local", port: 80, want: "http://cardserver.local"},
		{name: "custom port appended", url: "http://cardserver.local", port: 8080, want: "http://cardserver.local:8080"},
		{name: "explicit port in url wins", url: "http://cardserver.local:9000/", port: 8080, want: "http://cardserver.local:9000"},
		{name: "https default", url: "https://cards.example.com", port: 443, want: "https://cards.example.com"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.CardServer.URL = tc.url
			cfg.CardServer.Port = tc.port
			got, err := cfg.CardServerBaseURL()
			if err != nil {
				t.Fatalf("CardServerBaseURL: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "cardserver.local") {
		t.Fatalf("sample config missing default server: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StagingDir, "cardsync") {
		t.Fatalf("expected staging dir to contain cardsync, got %q", cfg.Paths.StagingDir)
	}
	if cfg.CardServer.MaxResponseBytes != 1000 {
		t.Fatalf("unexpected sample response cap: %d", cfg.CardServer.MaxResponseBytes)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis backend without url")
	}

	cfg = config.Default()
	cfg.Store.Backend = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg = config.Default()
	cfg.Scanner.AgentURL = "http://localhost:18080/ws"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-websocket agent url")
	}

	cfg = config.Default()
	cfg.CardServer.URL = "cardserver.local"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for url without scheme")
	}

	cfg = config.Default()
	cfg.Telemetry.SampleRate = 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for sample rate above 1")
	}

	cfg = config.Default()
	cfg.Resolver.TickIntervalMillis = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero tick interval")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
