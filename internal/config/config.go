package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// CardServer contains connection settings for the remote card server.
type CardServer struct {
	URL              string `toml:"url"`
	Port             int    `toml:"port"`
	Username         string `toml:"username"`
	Password         string `toml:"password"`
	RequestTimeout   int    `toml:"request_timeout"`
	DownloadTimeout  int    `toml:"download_timeout"`
	MaxResponseBytes int    `toml:"max_response_bytes"`
}

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// API contains the daemon HTTP API settings.
type API struct {
	Bind              string  `toml:"bind"`
	Token             string  `toml:"token"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// Scanner contains settings for tag sources feeding the scan queue.
type Scanner struct {
	AgentURL          string `toml:"agent_url"`
	QueueCapacity     int    `toml:"queue_capacity"`
	ReconnectInterval int    `toml:"reconnect_interval"`
}

// Resolver contains scheduling settings for the resolution state machine.
type Resolver struct {
	TickIntervalMillis int `toml:"tick_interval_ms"`
}

// Store selects the assignment persistence backend.
type Store struct {
	Backend     string `toml:"backend"`
	RedisURL    string `toml:"redis_url"`
	RedisPrefix string `toml:"redis_prefix"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Errors         bool   `toml:"errors"`
	Assignments    bool   `toml:"assignments"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Telemetry contains OpenTelemetry exporter settings.
type Telemetry struct {
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	SampleRate   float64 `toml:"sample_rate"`
	ServiceName  string  `toml:"service_name"`
}

// Config encapsulates all configuration values for cardsync.
//
// Configuration sections by subsystem:
//   - CardServer: remote card server address and credentials
//   - Paths: staging and log directories
//   - API: daemon HTTP bind address, token, and rate limits
//   - Scanner: NFC agent websocket and scan queue sizing
//   - Resolver: step scheduling interval
//   - Store: assignment persistence backend
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
//   - Telemetry: trace export
type Config struct {
	CardServer    CardServer    `toml:"card_server"`
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Scanner       Scanner       `toml:"scanner"`
	Resolver      Resolver      `toml:"resolver"`
	Store         Store         `toml:"store"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Telemetry     Telemetry     `toml:"telemetry"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cardsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CardServerBaseURL joins the configured server URL and port. An explicit port
// inside the URL wins; the scheme default port is omitted.
func (c *Config) CardServerBaseURL() (string, error) {
	parsed, err := url.Parse(strings.TrimRight(c.CardServer.URL, "/"))
	if err != nil {
		return "", fmt.Errorf("card_server.url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("card_server.url %q must include scheme and host", c.CardServer.URL)
	}
	if parsed.Port() == "" && c.CardServer.Port > 0 && !isDefaultPort(parsed.Scheme, c.CardServer.Port) {
		parsed.Host = net.JoinHostPort(parsed.Hostname(), strconv.Itoa(c.CardServer.Port))
	}
	return parsed.String(), nil
}

func isDefaultPort(scheme string, port int) bool {
	switch strings.ToLower(scheme) {
	case "http", "ws":
		return port == 80
	case "https", "wss":
		return port == 443
	}
	return false
}

// CardServerTimeout returns the per-request timeout for card server calls.
func (c *Config) CardServerTimeout() time.Duration {
	return time.Duration(c.CardServer.RequestTimeout) * time.Second
}

// CardServerDownloadTimeout returns the end-to-end bound for one track fetch.
func (c *Config) CardServerDownloadTimeout() time.Duration {
	return time.Duration(c.CardServer.DownloadTimeout) * time.Second
}

// TickInterval returns the delay between resolver steps.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Resolver.TickIntervalMillis) * time.Millisecond
}

// ReconnectInterval returns the delay before redialing the NFC agent.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Scanner.ReconnectInterval) * time.Second
}

// DatabasePath returns the sqlite assignment database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "assignments.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "cardsync.lock")
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "cardsync.pid")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
