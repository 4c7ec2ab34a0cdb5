package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeCardServer()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeScanner()
	c.normalizeStore()
	c.normalizeLogging()
	c.normalizeTelemetry()
	return nil
}

func (c *Config) normalizeCardServer() {
	c.CardServer.URL = strings.TrimSpace(c.CardServer.URL)
	if c.CardServer.URL == "" {
		c.CardServer.URL = defaultCardServerURL
	}
	if c.CardServer.Port == 0 {
		c.CardServer.Port = defaultCardServerPort
	}
	if value, ok := os.LookupEnv("CARDSERVER_USERNAME"); ok && strings.TrimSpace(value) != "" {
		c.CardServer.Username = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("CARDSERVER_PASSWORD"); ok && value != "" {
		c.CardServer.Password = value
	}
	c.CardServer.Username = strings.TrimSpace(c.CardServer.Username)
	if c.CardServer.RequestTimeout <= 0 {
		c.CardServer.RequestTimeout = defaultRequestTimeout
	}
	if c.CardServer.DownloadTimeout <= 0 {
		c.CardServer.DownloadTimeout = defaultDownloadTimeout
	}
	if c.CardServer.MaxResponseBytes <= 0 {
		c.CardServer.MaxResponseBytes = defaultMaxResponseBytes
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("CARDSYNC_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	if c.API.Burst <= 0 {
		c.API.Burst = defaultAPIBurst
	}
}

func (c *Config) normalizeScanner() {
	c.Scanner.AgentURL = strings.TrimSpace(c.Scanner.AgentURL)
	if c.Scanner.QueueCapacity <= 0 {
		c.Scanner.QueueCapacity = defaultQueueCapacity
	}
	if c.Scanner.ReconnectInterval <= 0 {
		c.Scanner.ReconnectInterval = defaultReconnectInterval
	}
	if c.Resolver.TickIntervalMillis <= 0 {
		c.Resolver.TickIntervalMillis = defaultTickIntervalMillis
	}
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	c.Store.RedisURL = strings.TrimSpace(c.Store.RedisURL)
	if c.Store.RedisURL == "" {
		if value, ok := os.LookupEnv("REDIS_URL"); ok {
			c.Store.RedisURL = strings.TrimSpace(value)
		}
	}
	c.Store.RedisPrefix = strings.Trim(strings.TrimSpace(c.Store.RedisPrefix), ":")
	if c.Store.RedisPrefix == "" {
		c.Store.RedisPrefix = defaultRedisPrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeTelemetry() {
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	if c.Telemetry.OTLPEndpoint == "" {
		if value, ok := os.LookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
			c.Telemetry.OTLPEndpoint = strings.TrimSpace(value)
		}
	}
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultTelemetryService
	}
}
