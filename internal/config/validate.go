package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCardServer(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateScanner(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"resolver.tick_interval_ms":     c.Resolver.TickIntervalMillis,
	})
}

func (c *Config) validateCardServer() error {
	if _, err := c.CardServerBaseURL(); err != nil {
		return err
	}
	if c.CardServer.Port < 0 || c.CardServer.Port > 65535 {
		return fmt.Errorf("card_server.port %d out of range", c.CardServer.Port)
	}
	if c.CardServer.Username == "" {
		return errors.New("card_server.username must be set (or set CARDSERVER_USERNAME)")
	}
	if c.CardServer.MaxResponseBytes < 64 {
		return errors.New("card_server.max_response_bytes must be at least 64")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.RequestsPerSecond < 0 {
		return errors.New("api.requests_per_second must be >= 0")
	}
	return nil
}

func (c *Config) validateScanner() error {
	if c.Scanner.AgentURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Scanner.AgentURL)
	if err != nil {
		return fmt.Errorf("scanner.agent_url: %w", err)
	}
	switch parsed.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("scanner.agent_url must use ws:// or wss://, got %q", c.Scanner.AgentURL)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "sqlite":
	case "redis":
		if strings.TrimSpace(c.Store.RedisURL) == "" {
			return errors.New("store.redis_url must be set when store.backend is redis")
		}
	default:
		return fmt.Errorf("store.backend must be sqlite or redis, got %q", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.New("telemetry.sample_rate must be between 0 and 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
