package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"cardsync/internal/api"
	"cardsync/internal/assignmentaccess"
	"cardsync/internal/assignments"
	"cardsync/internal/config"
	"cardsync/internal/daemonctl"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	if cfg != nil {
		return cfg.Logging.Level
	}
	return "info"
}

// withClient calls fn with an API client once the daemon has answered.
func (c *commandContext) withClient(ctx context.Context, fn func(*api.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := dialDaemon(ctx, cfg)
	if err != nil {
		return err
	}
	return fn(client)
}

// openAssignments prefers the daemon API and falls back to the store.
func (c *commandContext) openAssignments(ctx context.Context) (assignmentaccess.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return assignmentaccess.Session{}, err
	}
	return assignmentaccess.OpenWithFallback(
		func() (*api.Client, error) { return dialDaemon(ctx, cfg) },
		func() (assignments.Store, error) { return assignments.Open(ctx, cfg) },
	)
}

func dialDaemon(ctx context.Context, cfg *config.Config) (*api.Client, error) {
	if _, ok := daemonctl.StatusSnapshot(ctx, cfg); !ok {
		return nil, wrapDialError(api.ErrAPIUnavailable, cfg.API.Bind)
	}
	return daemonctl.Dialer(cfg)()
}

func wrapDialError(err error, bind string) error {
	if errors.Is(err, api.ErrAPIUnavailable) {
		return fmt.Errorf("connect to daemon: nothing answered on %s; start the daemon with `cardsync start`", bind)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
