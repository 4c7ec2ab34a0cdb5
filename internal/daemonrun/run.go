package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cardsync/internal/assignments"
	"cardsync/internal/config"
	"cardsync/internal/daemon"
	"cardsync/internal/logging"
	"cardsync/internal/metrics"
	"cardsync/internal/notifications"
	"cardsync/internal/resolver"
	"cardsync/internal/scanqueue"
	"cardsync/internal/services/cardserver"
	"cardsync/internal/telemetry"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the cardsync daemon and blocks until a signal arrives or a
// supervised component fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logPath := logging.RunLogPath(cfg.Paths.LogDir, time.Now())
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := logging.LinkCurrentLog(cfg.Paths.LogDir, logPath); err != nil {
		logger.Warn("unable to update cardsync.log link", logging.Error(err))
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)
	logConfigSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	shutdownTracing, err := telemetry.Init(signalCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("trace exporter shutdown failed", logging.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(registry)
	recorder := metrics.Recorder{}

	store, err := assignments.Open(signalCtx, cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open assignment store", "store_open_failed",
			logging.Error(err),
			logging.String("backend", cfg.Store.Backend),
			logging.String(logging.FieldErrorHint, "check store.backend and store.redis_url"),
			logging.String(logging.FieldImpact, "daemon cannot start"),
		)
		return err
	}

	client, err := cardserver.NewFromConfig(cfg,
		cardserver.WithObserver(recorder.ObserveCardServer),
		cardserver.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("card server client: %w", err)
	}

	queue := scanqueue.New(cfg.Scanner.QueueCapacity)
	notifier := notifications.NewService(cfg)
	indicator := notifications.NewIndicator(notifier, cfg, logger)
	defer indicator.Wait()

	res, err := resolver.New(resolver.SettingsFromConfig(cfg), resolver.Dependencies{
		Transport: client,
		Tags:      queue,
		Store:     store,
		Indicator: indicator,
		Recorder:  recorder,
		Logger:    logger,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create resolver: %w", err)
	}

	var agent *scanqueue.AgentSource
	if cfg.Scanner.AgentURL != "" {
		agent = scanqueue.NewAgentSource(cfg.Scanner.AgentURL, queue, cfg.ReconnectInterval(), recorder.ObserveScan, logger)
	}

	d, err := daemon.New(cfg, daemon.Dependencies{
		Resolver: res,
		Queue:    queue,
		Store:    store,
		Agent:    agent,
		Notifier: notifier,
		Gatherer: registry,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the api bind address and that no other daemon is running"),
			logging.String(logging.FieldImpact, "no tags will be resolved"),
		)
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("cardsync daemon shutting down")
	case <-d.Done():
		logger.Warn("cardsync daemon stopping after component failure")
	}
	d.Stop()
	if err := d.Err(); err != nil {
		indicator.IndicateComponentFailure(cmdCtx, "cardsync daemon", err)
		return err
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	baseURL, err := cfg.CardServerBaseURL()
	if err != nil {
		baseURL = cfg.CardServer.URL
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("card_server", baseURL),
		logging.String("staging_dir", cfg.Paths.StagingDir),
		logging.String("store_backend", cfg.Store.Backend),
		logging.String("api_bind", cfg.API.Bind),
		logging.Bool("api_token_set", cfg.API.Token != ""),
		logging.Bool("agent_enabled", cfg.Scanner.AgentURL != ""),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("tracing_enabled", cfg.Telemetry.OTLPEndpoint != ""),
	)
}
