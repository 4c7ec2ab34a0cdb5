package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"cardsync/internal/assignments"
	"cardsync/internal/config"
	"cardsync/internal/logging"
	"cardsync/internal/metrics"
	"cardsync/internal/notifications"
	"cardsync/internal/resolver"
	"cardsync/internal/scanqueue"
	"cardsync/internal/staging"
)

// Stepper advances the resolution state machine.
type Stepper interface {
	Step(ctx context.Context) resolver.State
	Status() resolver.Status
}

// Dependencies are the collaborators the daemon supervises.
type Dependencies struct {
	Resolver Stepper
	Queue    *scanqueue.Queue
	Store    assignments.Store
	// Agent is optional; scans may arrive through the API only.
	Agent    *scanqueue.AgentSource
	Notifier notifications.Service
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Daemon coordinates the scan sources, the resolver scheduler, and the API
// server, and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	resolver Stepper
	queue    *scanqueue.Queue
	store    assignments.Store
	agent    *scanqueue.AgentSource
	notifier notifications.Service
	gatherer prometheus.Gatherer
	recorder metrics.Recorder

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	api       *apiServer
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	StartedAt        time.Time
	LockFilePath     string
	StoreBackend     string
	DatabasePath     string
	StagingDir       string
	StagingFreeBytes uint64
	QueueLength      int
	QueueCapacity    int
	AgentURL         string
	Resolver         resolver.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Dependencies) (*Daemon, error) {
	if cfg == nil || deps.Resolver == nil || deps.Queue == nil || deps.Store == nil {
		return nil, errors.New("daemon requires config, resolver, queue, and store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	lockPath := cfg.LockPath()
	done := make(chan struct{})
	close(done)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		resolver: deps.Resolver,
		queue:    deps.Queue,
		store:    deps.Store,
		agent:    deps.Agent,
		notifier: notifier,
		gatherer: gatherer,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		done:     done,
	}, nil
}

// Start acquires the daemon lock, binds the API listener, and launches the
// scheduler and scan sources. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cardsync daemon instance is already running")
	}

	// No resolution is in flight yet, so every partial directory is orphaned.
	if result := staging.CleanPartial(ctx, d.cfg.Paths.StagingDir, 0, d.logger); len(result.Removed) > 0 {
		d.logger.Info("reclaimed partial downloads",
			logging.Int("removed", len(result.Removed)),
			logging.Int("failed", len(result.Errors)),
		)
	}

	api, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	if err := api.listen(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	sched := &scheduler{
		resolver: d.resolver,
		queue:    d.queue,
		interval: d.cfg.TickInterval(),
		recorder: d.recorder,
		logger:   d.logger,
	}
	group.Go(func() error { return sched.run(groupCtx) })
	group.Go(func() error { return api.serve(groupCtx) })
	if d.agent != nil {
		group.Go(func() error { return d.agent.Run(groupCtx) })
	}

	done := make(chan struct{})
	d.api = api
	d.cancel = cancel
	d.done = done
	d.err = nil
	d.startedAt = time.Now()
	d.running.Store(true)

	go func() {
		err := group.Wait()
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		if err != nil {
			logging.ErrorWithContext(d.logger, "daemon component failed", "daemon_component_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the api bind address and agent url"),
				logging.String(logging.FieldImpact, "daemon is shutting down"),
			)
		}
		close(done)
	}()

	d.logger.Info("cardsync daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", api.Addr()),
		logging.Bool("agent", d.agent != nil),
	)
	return nil
}

// Stop cancels background work, waits for it to drain, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	done := d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.api = nil
	d.running.Store(false)
	d.logger.Info("cardsync daemon stopped")
}

// Close stops the daemon and releases the assignment store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Done is closed once every supervised component has returned.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Err reports the first component failure, if any.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// APIAddr returns the bound API address, or "" when not running.
func (d *Daemon) APIAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api == nil {
		return ""
	}
	return d.api.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockFilePath:  d.lockPath,
		StoreBackend:  d.store.Backend(),
		StagingDir:    d.cfg.Paths.StagingDir,
		QueueLength:   d.queue.Len(),
		QueueCapacity: d.queue.Cap(),
		AgentURL:      d.cfg.Scanner.AgentURL,
		Resolver:      d.resolver.Status(),
	}
	d.mu.Lock()
	status.StartedAt = d.startedAt
	d.mu.Unlock()
	if status.StoreBackend == "sqlite" {
		status.DatabasePath = d.cfg.DatabasePath()
	}
	if free, err := freeBytes(d.cfg.Paths.StagingDir); err == nil {
		status.StagingFreeBytes = free
	} else {
		d.logger.Debug("staging free space unavailable", logging.Error(err))
	}
	return status
}

// SubmitTag queues a scan that arrived through the API.
func (d *Daemon) SubmitTag(raw, source string) (string, error) {
	if source == "" {
		source = "api"
	}
	return scanqueue.Submit(d.queue, raw, source, d.recorder.ObserveScan, d.logger)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
