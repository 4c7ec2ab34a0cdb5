package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"cardsync/internal/logging"
	"cardsync/internal/metrics"
	"cardsync/internal/resolver"
	"cardsync/internal/scanqueue"
)

// scheduler calls Step once per tick. The resolver never blocks waiting for
// scans, so the tick interval bounds idle CPU use.
type scheduler struct {
	resolver Stepper
	queue    *scanqueue.Queue
	interval time.Duration
	recorder metrics.Recorder
	logger   *slog.Logger
}

func (s *scheduler) run(ctx context.Context) error {
	interval := s.interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := s.tick(ctx); err != nil {
			return err
		}
	}
}

func (s *scheduler) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("resolver step panicked",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("resolver step panicked: %v", r)
		}
	}()
	state := s.resolver.Step(ctx)
	s.recorder.SetQueueDepth(s.queue.Len())
	if state != resolver.StateIdle {
		s.logger.Debug("resolver step", logging.String(logging.FieldState, state.String()))
	}
	return nil
}
