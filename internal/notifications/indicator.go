package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cardsync/internal/config"
	"cardsync/internal/logging"
)

const deliveryTimeout = 15 * time.Second

// Indicator signals resolver outcomes through a Service. Deliveries run in the
// background; failures are logged and never reach the caller.
type Indicator struct {
	service     Service
	logger      *slog.Logger
	errors      bool
	assignments bool
	wg          sync.WaitGroup
}

// NewIndicator wraps service. The notifications section decides which
// outcomes are pushed.
func NewIndicator(service Service, cfg *config.Config, logger *slog.Logger) *Indicator {
	if service == nil {
		service = noopService{}
	}
	ind := &Indicator{
		service: service,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		errors:  true,
	}
	if cfg != nil {
		ind.errors = cfg.Notifications.Errors
		ind.assignments = cfg.Notifications.Assignments
	}
	return ind
}

// IndicateFailure pushes a failed scan notification.
func (i *Indicator) IndicateFailure(ctx context.Context, tagID string, err error) {
	if !i.errors {
		return
	}
	i.deliver(ctx, "resolution_failed", func(ctx context.Context) error {
		return i.service.NotifyResolutionFailed(ctx, tagID, err)
	})
}

// IndicateAssigned pushes a successful assignment when enabled.
func (i *Indicator) IndicateAssigned(ctx context.Context, tagID, cardType, value string) {
	if !i.assignments {
		return
	}
	i.deliver(ctx, "card_assigned", func(ctx context.Context) error {
		return i.service.NotifyCardAssigned(ctx, tagID, cardType, value)
	})
}

// IndicateComponentFailure pushes an alert when a daemon component such as
// the API server or scanner agent stops with an error.
func (i *Indicator) IndicateComponentFailure(ctx context.Context, component string, err error) {
	if !i.errors || err == nil {
		return
	}
	i.deliver(ctx, "component_failed", func(ctx context.Context) error {
		return i.service.NotifyError(ctx, err, component)
	})
}

// Wait blocks until in-flight deliveries finish.
func (i *Indicator) Wait() {
	i.wg.Wait()
}

func (i *Indicator) deliver(ctx context.Context, event string, send func(context.Context) error) {
	logger := logging.WithContext(ctx, i.logger)
	ctx = context.WithoutCancel(ctx)
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		sendCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		defer cancel()
		if err := send(sendCtx); err != nil {
			logging.WarnWithContext(logger, "notification delivery failed", "notification_failed",
				logging.String("notification", event),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "user was not notified"),
			)
		}
	}()
}
