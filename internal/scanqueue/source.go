package scanqueue

import (
	"errors"
	"log/slog"

	"cardsync/internal/logging"
	"cardsync/internal/services"
)

// Scan results reported to observers.
const (
	ResultQueued    = "queued"
	ResultInvalid   = "invalid"
	ResultQueueFull = "queue_full"
)

// Pusher accepts normalized tag identifiers.
type Pusher interface {
	Push(tagID string) error
}

// ScanObserver is told about every scan a source handles.
type ScanObserver func(source, result string)

// Submit normalizes raw, pushes it, and reports the outcome. It is shared by
// every scan source so validation and logging stay uniform.
func Submit(q Pusher, raw, source string, observe ScanObserver, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	report := func(result string) {
		if observe != nil {
			observe(source, result)
		}
	}
	tagID, err := NormalizeTagID(raw)
	if err != nil {
		report(ResultInvalid)
		logger.Debug("scan rejected",
			logging.String("source", source),
			logging.String("raw_uid", raw),
			logging.Error(err),
		)
		return "", err
	}
	if err := q.Push(tagID); err != nil {
		if errors.Is(err, services.ErrQueueFull) {
			report(ResultQueueFull)
		}
		logging.WarnWithContext(logger, "scan dropped", "scan_dropped",
			logging.String(logging.FieldTagID, tagID),
			logging.String("source", source),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "scan again once the current card finishes"),
			logging.String(logging.FieldImpact, "tag was not resolved"),
		)
		return tagID, err
	}
	report(ResultQueued)
	logger.Info("tag queued",
		logging.String(logging.FieldTagID, tagID),
		logging.String("source", source),
		logging.String(logging.FieldEventType, "tag_queued"),
	)
	return tagID, nil
}
