package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cardsync/internal/config"
	"cardsync/internal/logging"
	"cardsync/internal/metadata"
	"cardsync/internal/services"
)

// ErrUnexpectedEvent reports an action result the transition table rejects.
var ErrUnexpectedEvent = errors.New("unexpected event")

// Transport is the card server client used by the resolver.
type Transport interface {
	Post(ctx context.Context, path string, body []byte) (int, error)
	Get(ctx context.Context, path string) (int, error)
	ResponseBody() []byte
	Fetch(ctx context.Context, path string, w io.Writer) (int, int64, error)
	SetToken(token string)
}

// TagSource yields scanned tags without blocking.
type TagSource interface {
	TryReceive() (string, bool)
}

// Putter stores encoded assignment records.
type Putter interface {
	Put(ctx context.Context, tagID, value string) error
}

// Indicator signals resolution results to the user. Implementations must not
// block for long and must not fail.
type Indicator interface {
	IndicateFailure(ctx context.Context, tagID string, err error)
	IndicateAssigned(ctx context.Context, tagID, cardType, value string)
}

// Recorder receives resolver measurements.
type Recorder interface {
	StateChanged(from, to string)
	ResolutionFinished(outcome string, elapsed time.Duration)
	TrackDownloaded(bytes int64)
}

// Settings are the resolver values read once at construction.
type Settings struct {
	Username         string
	Password         string
	StagingDir       string
	MaxResponseBytes int
}

// SettingsFromConfig extracts resolver settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{}
	}
	return Settings{
		Username:         cfg.CardServer.Username,
		Password:         cfg.CardServer.Password,
		StagingDir:       cfg.Paths.StagingDir,
		MaxResponseBytes: cfg.CardServer.MaxResponseBytes,
	}
}

// Dependencies are the collaborators a Resolver drives.
type Dependencies struct {
	Transport Transport
	Tags      TagSource
	Store     Putter
	Indicator Indicator
	Recorder  Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Resolver is the card resolution state machine. Step must be called from a
// single goroutine; Status is safe to call from any goroutine.
type Resolver struct {
	settings  Settings
	transport Transport
	tags      TagSource
	store     Putter
	indicator Indicator
	recorder  Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	session Session

	mu     sync.RWMutex
	status Status
}

// New builds a Resolver in the Idle state.
func New(settings Settings, deps Dependencies) (*Resolver, error) {
	if deps.Transport == nil {
		return nil, errors.New("resolver: transport is required")
	}
	if deps.Tags == nil {
		return nil, errors.New("resolver: tag source is required")
	}
	if deps.Store == nil {
		return nil, errors.New("resolver: store is required")
	}
	if strings.TrimSpace(settings.StagingDir) == "" {
		return nil, errors.New("resolver: staging directory is required")
	}
	if settings.MaxResponseBytes <= 0 {
		settings.MaxResponseBytes = metadata.DefaultLimit
	}
	r := &Resolver{
		settings:  settings,
		transport: deps.Transport,
		tags:      deps.Tags,
		store:     deps.Store,
		indicator: deps.Indicator,
		recorder:  deps.Recorder,
		logger:    logging.NewComponentLogger(deps.Logger, "resolver"),
		tracer:    otel.Tracer("cardsync/resolver"),
		now:       deps.Now,
	}
	if r.indicator == nil {
		r.indicator = nopIndicator{}
	}
	if r.recorder == nil {
		r.recorder = nopRecorder{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.publish()
	return r, nil
}

// State returns the current state.
func (r *Resolver) State() State { return r.session.State }

// Session returns a copy of the working session.
func (r *Resolver) Session() Session { return r.session.clone() }

// Status returns the most recently published status.
func (r *Resolver) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Step performs exactly one state transition and returns the new state.
func (r *Resolver) Step(ctx context.Context) State {
	from := r.session.State
	if from == StateIdle {
		return r.stepIdle(ctx)
	}

	ctx = r.sessionContext(ctx)
	ctx, span := r.tracer.Start(ctx, "resolver."+from.String(), trace.WithAttributes(
		attribute.String("cardsync.tag_id", r.session.TagID),
		attribute.String("cardsync.correlation_id", r.session.CorrelationID),
	))
	defer span.End()

	event, err := r.act(ctx, from)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, services.Outcome(err))
		r.raiseError(ctx, err)
		return r.session.State
	}
	next, ok := Transition(from, event)
	if !ok {
		err := services.Wrap(nil, from.String(), event.String(), "no transition defined", ErrUnexpectedEvent)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected_event")
		r.raiseError(ctx, err)
		return r.session.State
	}
	span.SetAttributes(attribute.String("cardsync.next_state", next.String()))
	if completes(from, event) {
		r.finish(ctx)
		return r.session.State
	}
	r.moveTo(next)
	return next
}

func (r *Resolver) stepIdle(ctx context.Context) State {
	raw, ok := r.tags.TryReceive()
	if !ok {
		return StateIdle
	}
	tagID := strings.ToUpper(strings.TrimSpace(raw))
	r.session = Session{
		TagID:         tagID,
		CorrelationID: uuid.NewString(),
		StartedAt:     r.now(),
	}
	if tagID == "" {
		r.raiseError(r.sessionContext(ctx), services.Wrap(services.ErrTagNotFound, StateIdle.String(), "receive tag", "empty tag id", nil))
		return r.session.State
	}
	r.logger.Info("resolution started",
		logging.String(logging.FieldTagID, tagID),
		logging.String(logging.FieldCorrelationID, r.session.CorrelationID),
		logging.String(logging.FieldEventType, "resolution_started"),
	)
	next, _ := Transition(StateIdle, EventTagReceived)
	r.moveTo(next)
	return next
}

func (r *Resolver) act(ctx context.Context, state State) (Event, error) {
	switch state {
	case StateLogin:
		return r.login(ctx)
	case StateCheckTag:
		return r.checkTag(ctx)
	case StateGatherCardInfo:
		return r.gatherCardInfo(ctx)
	case StateDownloadFiles:
		return r.downloadNextTrack(ctx)
	case StateDownloadFilesFinished:
		return r.assignAudioTracks(ctx)
	default:
		return EventFailed, services.Wrap(nil, state.String(), "step", "unknown state", ErrUnexpectedEvent)
	}
}

func (r *Resolver) sessionContext(ctx context.Context) context.Context {
	ctx = services.WithTagID(ctx, r.session.TagID)
	ctx = services.WithState(ctx, r.session.State.String())
	return services.WithRequestID(ctx, r.session.CorrelationID)
}

func (r *Resolver) moveTo(next State) {
	from := r.session.State
	r.session.State = next
	if from != next {
		r.recorder.StateChanged(from.String(), next.String())
		r.logger.Debug("state changed",
			logging.String(logging.FieldTagID, r.session.TagID),
			logging.String("from", from.String()),
			logging.String("to", next.String()),
		)
	}
	r.publish()
}

// finish closes a successful resolution and returns to Idle.
func (r *Resolver) finish(ctx context.Context) {
	elapsed := r.now().Sub(r.session.StartedAt)
	logging.WithContext(ctx, r.logger).Info("card assigned",
		logging.String("card_type", r.session.Card.Type.String()),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "card_assigned"),
	)
	r.recorder.ResolutionFinished(services.Outcome(nil), elapsed)
	r.record(services.Outcome(nil), nil)
	r.reset()
}

// raiseError is the single failure path. It never retries.
func (r *Resolver) raiseError(ctx context.Context, err error) {
	tagID := r.session.TagID
	state := r.session.State
	elapsed := r.now().Sub(r.session.StartedAt)
	logging.ErrorWithContext(logging.WithContext(ctx, r.logger), "card resolution failed", "resolution_failed",
		logging.String("failed_state", state.String()),
		logging.String("outcome", services.Outcome(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.String(logging.FieldImpact, "tag has no playable assignment"),
	)
	r.indicator.IndicateFailure(ctx, tagID, err)
	r.discardStaging(ctx)
	r.recorder.ResolutionFinished(services.Outcome(err), elapsed)
	r.record(services.Outcome(err), err)
	r.reset()
}

func (r *Resolver) discardStaging(ctx context.Context) {
	staging := r.session.Download.StagingPath
	if staging == "" {
		return
	}
	if err := os.RemoveAll(staging); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to remove staging directory", "staging_cleanup_failed",
			logging.String("path", staging),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the .partial directory manually"),
			logging.String(logging.FieldImpact, "stale partial download left on disk"),
		)
	}
}

func (r *Resolver) record(outcome string, err error) {
	r.mu.Lock()
	r.status.LastTagID = r.session.TagID
	r.status.LastOutcome = outcome
	r.status.LastFinishedAt = r.now()
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
		r.status.Failed++
	} else {
		r.status.Resolved++
	}
	r.mu.Unlock()
}

// reset discards the session and returns to Idle.
func (r *Resolver) reset() {
	from := r.session.State
	r.transport.SetToken("")
	r.session = Session{}
	if from != StateIdle {
		r.recorder.StateChanged(from.String(), StateIdle.String())
	}
	r.publish()
}

func (r *Resolver) publish() {
	s := r.session
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.State = s.State.String()
	r.status.TagID = s.TagID
	r.status.CorrelationID = s.CorrelationID
	r.status.CurrentTrack = s.Download.CurrentTrack
	r.status.TrackCount = s.Download.TrackCount
	r.status.StartedAt = s.StartedAt
	r.status.CardType = ""
	if s.Card.Type != CardInvalid {
		r.status.CardType = s.Card.Type.String()
	}
}

func (r *Resolver) wrap(marker error, operation, message string, err error) error {
	return services.Wrap(marker, r.session.State.String(), operation, message, err)
}

func parseFailure(err error) error {
	return fmt.Errorf("%w: %w", services.ErrParse, err)
}

type nopIndicator struct{}

func (nopIndicator) IndicateFailure(context.Context, string, error)           {}
func (nopIndicator) IndicateAssigned(context.Context, string, string, string) {}

type nopRecorder struct{}

func (nopRecorder) StateChanged(string, string)              {}
func (nopRecorder) ResolutionFinished(string, time.Duration) {}
func (nopRecorder) TrackDownloaded(int64)                    {}
