package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/metrics"
)

// DefaultDedupWindow is how long an identical event suppresses a repeat.
const DefaultDedupWindow = 5 * time.Second

// ActorResolver looks up the user performing an action.
type ActorResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Publisher fans recorded events out to live subscribers.
// *redis.PubSub satisfies this interface.
type Publisher interface {
	PublishActivity(ctx context.Context, e *domain.ActivityEvent) error
}

// Entry describes one audit event to record.
type Entry struct {
	ActorID    uuid.UUID
	Action     domain.ActivityAction
	TargetType domain.TargetType
	TargetID   uuid.UUID
	Message    string
	Details    map[string]any
}

// RecordResult reports whether a new row was written. Event is the new row,
// or the existing duplicate when Created is false.
type RecordResult struct {
	Created bool
	Event   *domain.ActivityEvent
}

// Recorder appends audit events, suppressing identical events inside the
// dedup window. The check-then-insert is not atomic: two racing identical
// calls may both insert.
type Recorder struct {
	events    domain.ActivityRepository
	actors    ActorResolver
	publisher Publisher
	metrics   *metrics.Metrics
	window    time.Duration
	now       func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithDedupWindow overrides DefaultDedupWindow.
func WithDedupWindow(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.window = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithPublisher publishes every created event.
func WithPublisher(p Publisher) RecorderOption {
	return func(r *Recorder) { r.publisher = p }
}

// WithMetrics counts created and deduplicated events.
func WithMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a Recorder.
func NewRecorder(events domain.ActivityRepository, actors ActorResolver, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		events: events,
		actors: actors,
		window: DefaultDedupWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordIfNew writes e unless an identical event exists inside the dedup
// window. The actor must exist.
func (r *Recorder) RecordIfNew(ctx context.Context, e Entry) (RecordResult, error) {
	if _, err := r.actors.GetByID(ctx, e.ActorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return RecordResult{}, fmt.Errorf("activity.Recorder.RecordIfNew: actor %s: %w", e.ActorID, domain.ErrActorNotFound)
		}
		return RecordResult{}, fmt.Errorf("activity.Recorder.RecordIfNew: resolve actor: %w", err)
	}

	now := r.now()
	event := &domain.ActivityEvent{
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Message:    e.Message,
		Details:    e.Details,
	}

	existing, err := r.events.FindRecent(ctx, event.Key(), now.Add(-r.window))
	switch {
	case err == nil:
		r.metrics.ActivityDeduplicated()
		return RecordResult{Created: false, Event: existing}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return RecordResult{}, fmt.Errorf("activity.Recorder.RecordIfNew: dedup check: %w", err)
	}

	event.ID = uuid.New()
	event.CreatedAt = now
	if err := r.events.Create(ctx, event); err != nil {
		return RecordResult{}, fmt.Errorf("activity.Recorder.RecordIfNew: %w", err)
	}
	r.metrics.ActivityRecorded(string(event.Action), string(event.TargetType))

	if r.publisher != nil {
		if pubErr := r.publisher.PublishActivity(ctx, event); pubErr != nil {
			log.Warn().Err(pubErr).Str("event_id", event.ID.String()).Msg("activity: publish failed")
		}
	}

	return RecordResult{Created: true, Event: event}, nil
}
