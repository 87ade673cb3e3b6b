package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ActivityAction string

const (
	ActionCreate       ActivityAction = "CREATE"
	ActionUpdate       ActivityAction = "UPDATE"
	ActionDelete       ActivityAction = "DELETE"
	ActionPredictDelay ActivityAction = "PREDICT_DELAY"
)

type TargetType string

const (
	TargetProject TargetType = "PROJECT"
	TargetTask    TargetType = "TASK"
	TargetUser    TargetType = "USER"
)

// ActivityEvent is one audit-log row. Rows are immutable once written.
type ActivityEvent struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    uuid.UUID      `json:"user"`
	Action     ActivityAction `json:"action"`
	TargetType TargetType     `json:"target_type"`
	TargetID   uuid.UUID      `json:"target_id"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Key returns the dedup identity of the event.
func (e *ActivityEvent) Key() ActivityKey {
	return ActivityKey{
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Message:    e.Message,
	}
}

// ActivityKey identifies events that are duplicates of each other inside
// the dedup window.
type ActivityKey struct {
	ActorID    uuid.UUID
	Action     ActivityAction
	TargetType TargetType
	TargetID   uuid.UUID
	Message    string
}

// ActivityScope selects events authored by any of ActorIDs or targeting any
// of ProjectIDs/TaskIDs. Matching events are returned once each.
type ActivityScope struct {
	ActorIDs   []uuid.UUID
	ProjectIDs []uuid.UUID
	TaskIDs    []uuid.UUID
}

type ActivityRepository interface {
	Create(ctx context.Context, e *ActivityEvent) error
	// FindRecent returns the newest event matching key created at or after
	// since, or ErrNotFound.
	FindRecent(ctx context.Context, key ActivityKey, since time.Time) (*ActivityEvent, error)
	ListSince(ctx context.Context, since time.Time) ([]*ActivityEvent, error)
	// List returns all events newest first. A nil scope means no filter.
	List(ctx context.Context, scope *ActivityScope, limit, offset int) ([]*ActivityEvent, error)
	Count(ctx context.Context, scope *ActivityScope) (int, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
