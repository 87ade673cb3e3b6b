package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

// ActivityRepo keeps events in insertion order.
type ActivityRepo struct {
	mu     sync.RWMutex
	events []domain.ActivityEvent
}

func NewActivityRepo() *ActivityRepo {
	return &ActivityRepo{}
}

func (r *ActivityRepo) Create(_ context.Context, e *domain.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *e
	c.Details = maps.Clone(e.Details)
	r.events = append(r.events, c)
	return nil
}

func (r *ActivityRepo) FindRecent(_ context.Context, key domain.ActivityKey, since time.Time) (*domain.ActivityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.Key() == key && !e.CreatedAt.Before(since) {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("memory.ActivityRepo.FindRecent: %w", domain.ErrNotFound)
}

func (r *ActivityRepo) ListSince(_ context.Context, since time.Time) ([]*domain.ActivityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.ActivityEvent
	for _, e := range r.events {
		if !e.CreatedAt.Before(since) {
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *ActivityRepo) List(_ context.Context, scope *domain.ActivityScope, limit, offset int) ([]*domain.ActivityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return page(r.newestFirst(scope), limit, offset), nil
}

func (r *ActivityRepo) Count(_ context.Context, scope *domain.ActivityScope) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.newestFirst(scope)), nil
}

func (r *ActivityRepo) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := idSet(ids)
	before := len(r.events)
	r.events = slices.DeleteFunc(r.events, func(e domain.ActivityEvent) bool {
		_, ok := drop[e.ID]
		return ok
	})
	return int64(before - len(r.events)), nil
}

// newestFirst must be called with r.mu held.
func (r *ActivityRepo) newestFirst(scope *domain.ActivityScope) []*domain.ActivityEvent {
	match := scopeMatcher(scope)

	out := make([]*domain.ActivityEvent, 0, len(r.events))
	for _, e := range r.events {
		if match(&e) {
			out = append(out, &e)
		}
	}
	slices.SortStableFunc(out, func(a, b *domain.ActivityEvent) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func scopeMatcher(scope *domain.ActivityScope) func(*domain.ActivityEvent) bool {
	if scope == nil {
		return func(*domain.ActivityEvent) bool { return true }
	}

	actors := idSet(scope.ActorIDs)
	projects := idSet(scope.ProjectIDs)
	tasks := idSet(scope.TaskIDs)

	return func(e *domain.ActivityEvent) bool {
		if _, ok := actors[e.ActorID]; ok {
			return true
		}
		switch e.TargetType {
		case domain.TargetProject:
			_, ok := projects[e.TargetID]
			return ok
		case domain.TargetTask:
			_, ok := tasks[e.TargetID]
			return ok
		default:
			return false
		}
	}
}
