package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

type TaskRepo struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]domain.Task
}

func NewTaskRepo() *TaskRepo {
	return &TaskRepo{tasks: make(map[uuid.UUID]domain.Task)}
}

func (r *TaskRepo) Create(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("memory.TaskRepo.Create: %w", domain.ErrConflict)
	}
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *TaskRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("memory.TaskRepo.GetByID: %w", domain.ErrNotFound)
	}
	out := cloneTask(&t)
	return &out, nil
}

func (r *TaskRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := idSet(ids)
	return r.collect(func(t *domain.Task) bool {
		_, ok := want[t.ID]
		return ok
	}), nil
}

func (r *TaskRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(t *domain.Task) bool { return t.ProjectID == projectID }), nil
}

func (r *TaskRepo) ListByProjects(_ context.Context, projectIDs []uuid.UUID) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := idSet(projectIDs)
	return r.collect(func(t *domain.Task) bool {
		_, ok := want[t.ProjectID]
		return ok
	}), nil
}

func (r *TaskRepo) List(_ context.Context) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(*domain.Task) bool { return true }), nil
}

func (r *TaskRepo) Update(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return fmt.Errorf("memory.TaskRepo.Update: %w", domain.ErrNotFound)
	}
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *TaskRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return fmt.Errorf("memory.TaskRepo.Delete: %w", domain.ErrNotFound)
	}
	delete(r.tasks, id)
	return nil
}

// collect must be called with r.mu held. Results are ordered by creation.
func (r *TaskRepo) collect(match func(*domain.Task) bool) []*domain.Task {
	var out []*domain.Task
	for _, t := range r.tasks {
		if match(&t) {
			c := cloneTask(&t)
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Task) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func cloneTask(t *domain.Task) domain.Task {
	c := *t
	c.AssigneeIDs = slices.Clone(t.AssigneeIDs)
	return c
}
