package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

type ProjectRepo struct {
	mu       sync.RWMutex
	projects map[uuid.UUID]domain.Project
}

func NewProjectRepo() *ProjectRepo {
	return &ProjectRepo{projects: make(map[uuid.UUID]domain.Project)}
}

func (r *ProjectRepo) Create(_ context.Context, p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[p.ID]; ok {
		return fmt.Errorf("memory.ProjectRepo.Create: %w", domain.ErrConflict)
	}
	r.projects[p.ID] = cloneProject(p)
	return nil
}

func (r *ProjectRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, fmt.Errorf("memory.ProjectRepo.GetByID: %w", domain.ErrNotFound)
	}
	out := cloneProject(&p)
	return &out, nil
}

func (r *ProjectRepo) Update(_ context.Context, p *domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[p.ID]; !ok {
		return fmt.Errorf("memory.ProjectRepo.Update: %w", domain.ErrNotFound)
	}
	r.projects[p.ID] = cloneProject(p)
	return nil
}

func (r *ProjectRepo) List(_ context.Context) ([]*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(*domain.Project) bool { return true }), nil
}

func (r *ProjectRepo) ListByManager(_ context.Context, managerID uuid.UUID) ([]*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(p *domain.Project) bool { return p.ManagerID == managerID }), nil
}

func (r *ProjectRepo) ListByMember(_ context.Context, userID uuid.UUID) ([]*domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(p *domain.Project) bool { return p.HasMember(userID) }), nil
}

func (r *ProjectRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return fmt.Errorf("memory.ProjectRepo.Delete: %w", domain.ErrNotFound)
	}
	delete(r.projects, id)
	return nil
}

// collect must be called with r.mu held. Results are ordered by creation.
func (r *ProjectRepo) collect(match func(*domain.Project) bool) []*domain.Project {
	var out []*domain.Project
	for _, p := range r.projects {
		if match(&p) {
			c := cloneProject(&p)
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Project) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func cloneProject(p *domain.Project) domain.Project {
	c := *p
	c.TeamMemberIDs = slices.Clone(p.TeamMemberIDs)
	c.Deliverables = slices.Clone(p.Deliverables)
	c.Objectives = slices.Clone(p.Objectives)
	return c
}
