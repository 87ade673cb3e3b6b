package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one page of the audit log visible to a requester.
type Page struct {
	Events     []*domain.ActivityEvent
	Total      int
	Page       int
	TotalPages int
}

// QueryService reads the audit log scoped to the requester's role.
type QueryService struct {
	events   domain.ActivityRepository
	users    domain.UserRepository
	projects domain.ProjectRepository
	tasks    domain.TaskRepository
}

func NewQueryService(
	events domain.ActivityRepository,
	users domain.UserRepository,
	projects domain.ProjectRepository,
	tasks domain.TaskRepository,
) *QueryService {
	return &QueryService{
		events:   events,
		users:    users,
		projects: projects,
		tasks:    tasks,
	}
}

// List returns events newest first. Team Members are refused outright.
func (s *QueryService) List(ctx context.Context, requesterID uuid.UUID, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("activity.QueryService.List: requester: %w", err)
	}
	if requester.Role == domain.RoleTeamMember {
		return nil, fmt.Errorf("activity.QueryService.List: role %q: %w", requester.Role, domain.ErrForbidden)
	}

	scope, err := s.Scope(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("activity.QueryService.List: %w", err)
	}

	total, err := s.events.Count(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("activity.QueryService.List: count: %w", err)
	}
	events, err := s.events.List(ctx, scope, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("activity.QueryService.List: %w", err)
	}

	return &Page{
		Events:     events,
		Total:      total,
		Page:       page,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Scope computes the event filter for u. Admins get nil, meaning every event.
func (s *QueryService) Scope(ctx context.Context, u *domain.User) (*domain.ActivityScope, error) {
	if u.Role == domain.RoleAdmin {
		return nil, nil //nolint:nilnil // nil scope is "no filter"
	}

	var (
		projects []*domain.Project
		err      error
	)
	if u.Role == domain.RoleProjectManager {
		projects, err = s.projects.ListByManager(ctx, u.ID)
	} else {
		projects, err = s.projects.ListByMember(ctx, u.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}

	scope := &domain.ActivityScope{ActorIDs: []uuid.UUID{u.ID}}
	if len(projects) == 0 {
		return scope, nil
	}

	scope.ProjectIDs = make([]uuid.UUID, 0, len(projects))
	for _, p := range projects {
		scope.ProjectIDs = append(scope.ProjectIDs, p.ID)
	}

	tasks, err := s.tasks.ListByProjects(ctx, scope.ProjectIDs)
	if err != nil {
		return nil, fmt.Errorf("tasks: %w", err)
	}
	scope.TaskIDs = make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		scope.TaskIDs = append(scope.TaskIDs, t.ID)
	}

	return scope, nil
}

// Purge deletes events by id. Only Admins may purge.
func (s *QueryService) Purge(ctx context.Context, requesterID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("activity.QueryService.Purge: no ids: %w", domain.ErrValidation)
	}

	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return 0, fmt.Errorf("activity.QueryService.Purge: requester: %w", err)
	}
	if requester.Role != domain.RoleAdmin {
		return 0, fmt.Errorf("activity.QueryService.Purge: role %q: %w", requester.Role, domain.ErrForbidden)
	}

	n, err := s.events.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("activity.QueryService.Purge: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("activity.QueryService.Purge: %w", domain.ErrNotFound)
	}
	return n, nil
}

