// Package memory implements the domain repositories in process memory. It
// backs the test suites and ORKESTRA_STORE=memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

type Store struct {
	users         *UserRepo
	projects      *ProjectRepo
	tasks         *TaskRepo
	activity      *ActivityRepo
	notifications *NotificationRepo
}

func New() *Store {
	return &Store{
		users:         NewUserRepo(),
		projects:      NewProjectRepo(),
		tasks:         NewTaskRepo(),
		activity:      NewActivityRepo(),
		notifications: NewNotificationRepo(),
	}
}

func (s *Store) Users() domain.UserRepository                 { return s.users }
func (s *Store) Projects() domain.ProjectRepository           { return s.projects }
func (s *Store) Tasks() domain.TaskRepository                 { return s.tasks }
func (s *Store) Activity() domain.ActivityRepository          { return s.activity }
func (s *Store) Notifications() domain.NotificationRepository { return s.notifications }

// SeedAdmin creates an Admin with the given email so a fresh store has
// someone to issue a token for.
func (s *Store) SeedAdmin(ctx context.Context, email string) (*domain.User, error) {
	now := time.Now()
	u := &domain.User{
		ID:        uuid.New(),
		FirstName: "Admin",
		Email:     email,
		Role:      domain.RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("memory.Store.SeedAdmin: %w", err)
	}
	return u, nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// page applies offset/limit to items. A non-positive limit means no limit.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[max(offset, 0):]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return slices.Clone(items)
}
