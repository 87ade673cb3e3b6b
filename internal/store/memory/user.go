package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

type UserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[uuid.UUID]domain.User)}
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; ok {
		return fmt.Errorf("memory.UserRepo.Create: %w", domain.ErrConflict)
	}
	r.users[u.ID] = *u
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("memory.UserRepo.GetByID: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := idSet(ids)
	return r.collect(func(u *domain.User) bool {
		_, ok := want[u.ID]
		return ok
	}), nil
}

func (r *UserRepo) ListByRole(_ context.Context, role domain.Role) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(u *domain.User) bool { return u.Role == role }), nil
}

func (r *UserRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(*domain.User) bool { return true }), nil
}

func (r *UserRepo) UpdateRole(_ context.Context, id uuid.UUID, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("memory.UserRepo.UpdateRole: %w", domain.ErrNotFound)
	}
	u.Role = role
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return nil
}

// collect must be called with r.mu held. Results are ordered by name.
func (r *UserRepo) collect(match func(*domain.User) bool) []*domain.User {
	var out []*domain.User
	for _, u := range r.users {
		if match(&u) {
			out = append(out, &u)
		}
	}
	slices.SortFunc(out, func(a, b *domain.User) int {
		if c := strings.Compare(a.FullName(), b.FullName()); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}
