package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

type NotificationRepo struct {
	mu      sync.RWMutex
	records []domain.NotificationRecord
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{}
}

func (r *NotificationRepo) Create(_ context.Context, n *domain.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, *n)
	return nil
}

func (r *NotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.NotificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.records {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, fmt.Errorf("memory.NotificationRepo.GetByID: %w", domain.ErrNotFound)
}

func (r *NotificationRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*domain.NotificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return page(r.newestFirst(func(n *domain.NotificationRecord) bool { return n.UserID == userID }), limit, offset), nil
}

func (r *NotificationRepo) CountByUser(_ context.Context, userID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.newestFirst(func(n *domain.NotificationRecord) bool { return n.UserID == userID })), nil
}

func (r *NotificationRepo) ListRecent(_ context.Context, limit int) ([]*domain.NotificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return page(r.newestFirst(func(*domain.NotificationRecord) bool { return true }), limit, 0), nil
}

func (r *NotificationRepo) ExistsSince(_ context.Context, kind domain.NotificationKind, entityID uuid.UUID, since time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.records {
		if n.Kind == kind && n.RelatedEntityID == entityID && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *NotificationRepo) MarkRead(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.records {
		if r.records[i].ID == id {
			r.records[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("memory.NotificationRepo.MarkRead: %w", domain.ErrNotFound)
}

func (r *NotificationRepo) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := idSet(ids)
	before := len(r.records)
	r.records = slices.DeleteFunc(r.records, func(n domain.NotificationRecord) bool {
		_, ok := drop[n.ID]
		return ok
	})
	return int64(before - len(r.records)), nil
}

// newestFirst must be called with r.mu held.
func (r *NotificationRepo) newestFirst(match func(*domain.NotificationRecord) bool) []*domain.NotificationRecord {
	var out []*domain.NotificationRecord
	for _, n := range r.records {
		if match(&n) {
			out = append(out, &n)
		}
	}
	slices.SortStableFunc(out, func(a, b *domain.NotificationRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
