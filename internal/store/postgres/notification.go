package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/orkestra/internal/domain"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

const notificationColumns = `id, user_id, channel, recipient, subject, body, status, kind,
		related_entity_id, read, created_at`

func (r *NotificationRepo) Create(ctx context.Context, n *domain.NotificationRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.UserID, n.Channel, n.Recipient, n.Subject, n.Body, n.Status, n.Kind,
		n.RelatedEntityID, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("notificationRepo.Create: %w", err)
	}

	return nil
}

func (r *NotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.NotificationRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`,
		id,
	)
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("notificationRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("notificationRepo.GetByID: %w", err)
	}

	return n, nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.NotificationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		userID, limitOrAll(limit), offset,
	)
	if err != nil {
		return nil, fmt.Errorf("notificationRepo.ListByUser: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows, "notificationRepo.ListByUser")
}

func (r *NotificationRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("notificationRepo.CountByUser: %w", err)
	}

	return n, nil
}

func (r *NotificationRepo) ListRecent(ctx context.Context, limit int) ([]*domain.NotificationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 ORDER BY created_at DESC, id
		 LIMIT $1`,
		limitOrAll(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("notificationRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows, "notificationRepo.ListRecent")
}

func (r *NotificationRepo) ExistsSince(ctx context.Context, kind domain.NotificationKind, entityID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM notifications
		     WHERE kind = $1 AND related_entity_id = $2 AND created_at >= $3
		 )`,
		kind, entityID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("notificationRepo.ExistsSince: %w", err)
	}

	return exists, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("notificationRepo.MarkRead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notificationRepo.MarkRead: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *NotificationRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("notificationRepo.DeleteByIDs: %w", err)
	}

	return tag.RowsAffected(), nil
}

// limitOrAll maps a non-positive limit to NULL, which Postgres reads as
// LIMIT ALL.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

func scanNotification(row pgx.Row) (*domain.NotificationRecord, error) {
	var n domain.NotificationRecord
	if err := row.Scan(
		&n.ID, &n.UserID, &n.Channel, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.Kind,
		&n.RelatedEntityID, &n.Read, &n.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNotifications(rows pgx.Rows, caller string) ([]*domain.NotificationRecord, error) {
	var records []*domain.NotificationRecord
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		records = append(records, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return records, nil
}
