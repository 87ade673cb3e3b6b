package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/orkestra/internal/domain"
)

type ActivityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

const activityColumns = `id, actor_id, action, target_type, target_id, message, details, created_at`

func (r *ActivityRepo) Create(ctx context.Context, e *domain.ActivityEvent) error {
	details, err := marshalDetails(e.Details)
	if err != nil {
		return fmt.Errorf("activityRepo.Create: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO activity_logs (`+activityColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ActorID, e.Action, e.TargetType, e.TargetID, e.Message, details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("activityRepo.Create: %w", err)
	}

	return nil
}

func (r *ActivityRepo) FindRecent(ctx context.Context, key domain.ActivityKey, since time.Time) (*domain.ActivityEvent, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activity_logs
		 WHERE actor_id = $1 AND action = $2 AND target_type = $3 AND target_id = $4
		   AND message = $5 AND created_at >= $6
		 ORDER BY created_at DESC
		 LIMIT 1`,
		key.ActorID, key.Action, key.TargetType, key.TargetID, key.Message, since,
	)
	e, err := scanActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("activityRepo.FindRecent: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("activityRepo.FindRecent: %w", err)
	}

	return e, nil
}

func (r *ActivityRepo) ListSince(ctx context.Context, since time.Time) ([]*domain.ActivityEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM activity_logs WHERE created_at >= $1 ORDER BY created_at, id`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("activityRepo.ListSince: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows, "activityRepo.ListSince")
}

func (r *ActivityRepo) List(ctx context.Context, scope *domain.ActivityScope, limit, offset int) ([]*domain.ActivityEvent, error) {
	where, args := scopeClause(scope)
	query := `SELECT ` + activityColumns + ` FROM activity_logs` + where + ` ORDER BY created_at DESC, id`
	if limit > 0 {
		args = append(args, limit, offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("activityRepo.List: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows, "activityRepo.List")
}

func (r *ActivityRepo) Count(ctx context.Context, scope *domain.ActivityScope) (int, error) {
	where, args := scopeClause(scope)

	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM activity_logs`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("activityRepo.Count: %w", err)
	}

	return n, nil
}

func (r *ActivityRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM activity_logs WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("activityRepo.DeleteByIDs: %w", err)
	}

	return tag.RowsAffected(), nil
}

// scopeClause renders scope as a WHERE clause. A nil scope matches every
// row; an empty one matches none.
func scopeClause(scope *domain.ActivityScope) (string, []any) {
	if scope == nil {
		return "", nil
	}
	return ` WHERE actor_id = ANY($1)
		OR (target_type = 'PROJECT' AND target_id = ANY($2))
		OR (target_type = 'TASK' AND target_id = ANY($3))`,
		[]any{nonNil(scope.ActorIDs), nonNil(scope.ProjectIDs), nonNil(scope.TaskIDs)}
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if len(details) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}
	return b, nil
}

func scanActivity(row pgx.Row) (*domain.ActivityEvent, error) {
	var e domain.ActivityEvent
	var details []byte

	if err := row.Scan(
		&e.ID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID, &e.Message, &details, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
	}

	return &e, nil
}

func scanActivities(rows pgx.Rows, caller string) ([]*domain.ActivityEvent, error) {
	var events []*domain.ActivityEvent
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return events, nil
}
