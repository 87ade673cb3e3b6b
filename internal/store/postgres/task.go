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

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, project_id, title, description, status, priority, assigned_to,
		start_date, due_date, importance, urgency, effort, created_by, created_at, updated_at`

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority, nonNil(t.AssigneeIDs),
		nilIfZero(t.StartDate), nilIfZero(t.DueDate), t.Importance, t.Urgency, t.Effort,
		nilIfNilUUID(t.CreatedBy), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", err)
	}

	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
		id,
	)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", err)
	}

	return t, nil
}

func (r *TaskRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ANY($1) ORDER BY created_at, id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListByIDs: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListByIDs")
}

func (r *TaskRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListByProject: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListByProject")
}

func (r *TaskRepo) ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]*domain.Task, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ANY($1) ORDER BY created_at, id`,
		projectIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListByProjects: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListByProjects")
}

func (r *TaskRepo) List(ctx context.Context) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.List: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.List")
}

func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET project_id = $1, title = $2, description = $3, status = $4, priority = $5,
		        assigned_to = $6, start_date = $7, due_date = $8, importance = $9, urgency = $10,
		        effort = $11, updated_at = now()
		 WHERE id = $12`,
		t.ProjectID, t.Title, t.Description, t.Status, t.Priority,
		nonNil(t.AssigneeIDs), nilIfZero(t.StartDate), nilIfZero(t.DueDate),
		t.Importance, t.Urgency, t.Effort,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("taskRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var start, due *time.Time
	var createdBy *uuid.UUID

	if err := row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.AssigneeIDs,
		&start, &due, &t.Importance, &t.Urgency, &t.Effort, &createdBy, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.StartDate = derefTime(start)
	t.DueDate = derefTime(due)
	if createdBy != nil {
		t.CreatedBy = *createdBy
	}

	return &t, nil
}

func scanTasks(rows pgx.Rows, caller string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tasks, nil
}

func nilIfNilUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
