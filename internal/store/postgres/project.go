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

type ProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

const projectColumns = `id, name, description, status, start_date, end_date, manager_id,
		team_members, deliverables, objectives, created_at, updated_at`

func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Name, p.Description, p.Status,
		nilIfZero(p.StartDate), nilIfZero(p.EndDate), p.ManagerID,
		nonNil(p.TeamMemberIDs), nonNil(p.Deliverables), nonNil(p.Objectives),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.Create: %w", err)
	}

	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		id,
	)
	p, err := scanProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("projectRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("projectRepo.GetByID: %w", err)
	}

	return p, nil
}

func (r *ProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE projects SET name = $1, description = $2, status = $3, start_date = $4, end_date = $5,
		        manager_id = $6, team_members = $7, deliverables = $8, objectives = $9, updated_at = now()
		 WHERE id = $10`,
		p.Name, p.Description, p.Status,
		nilIfZero(p.StartDate), nilIfZero(p.EndDate), p.ManagerID,
		nonNil(p.TeamMemberIDs), nonNil(p.Deliverables), nonNil(p.Objectives),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("projectRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *ProjectRepo) List(ctx context.Context) ([]*domain.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.List: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows, "projectRepo.List")
}

func (r *ProjectRepo) ListByManager(ctx context.Context, managerID uuid.UUID) ([]*domain.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE manager_id = $1 ORDER BY created_at, id`,
		managerID,
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.ListByManager: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows, "projectRepo.ListByManager")
}

func (r *ProjectRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE manager_id = $1 OR $1 = ANY(team_members)
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.ListByMember: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows, "projectRepo.ListByMember")
}

func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("projectRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("projectRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	var start, end *time.Time

	if err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Status, &start, &end, &p.ManagerID,
		&p.TeamMemberIDs, &p.Deliverables, &p.Objectives, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.StartDate = derefTime(start)
	p.EndDate = derefTime(end)

	return &p, nil
}

func scanProjects(rows pgx.Rows, caller string) ([]*domain.Project, error) {
	var projects []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return projects, nil
}

// nonNil maps a nil slice to an empty one so NOT NULL array columns accept it.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
