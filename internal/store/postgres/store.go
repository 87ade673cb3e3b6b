package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/orkestra/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool          *pgxpool.Pool
	users         *UserRepo
	projects      *ProjectRepo
	tasks         *TaskRepo
	activity      *ActivityRepo
	notifications *NotificationRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:          pool,
		users:         NewUserRepo(pool),
		projects:      NewProjectRepo(pool),
		tasks:         NewTaskRepo(pool),
		activity:      NewActivityRepo(pool),
		notifications: NewNotificationRepo(pool),
	}, nil
}

// Migrate creates any missing tables and indexes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres.Store.Migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres.Store.Ping: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Users() domain.UserRepository                 { return s.users }
func (s *Store) Projects() domain.ProjectRepository           { return s.projects }
func (s *Store) Tasks() domain.TaskRepository                 { return s.tasks }
func (s *Store) Activity() domain.ActivityRepository          { return s.activity }
func (s *Store) Notifications() domain.NotificationRepository { return s.notifications }

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
