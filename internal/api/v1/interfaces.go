package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/activity"
	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/notify"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store and *memory.Store satisfy this interface.
type DataStore interface {
	Users() domain.UserRepository
	Projects() domain.ProjectRepository
	Tasks() domain.TaskRepository
	Activity() domain.ActivityRepository
	Notifications() domain.NotificationRepository
}

// ActivityQuery reads and purges the audit log.
// *activity.QueryService satisfies this interface.
type ActivityQuery interface {
	List(ctx context.Context, requesterID uuid.UUID, page, pageSize int) (*activity.Page, error)
	Purge(ctx context.Context, requesterID uuid.UUID, ids []uuid.UUID) (int64, error)
}

// AuditInterceptor schedules audit entries for committed mutations.
// *activity.Interceptor satisfies this interface.
type AuditInterceptor interface {
	ProjectCreated(ctx context.Context, actorID uuid.UUID, p *domain.Project, tasks []*domain.Task)
	ProjectUpdated(ctx context.Context, actorID uuid.UUID, before, after *domain.Project)
	ProjectDeleted(ctx context.Context, actorID uuid.UUID, p *domain.Project, tasks []*domain.Task)
	TaskCreated(ctx context.Context, actorID uuid.UUID, t *domain.Task)
	TaskUpdated(ctx context.Context, actorID uuid.UUID, before, after *domain.Task)
	TaskDeleted(ctx context.Context, actorID uuid.UUID, t *domain.Task)
	RoleChanged(ctx context.Context, actorID uuid.UUID, u *domain.User, from, to domain.Role)
	DelaysPredicted(ctx context.Context, actorID uuid.UUID, preds []activity.Predicted)
}

// DelayChecker runs one delay prediction cycle.
// *notify.DelayChecker satisfies this interface.
type DelayChecker interface {
	CheckDelays(ctx context.Context) ([]notify.DelayResult, error)
}

// RoleNotifier tells a user about a new role.
// *notify.Dispatcher satisfies this interface.
type RoleNotifier interface {
	DispatchRoleAssignment(ctx context.Context, u *domain.User, role domain.Role) (notify.Report, error)
}
