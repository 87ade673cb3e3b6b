package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

// UserLookup resolves actors and member display names.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error)
}

// Interceptor turns committed project, task and user mutations into audit
// entries scheduled on a Hook. Handlers call it after a successful write.
type Interceptor struct {
	users UserLookup
	hook  *Hook
}

func NewInterceptor(users UserLookup, hook *Hook) *Interceptor {
	return &Interceptor{users: users, hook: hook}
}

// ProjectCreated logs the project followed by one event per embedded task.
func (i *Interceptor) ProjectCreated(ctx context.Context, actorID uuid.UUID, p *domain.Project, tasks []*domain.Task) {
	i.hook.After(ctx, func(ctx context.Context) ([]Entry, error) {
		actor, err := i.actorName(ctx, actorID)
		if err != nil {
			return nil, err
		}

		entries := []Entry{{
			ActorID:    actorID,
			Action:     domain.ActionCreate,
			TargetType: domain.TargetProject,
			TargetID:   p.ID,
			Message:    fmt.Sprintf("%s created the project %q", actor, p.Name),
		}}
		for _, t := range tasks {
			e, err := i.taskCreatedEntry(ctx, actorID, actor, t)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
		return entries, nil
	})
}

// ProjectUpdated logs the described changes between before and after. A nil
// before snapshot is an audit failure.
func (i *Interceptor) ProjectUpdated(ctx context.Context, actorID uuid.UUID, before, after *domain.Project) {
	i.hook.After(ctx, func(ctx context.Context) ([]Entry, error) {
		if before == nil {
			return nil, fmt.Errorf("activity.Interceptor.ProjectUpdated: project %s: %w", after.ID, domain.ErrMissingSnapshot)
		}
		actor, err := i.actorName(ctx, actorID)
		if err != nil {
			return nil, err
		}

		prev, err := i.projectSnapshot(ctx, before)
		if err != nil {
			return nil, err
		}
		next, err := i.projectSnapshot(ctx, after)
		if err != nil {
			return nil, err
		}

		return []Entry{{
			ActorID:    actorID,
			Action:     domain.ActionUpdate,
			TargetType: domain.TargetProject,
			TargetID:   after.ID,
			Message:    fmt.Sprintf("%s updated the project %q %s", actor, after.Name, JoinChanges(DescribeProject(prev, next))),
		}}, nil
	})
}

// ProjectDeleted logs one DELETE per child task, then the project itself.
func (i *Interceptor) ProjectDeleted(ctx context.Context, actorID uuid.UUID, p *domain.Project, tasks []*domain.Task) {
	i.hook.After(ctx, func(ctx context.Context) ([]Entry, error) {
		actor, err := i.actorName(ctx, actorID)
		if err != nil {
			return nil, err
		}

		entries := make([]Entry, 0, len(tasks)+1)
		for _, t := range tasks {
			entries = append(entries, Entry{
				ActorID:    actorID,
				Action:     domain.ActionDelete,
				TargetType: domain.TargetTask,
				TargetID:   t.ID,
				Message:    fmt.Sprintf("%s deleted the task %q", actor, t.Title),
			})
		}
		entries = append(entries, Entry{
			ActorID:    actorID,
			Action:     domain.ActionDelete,
			TargetType: domain.TargetProject,
			TargetID:   p.ID,
			Message:    fmt.Sprintf("%s deleted the project %q", actor, p.Name),
		})
		return entries, nil
	})
}

func (i *Interceptor) TaskCreated(ctx context.Context, actorID uuid.UUID, t *domain.Task) {
	i.hook.After(ctx, func(ctx context.Context) ([]Entry, error) {
		actor, err := i.actorName(ctx, actorID)
		if err != nil {
			return nil, err
		}
		e, err := i.taskCreatedEntry(ctx, actorID, actor, t)
		if err != nil {
			return nil, err
		}
		return []Entry{e}, nil
	})
}

func (i *Interceptor) TaskUpdated(ctx context.Context, actorID uuid.UUID, before, after *domain.Task) {
	i.hook.After(ctx, func(ctx context.Context) ([]Entry, error) {
		if before == nil {
			return nil, fmt.Errorf("activity.Interceptor.TaskUpdated: task %s: %w", after.ID, domain.ErrMissingSnapshot)
		}
		actor, err := i.actorName(ctx, actorID)
		if err != nil {
			return nil, err
		}

		prev, err := i.taskSnapshot(ctx, before)
		if err != nil {
			return nil, err
		}
		next, err := i.taskSnapshot(ctx, after)
		if err != nil {
			return nil, err
		}

		return []Entry{{
			ActorID:    actorID,
			Action:     domain.ActionUpdate,
			TargetType: domain.TargetTask,
			TargetID:   after.ID,
			Message:    fmt.Sprintf("%s updated the task %q %s", actor, after.Title, JoinChanges(DescribeTask(prev, next))),
		}}, nil
	})
}

func (i *Interceptor) TaskDeleted(ctx context.Context, actorID uuid.UUID, t *domain.Task) {
	i.hook.After(ctx, func(ctx context.Context) ([]Entry, error) {
		actor, err := i.actorName(ctx, actorID)
		if err != nil {
			return nil, err
		}
		return []Entry{{
			ActorID:    actorID,
			Action:     domain.ActionDelete,
			TargetType: domain.TargetTask,
			TargetID:   t.ID,
			Message:    fmt.Sprintf("%s deleted the task %q", actor, t.Title),
		}}, nil
	})
}

// RoleChanged logs a role assignment on the target user.
func (i *Interceptor) RoleChanged(ctx context.Context, actorID uuid.UUID, u *domain.User, from, to domain.Role) {
	i.hook.After(ctx, func(ctx context.Context) ([]Entry, error) {
		actor, err := i.actorName(ctx, actorID)
		if err != nil {
			return nil, err
		}
		return []Entry{{
			ActorID:    actorID,
			Action:     domain.ActionUpdate,
			TargetType: domain.TargetUser,
			TargetID:   u.ID,
			Message:    fmt.Sprintf("%s updated the user %q by changing its role to %q", actor, u.FullName(), string(to)),
			Details:    map[string]any{"previousRole": string(from), "role": string(to)},
		}}, nil
	})
}

// Predicted is one positive delay prediction to log.
type Predicted struct {
	TargetType domain.TargetType
	TargetID   uuid.UUID
	Name       string
	DelayDays  int
}

// DelaysPredicted logs one PREDICT_DELAY event per prediction. Nothing is
// scheduled when preds is empty.
func (i *Interceptor) DelaysPredicted(ctx context.Context, actorID uuid.UUID, preds []Predicted) {
	if len(preds) == 0 {
		return
	}
	i.hook.After(ctx, func(ctx context.Context) ([]Entry, error) {
		actor, err := i.actorName(ctx, actorID)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(preds))
		for _, p := range preds {
			kind := "project"
			if p.TargetType == domain.TargetTask {
				kind = "task"
			}
			entries = append(entries, Entry{
				ActorID:    actorID,
				Action:     domain.ActionPredictDelay,
				TargetType: p.TargetType,
				TargetID:   p.TargetID,
				Message:    fmt.Sprintf("%s predicted a delay of %d days for the %s %q", actor, p.DelayDays, kind, p.Name),
				Details:    map[string]any{"delayDays": p.DelayDays},
			})
		}
		return entries, nil
	})
}

func (i *Interceptor) taskCreatedEntry(ctx context.Context, actorID uuid.UUID, actor string, t *domain.Task) (Entry, error) {
	msg := fmt.Sprintf("%s created the task %q", actor, t.Title)
	if len(t.AssigneeIDs) > 0 {
		members, err := i.members(ctx, t.AssigneeIDs)
		if err != nil {
			return Entry{}, err
		}
		names := make([]string, 0, len(members))
		for _, m := range members {
			names = append(names, m.Name)
		}
		if len(names) > 0 {
			msg += " and assigned it to " + strings.Join(names, ", ")
		}
	}
	return Entry{
		ActorID:    actorID,
		Action:     domain.ActionCreate,
		TargetType: domain.TargetTask,
		TargetID:   t.ID,
		Message:    msg,
		Details:    map[string]any{"project": t.ProjectID.String()},
	}, nil
}

func (i *Interceptor) actorName(ctx context.Context, actorID uuid.UUID) (string, error) {
	u, err := i.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("activity.Interceptor: actor %s: %w", actorID, domain.ErrActorNotFound)
		}
		return "", fmt.Errorf("activity.Interceptor: resolve actor: %w", err)
	}
	return u.FullName(), nil
}

// members resolves ids to display names, keeping the order of ids. Users
// that no longer exist are named by their ID.
func (i *Interceptor) members(ctx context.Context, ids []uuid.UUID) ([]Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := i.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("activity.Interceptor: resolve members: %w", err)
	}
	byID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]Member, 0, len(ids))
	for _, id := range ids {
		name := id.String()
		if u, ok := byID[id]; ok {
			name = u.FullName()
		}
		out = append(out, Member{ID: id, Name: name})
	}
	return out, nil
}

func (i *Interceptor) projectSnapshot(ctx context.Context, p *domain.Project) (ProjectSnapshot, error) {
	team, err := i.members(ctx, p.TeamMemberIDs)
	if err != nil {
		return ProjectSnapshot{}, err
	}
	return ProjectSnapshot{
		Name:         p.Name,
		Description:  p.Description,
		Status:       string(p.Status),
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		TeamMembers:  team,
		Deliverables: p.Deliverables,
		Objectives:   p.Objectives,
	}, nil
}

func (i *Interceptor) taskSnapshot(ctx context.Context, t *domain.Task) (TaskSnapshot, error) {
	assignees, err := i.members(ctx, t.AssigneeIDs)
	if err != nil {
		return TaskSnapshot{}, err
	}
	return TaskSnapshot{
		Status:      string(t.Status),
		Priority:    t.Priority,
		Title:       t.Title,
		Description: t.Description,
		StartDate:   t.StartDate,
		DueDate:     t.DueDate,
		Assignees:   assignees,
		Importance:  t.Importance,
		Urgency:     t.Urgency,
		Effort:      t.Effort,
	}, nil
}
