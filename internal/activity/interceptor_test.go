package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/orkestra/internal/activity"
	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/store/memory"
)

type auditFixture struct {
	store       *memory.Store
	hook        *activity.Hook
	interceptor *activity.Interceptor
	pm          *domain.User
	alice       *domain.User
}

func newAuditFixture(t *testing.T) *auditFixture {
	t.Helper()

	store := memory.New()
	rec := activity.NewRecorder(store.Activity(), store.Users())
	hook := activity.NewHook(rec)

	return &auditFixture{
		store:       store,
		hook:        hook,
		interceptor: activity.NewInterceptor(store.Users(), hook),
		pm:          seedUser(t, store, "Paula", "Manager", domain.RoleProjectManager),
		alice:       seedUser(t, store, "Alice", "Martin", domain.RoleTeamMember),
	}
}

// events returns all recorded events in insertion order.
func (f *auditFixture) events(t *testing.T) []*domain.ActivityEvent {
	t.Helper()

	f.hook.Wait()
	events, err := f.store.Activity().ListSince(context.Background(), time.Time{})
	require.NoError(t, err)
	return events
}

func (f *auditFixture) projectWithTasks() (*domain.Project, *domain.Task, *domain.Task) {
	p := &domain.Project{ID: uuid.New(), Name: "Apollo", Status: domain.ProjectStatusPending, ManagerID: f.pm.ID}
	t1 := &domain.Task{ID: uuid.New(), ProjectID: p.ID, Title: "T1", Status: domain.TaskStatusTodo, AssigneeIDs: []uuid.UUID{f.alice.ID}}
	t2 := &domain.Task{ID: uuid.New(), ProjectID: p.ID, Title: "T2", Status: domain.TaskStatusTodo}
	return p, t1, t2
}

func TestInterceptor_ProjectCreatedWithTasks(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	p, t1, t2 := f.projectWithTasks()

	f.interceptor.ProjectCreated(context.Background(), f.pm.ID, p, []*domain.Task{t1, t2})

	events := f.events(t)
	require.Len(t, events, 3)

	assert.Equal(t, domain.ActionCreate, events[0].Action)
	assert.Equal(t, domain.TargetProject, events[0].TargetType)
	assert.Equal(t, `Paula Manager created the project "Apollo"`, events[0].Message)

	assert.Equal(t, domain.TargetTask, events[1].TargetType)
	assert.Equal(t, t1.ID, events[1].TargetID)
	assert.Equal(t, `Paula Manager created the task "T1" and assigned it to Alice Martin`, events[1].Message)

	assert.Equal(t, t2.ID, events[2].TargetID)
	assert.Equal(t, `Paula Manager created the task "T2"`, events[2].Message)
	assert.NotContains(t, events[2].Message, "assigned")
}

func TestInterceptor_TaskStatusUpdate(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	_, t1, _ := f.projectWithTasks()

	after := *t1
	after.Status = domain.TaskStatusDone

	f.interceptor.TaskUpdated(context.Background(), f.pm.ID, t1, &after)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ActionUpdate, events[0].Action)
	assert.Equal(t, `Paula Manager updated the task "T1" by changing its status to "Done"`, events[0].Message)
}

func TestInterceptor_TaskAssigneeNoLongerExists(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	_, t1, _ := f.projectWithTasks()
	gone := uuid.New()
	t1.AssigneeIDs = []uuid.UUID{gone}

	after := *t1
	after.AssigneeIDs = []uuid.UUID{f.alice.ID}

	f.interceptor.TaskUpdated(context.Background(), f.pm.ID, t1, &after)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t,
		`Paula Manager updated the task "T1" by changing the assignees: added Alice Martin, removed `+gone.String(),
		events[0].Message)
}

func TestInterceptor_ProjectUpdateWithoutChanges(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	p, _, _ := f.projectWithTasks()
	same := *p

	f.interceptor.ProjectUpdated(context.Background(), f.pm.ID, p, &same)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, `Paula Manager updated the project "Apollo" with some modifications`, events[0].Message)
}

func TestInterceptor_ProjectDeleteCascades(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	p, t1, t2 := f.projectWithTasks()

	f.interceptor.ProjectDeleted(context.Background(), f.pm.ID, p, []*domain.Task{t1, t2})

	events := f.events(t)
	require.Len(t, events, 3)
	for i, want := range []uuid.UUID{t1.ID, t2.ID, p.ID} {
		assert.Equal(t, domain.ActionDelete, events[i].Action)
		assert.Equal(t, want, events[i].TargetID)
	}
	assert.Equal(t, domain.TargetProject, events[2].TargetType)
	assert.Equal(t, `Paula Manager deleted the project "Apollo"`, events[2].Message)
}

func TestInterceptor_FailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	t.Run("missing snapshot", func(t *testing.T) {
		t.Parallel()

		f := newAuditFixture(t)
		_, t1, _ := f.projectWithTasks()

		f.interceptor.TaskUpdated(context.Background(), f.pm.ID, nil, t1)
		assert.Empty(t, f.events(t))
	})

	t.Run("unknown actor", func(t *testing.T) {
		t.Parallel()

		f := newAuditFixture(t)
		_, t1, _ := f.projectWithTasks()

		f.interceptor.TaskDeleted(context.Background(), uuid.New(), t1)
		assert.Empty(t, f.events(t))
	})
}

func TestHook_OncePerRequest(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	_, t1, t2 := f.projectWithTasks()

	ctx := f.hook.Attach(context.Background())
	f.interceptor.TaskDeleted(ctx, f.pm.ID, t1)
	f.interceptor.TaskDeleted(ctx, f.pm.ID, t2)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, t1.ID, events[0].TargetID)
}

func TestHook_RunsAfterRequestCancel(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	_, t1, _ := f.projectWithTasks()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.interceptor.TaskCreated(ctx, f.pm.ID, t1)
	assert.Len(t, f.events(t), 1, "audit survives the request context")
}

func TestInterceptor_RoleChanged(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	f.interceptor.RoleChanged(context.Background(), f.pm.ID, f.alice, domain.RoleTeamMember, domain.RoleTeamLeader)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, domain.TargetUser, events[0].TargetType)
	assert.Equal(t, f.alice.ID, events[0].TargetID)
	assert.Contains(t, events[0].Message, `by changing its role to "Team Leader"`)
}

func TestInterceptor_DelaysPredicted(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	p, t1, _ := f.projectWithTasks()

	f.interceptor.DelaysPredicted(context.Background(), f.pm.ID, []activity.Predicted{
		{TargetType: domain.TargetProject, TargetID: p.ID, Name: p.Name, DelayDays: 4},
		{TargetType: domain.TargetTask, TargetID: t1.ID, Name: t1.Title, DelayDays: 2},
	})

	events := f.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, domain.ActionPredictDelay, events[0].Action)
	assert.Equal(t, `Paula Manager predicted a delay of 4 days for the project "Apollo"`, events[0].Message)
	assert.Equal(t, domain.TargetTask, events[1].TargetType)
	assert.Equal(t, `Paula Manager predicted a delay of 2 days for the task "T1"`, events[1].Message)
}

func TestInterceptor_DelaysPredictedNothingToLog(t *testing.T) {
	t.Parallel()

	f := newAuditFixture(t)
	ctx := f.hook.Attach(context.Background())

	f.interceptor.DelaysPredicted(ctx, f.pm.ID, nil)

	assert.Empty(t, f.events(t))
	assert.True(t, f.hook.After(ctx, func(context.Context) ([]activity.Entry, error) { return nil, nil }),
		"an empty prediction set does not consume the request's audit slot")
}
