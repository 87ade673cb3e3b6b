package v1_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/orkestra/internal/activity"
	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/notify"
	"github.com/gosuda/orkestra/internal/server/middleware"
	"github.com/gosuda/orkestra/internal/store/memory"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the authenticated user for DoCtx
// ---------------------------------------------------------------------------

func userCtx(u *domain.User) context.Context {
	return middleware.WithIdentity(context.Background(), u.ID, u.Role)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func seedUser(t *testing.T, store *memory.Store, first string, role domain.Role) *domain.User {
	t.Helper()

	now := time.Now()
	u := &domain.User{
		ID:        uuid.New(),
		FirstName: first,
		LastName:  "Doe",
		Email:     first + "@example.com",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func seedProject(t *testing.T, store *memory.Store, name string, manager *domain.User, members ...*domain.User) *domain.Project {
	t.Helper()

	start := time.Now().AddDate(0, 0, -7)
	p, err := domain.NewProject(name, manager.ID, start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	for _, m := range members {
		p.TeamMemberIDs = append(p.TeamMemberIDs, m.ID)
	}
	require.NoError(t, store.Projects().Create(context.Background(), p))
	return p
}

func seedTask(t *testing.T, store *memory.Store, p *domain.Project, title string) *domain.Task {
	t.Helper()

	now := time.Now()
	task := &domain.Task{
		ID:        uuid.New(),
		ProjectID: p.ID,
		Title:     title,
		Status:    domain.TaskStatusTodo,
		CreatedBy: p.ManagerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Tasks().Create(context.Background(), task))
	return task
}

func seedEvent(t *testing.T, store *memory.Store, actor uuid.UUID, tt domain.TargetType, target uuid.UUID, msg string) *domain.ActivityEvent {
	t.Helper()

	e := &domain.ActivityEvent{
		ID:         uuid.New(),
		ActorID:    actor,
		Action:     domain.ActionUpdate,
		TargetType: tt,
		TargetID:   target,
		Message:    msg,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.Activity().Create(context.Background(), e))
	return e
}

func seedNotification(t *testing.T, store *memory.Store, owner *domain.User) *domain.NotificationRecord {
	t.Helper()

	n := &domain.NotificationRecord{
		ID:        uuid.New(),
		UserID:    owner.ID,
		Channel:   domain.ChannelEmail,
		Recipient: owner.Email,
		Subject:   "Delay alert",
		Body:      "Apollo is late",
		Status:    domain.NotificationSent,
		Kind:      domain.KindProjectDelay,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Notifications().Create(context.Background(), n))
	return n
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// ---------------------------------------------------------------------------
// Mock AuditInterceptor
// ---------------------------------------------------------------------------

type auditCall struct {
	op      string
	actorID uuid.UUID
	target  uuid.UUID
	before  any
	after   any
	tasks   []*domain.Task
	preds   []activity.Predicted
}

type mockAudit struct {
	mu    sync.Mutex
	calls []auditCall
}

func (m *mockAudit) record(c auditCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *mockAudit) recorded() []auditCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auditCall(nil), m.calls...)
}

func (m *mockAudit) ProjectCreated(_ context.Context, actorID uuid.UUID, p *domain.Project, tasks []*domain.Task) {
	m.record(auditCall{op: "project-created", actorID: actorID, target: p.ID, after: p, tasks: tasks})
}

func (m *mockAudit) ProjectUpdated(_ context.Context, actorID uuid.UUID, before, after *domain.Project) {
	m.record(auditCall{op: "project-updated", actorID: actorID, target: after.ID, before: before, after: after})
}

func (m *mockAudit) ProjectDeleted(_ context.Context, actorID uuid.UUID, p *domain.Project, tasks []*domain.Task) {
	m.record(auditCall{op: "project-deleted", actorID: actorID, target: p.ID, before: p, tasks: tasks})
}

func (m *mockAudit) TaskCreated(_ context.Context, actorID uuid.UUID, t *domain.Task) {
	m.record(auditCall{op: "task-created", actorID: actorID, target: t.ID, after: t})
}

func (m *mockAudit) TaskUpdated(_ context.Context, actorID uuid.UUID, before, after *domain.Task) {
	m.record(auditCall{op: "task-updated", actorID: actorID, target: after.ID, before: before, after: after})
}

func (m *mockAudit) TaskDeleted(_ context.Context, actorID uuid.UUID, t *domain.Task) {
	m.record(auditCall{op: "task-deleted", actorID: actorID, target: t.ID, before: t})
}

func (m *mockAudit) RoleChanged(_ context.Context, actorID uuid.UUID, u *domain.User, from, to domain.Role) {
	m.record(auditCall{op: "role-changed", actorID: actorID, target: u.ID, before: from, after: to})
}

func (m *mockAudit) DelaysPredicted(_ context.Context, actorID uuid.UUID, preds []activity.Predicted) {
	m.record(auditCall{op: "delays-predicted", actorID: actorID, preds: preds})
}

// ---------------------------------------------------------------------------
// Mock DelayChecker / RoleNotifier
// ---------------------------------------------------------------------------

type mockDelayChecker struct {
	checkDelaysFunc func(ctx context.Context) ([]notify.DelayResult, error)
}

func (m *mockDelayChecker) CheckDelays(ctx context.Context) ([]notify.DelayResult, error) {
	return m.checkDelaysFunc(ctx)
}

type mockRoleNotifier struct {
	dispatchFunc func(ctx context.Context, u *domain.User, role domain.Role) (notify.Report, error)
}

func (m *mockRoleNotifier) DispatchRoleAssignment(ctx context.Context, u *domain.User, role domain.Role) (notify.Report, error) {
	return m.dispatchFunc(ctx, u, role)
}
