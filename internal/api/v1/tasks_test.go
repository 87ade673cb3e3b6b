package v1_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/orkestra/internal/activity"
	v1 "github.com/gosuda/orkestra/internal/api/v1"
	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/store/memory"
)

func newTasksAPI(t *testing.T) (humatest.TestAPI, *memory.Store, *mockAudit) {
	t.Helper()

	store := memory.New()
	audit := &mockAudit{}
	_, api := humatest.New(t)
	v1.RegisterTaskRoutes(api, store, audit)
	return api, store, audit
}

// ---------------------------------------------------------------------------
// POST /tasks
// ---------------------------------------------------------------------------

func TestCreateTask(t *testing.T) {
	t.Parallel()

	t.Run("leader_in_project", func(t *testing.T) {
		t.Parallel()

		api, store, audit := newTasksAPI(t)
		pm := seedUser(t, store, "paula", domain.RoleProjectManager)
		leo := seedUser(t, store, "leo", domain.RoleTeamLeader)
		p := seedProject(t, store, "Apollo", pm, leo)

		resp := api.PostCtx(userCtx(leo), "/tasks", map[string]any{
			"project":  p.ID.String(),
			"title":    "Write docs",
			"priority": "High",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		body := decode[domain.Task](t, resp)
		assert.Equal(t, p.ID, body.ProjectID)
		assert.Equal(t, leo.ID, body.CreatedBy)

		calls := audit.recorded()
		require.Len(t, calls, 1)
		assert.Equal(t, "task-created", calls[0].op)
		assert.Equal(t, body.ID, calls[0].target)
	})

	t.Run("leader_outside_project", func(t *testing.T) {
		t.Parallel()

		api, store, _ := newTasksAPI(t)
		pm := seedUser(t, store, "paula", domain.RoleProjectManager)
		leo := seedUser(t, store, "leo", domain.RoleTeamLeader)
		p := seedProject(t, store, "Apollo", pm)

		resp := api.PostCtx(userCtx(leo), "/tasks", map[string]any{"project": p.ID.String(), "title": "x"})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("member_cannot_create", func(t *testing.T) {
		t.Parallel()

		api, store, _ := newTasksAPI(t)
		pm := seedUser(t, store, "paula", domain.RoleProjectManager)
		mia := seedUser(t, store, "mia", domain.RoleTeamMember)
		p := seedProject(t, store, "Apollo", pm, mia)

		resp := api.PostCtx(userCtx(mia), "/tasks", map[string]any{"project": p.ID.String(), "title": "x"})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /tasks?project=
// ---------------------------------------------------------------------------

func TestListTasks(t *testing.T) {
	t.Parallel()

	api, store, _ := newTasksAPI(t)
	pm := seedUser(t, store, "paula", domain.RoleProjectManager)
	mia := seedUser(t, store, "mia", domain.RoleTeamMember)
	p := seedProject(t, store, "Apollo", pm, mia)
	seedTask(t, store, p, "T1")
	seedTask(t, store, p, "T2")

	resp := api.GetCtx(userCtx(mia), "/tasks?project="+p.ID.String())
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]domain.Task](t, resp), 2)
}

// ---------------------------------------------------------------------------
// PUT /tasks/{id}
// ---------------------------------------------------------------------------

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	t.Run("member_updates_status", func(t *testing.T) {
		t.Parallel()

		api, store, audit := newTasksAPI(t)
		pm := seedUser(t, store, "paula", domain.RoleProjectManager)
		mia := seedUser(t, store, "mia", domain.RoleTeamMember)
		p := seedProject(t, store, "Apollo", pm, mia)
		task := seedTask(t, store, p, "T1")

		resp := api.PutCtx(userCtx(mia), "/tasks/"+task.ID.String(), map[string]any{"status": "Done"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, domain.TaskStatusDone, decode[domain.Task](t, resp).Status)

		calls := audit.recorded()
		require.Len(t, calls, 1)
		assert.Equal(t, "task-updated", calls[0].op)
		before, ok := calls[0].before.(*domain.Task)
		require.True(t, ok)
		assert.Equal(t, domain.TaskStatusTodo, before.Status)
	})

	t.Run("unknown_status", func(t *testing.T) {
		t.Parallel()

		api, store, audit := newTasksAPI(t)
		pm := seedUser(t, store, "paula", domain.RoleProjectManager)
		task := seedTask(t, store, seedProject(t, store, "Apollo", pm), "T1")

		resp := api.PutCtx(userCtx(pm), "/tasks/"+task.ID.String(), map[string]any{"status": "Abandoned"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
		assert.Empty(t, audit.recorded())
	})

	t.Run("guest_forbidden", func(t *testing.T) {
		t.Parallel()

		api, store, _ := newTasksAPI(t)
		pm := seedUser(t, store, "paula", domain.RoleProjectManager)
		guest := seedUser(t, store, "gus", domain.RoleGuest)
		task := seedTask(t, store, seedProject(t, store, "Apollo", pm, guest), "T1")

		resp := api.PutCtx(userCtx(guest), "/tasks/"+task.ID.String(), map[string]any{"status": "Done"})
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})
}

func TestUpdateTask_RecordsActivityAfterCommit(t *testing.T) {
	t.Parallel()

	store := memory.New()
	hook := activity.NewHook(activity.NewRecorder(store.Activity(), store.Users()))
	_, api := humatest.New(t)
	v1.RegisterTaskRoutes(api, store, activity.NewInterceptor(store.Users(), hook))

	pm := seedUser(t, store, "paula", domain.RoleProjectManager)
	mia := seedUser(t, store, "mia", domain.RoleTeamMember)
	task := seedTask(t, store, seedProject(t, store, "Apollo", pm, mia), "T1")

	ctx := hook.Attach(userCtx(mia))
	resp := api.PutCtx(ctx, "/tasks/"+task.ID.String(), map[string]any{"status": "Done"})
	require.Equal(t, http.StatusOK, resp.Code)

	hook.Wait()
	events, err := store.Activity().ListSince(t.Context(), time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, mia.ID, events[0].ActorID)
	assert.Equal(t, task.ID, events[0].TargetID)
	assert.Equal(t, `mia Doe updated the task "T1" by changing its status to "Done"`, events[0].Message)
}

// ---------------------------------------------------------------------------
// DELETE /tasks/{id}
// ---------------------------------------------------------------------------

func TestDeleteTask(t *testing.T) {
	t.Parallel()

	api, store, audit := newTasksAPI(t)
	pm := seedUser(t, store, "paula", domain.RoleProjectManager)
	task := seedTask(t, store, seedProject(t, store, "Apollo", pm), "T1")

	resp := api.DeleteCtx(userCtx(pm), "/tasks/"+task.ID.String())
	require.Equal(t, http.StatusNoContent, resp.Code)

	_, err := store.Tasks().GetByID(t.Context(), task.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	calls := audit.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "task-deleted", calls[0].op)
}
