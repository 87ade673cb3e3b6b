package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

type CreateTaskInput struct {
	Body struct {
		ProjectID uuid.UUID `json:"project" doc:"Project ID"`
		TaskBody
	}
}

type CreateTaskOutput struct {
	Body *domain.Task
}

type ListTasksInput struct {
	ProjectID uuid.UUID `query:"project" required:"true" doc:"Project ID"`
}

type ListTasksOutput struct {
	Body []*domain.Task
}

type UpdateTaskInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Title       *string      `json:"title,omitempty" maxLength:"500" doc:"Task title"`
		Description *string      `json:"description,omitempty" doc:"Task description"`
		Status      *string      `json:"status,omitempty" enum:"To Do,In Progress,Review,Done,Tested" doc:"Task status"`
		Priority    *string      `json:"priority,omitempty" doc:"Free-form priority label"`
		AssigneeIDs *[]uuid.UUID `json:"assigned_to,omitempty" doc:"Assigned user IDs"`
		StartDate   *time.Time   `json:"start_date,omitempty" doc:"Planned start"`
		DueDate     *time.Time   `json:"due_date,omitempty" doc:"Deadline"`
		Importance  *int         `json:"importance,omitempty" minimum:"0" doc:"Importance score"`
		Urgency     *int         `json:"urgency,omitempty" minimum:"0" doc:"Urgency score"`
		Effort      *int         `json:"effort,omitempty" minimum:"0" doc:"Effort estimate"`
	}
}

type UpdateTaskOutput struct {
	Body *domain.Task
}

type DeleteTaskInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

// RegisterTaskRoutes wires task CRUD. Members of a project may update its
// tasks; creating and deleting needs Team Leader or above.
func RegisterTaskRoutes(api huma.API, store DataStore, audit AuditInterceptor) {
	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a task in a project",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *CreateTaskInput) (*CreateTaskOutput, error) {
		actorID, err := projectMember(ctx, store, input.Body.ProjectID, domain.RoleTeamLeader)
		if err != nil {
			return nil, err
		}

		t := newTask(input.Body.ProjectID, actorID, input.Body.TaskBody)
		if createErr := store.Tasks().Create(ctx, t); createErr != nil {
			return nil, storeError(createErr, "task")
		}

		audit.TaskCreated(ctx, actorID, t)

		return &CreateTaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List the tasks of a project",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *ListTasksInput) (*ListTasksOutput, error) {
		if _, err := projectMember(ctx, store, input.ProjectID, domain.RoleGuest); err != nil {
			return nil, err
		}

		tasks, err := store.Tasks().ListByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tasks", err)
		}
		if tasks == nil {
			tasks = []*domain.Task{}
		}
		return &ListTasksOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Update a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*UpdateTaskOutput, error) {
		before, err := store.Tasks().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "task")
		}
		actorID, err := projectMember(ctx, store, before.ProjectID, domain.RoleTeamMember)
		if err != nil {
			return nil, err
		}
		after := *before

		b := input.Body
		if b.Title != nil {
			after.Title = *b.Title
		}
		if b.Description != nil {
			after.Description = *b.Description
		}
		if b.Status != nil {
			after.Status = domain.TaskStatus(*b.Status)
		}
		if b.Priority != nil {
			after.Priority = *b.Priority
		}
		if b.AssigneeIDs != nil {
			after.AssigneeIDs = *b.AssigneeIDs
		}
		if b.StartDate != nil {
			after.StartDate = *b.StartDate
		}
		if b.DueDate != nil {
			after.DueDate = *b.DueDate
		}
		if b.Importance != nil {
			after.Importance = *b.Importance
		}
		if b.Urgency != nil {
			after.Urgency = *b.Urgency
		}
		if b.Effort != nil {
			after.Effort = *b.Effort
		}
		if after.Title == "" {
			return nil, huma.Error400BadRequest("title must not be empty")
		}
		after.UpdatedAt = time.Now()

		if updateErr := store.Tasks().Update(ctx, &after); updateErr != nil {
			return nil, storeError(updateErr, "task")
		}

		audit.TaskUpdated(ctx, actorID, before, &after)

		return &UpdateTaskOutput{Body: &after}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *DeleteTaskInput) (*struct{}, error) {
		t, err := store.Tasks().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "task")
		}
		actorID, err := projectMember(ctx, store, t.ProjectID, domain.RoleTeamLeader)
		if err != nil {
			return nil, err
		}

		if delErr := store.Tasks().Delete(ctx, t.ID); delErr != nil {
			return nil, storeError(delErr, "task")
		}

		audit.TaskDeleted(ctx, actorID, t)

		return nil, nil
	})
}

// projectMember returns the caller if they rank at least minRole and belong
// to the project. Admins belong to every project.
func projectMember(ctx context.Context, store DataStore, projectID uuid.UUID, minRole domain.Role) (uuid.UUID, error) {
	userID, role, err := requireRole(ctx, minRole)
	if err != nil {
		return uuid.Nil, err
	}

	p, err := store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return uuid.Nil, storeError(err, "project")
	}
	if role != domain.RoleAdmin && !p.HasMember(userID) {
		return uuid.Nil, huma.Error403Forbidden("not a member of this project")
	}
	return userID, nil
}
