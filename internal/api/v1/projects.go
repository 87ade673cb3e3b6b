package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orkestra/internal/domain"
)

// TaskBody is a task embedded in a project creation request.
type TaskBody struct {
	Title       string      `json:"title" minLength:"1" maxLength:"500" doc:"Task title"`
	Description string      `json:"description,omitempty" doc:"Task description"`
	Priority    string      `json:"priority,omitempty" doc:"Free-form priority label"`
	AssigneeIDs []uuid.UUID `json:"assigned_to,omitempty" doc:"Assigned user IDs"`
	StartDate   time.Time   `json:"start_date,omitempty" doc:"Planned start"`
	DueDate     time.Time   `json:"due_date,omitempty" doc:"Deadline"`
}

type CreateProjectInput struct {
	Body struct {
		Name          string      `json:"name" minLength:"1" maxLength:"255" doc:"Project name"`
		Description   string      `json:"description,omitempty" doc:"Project description"`
		StartDate     time.Time   `json:"start_date" doc:"Planned start"`
		EndDate       time.Time   `json:"end_date,omitempty" doc:"Planned end"`
		ManagerID     *uuid.UUID  `json:"project_manager,omitempty" doc:"Manager (admins only; defaults to the caller)"`
		TeamMemberIDs []uuid.UUID `json:"team_members,omitempty" doc:"Team member user IDs"`
		Deliverables  []string    `json:"deliverables,omitempty" doc:"Expected deliverables"`
		Objectives    []string    `json:"objectives,omitempty" doc:"Objectives"`
		Tasks         []TaskBody  `json:"tasks,omitempty" doc:"Tasks created with the project"`
	}
}

type CreateProjectOutput struct {
	Body struct {
		Project *domain.Project `json:"project"`
		Tasks   []*domain.Task  `json:"tasks"`
	}
}

type GetProjectInput struct {
	ID uuid.UUID `path:"id" doc:"Project ID"`
}

type GetProjectOutput struct {
	Body *domain.Project
}

type UpdateProjectInput struct {
	ID   uuid.UUID `path:"id" doc:"Project ID"`
	Body struct {
		Name          *string      `json:"name,omitempty" maxLength:"255" doc:"Project name"`
		Description   *string      `json:"description,omitempty" doc:"Project description"`
		Status        *string      `json:"status,omitempty" enum:"Pending,In Progress,Completed" doc:"Project status"`
		StartDate     *time.Time   `json:"start_date,omitempty" doc:"Planned start"`
		EndDate       *time.Time   `json:"end_date,omitempty" doc:"Planned end"`
		TeamMemberIDs *[]uuid.UUID `json:"team_members,omitempty" doc:"Team member user IDs"`
		Deliverables  *[]string    `json:"deliverables,omitempty" doc:"Expected deliverables"`
		Objectives    *[]string    `json:"objectives,omitempty" doc:"Objectives"`
	}
}

type UpdateProjectOutput struct {
	Body *domain.Project
}

type DeleteProjectInput struct {
	ID uuid.UUID `path:"id" doc:"Project ID"`
}

// RegisterProjectRoutes wires project CRUD. Successful writes schedule their
// audit entries on audit after the store call returns.
func RegisterProjectRoutes(api huma.API, store DataStore, audit AuditInterceptor) {
	huma.Register(api, huma.Operation{
		OperationID: "create-project",
		Method:      http.MethodPost,
		Path:        "/projects",
		Summary:     "Create a project with optional tasks",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *CreateProjectInput) (*CreateProjectOutput, error) {
		actorID, role, err := requireRole(ctx, domain.RoleProjectManager)
		if err != nil {
			return nil, err
		}

		managerID := actorID
		if input.Body.ManagerID != nil && *input.Body.ManagerID != actorID {
			if role != domain.RoleAdmin {
				return nil, huma.Error403Forbidden("only admins may assign another manager")
			}
			managerID = *input.Body.ManagerID
		}

		p, err := domain.NewProject(input.Body.Name, managerID, input.Body.StartDate, input.Body.EndDate)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		p.Description = input.Body.Description
		p.TeamMemberIDs = input.Body.TeamMemberIDs
		p.Deliverables = input.Body.Deliverables
		p.Objectives = input.Body.Objectives

		if createErr := store.Projects().Create(ctx, p); createErr != nil {
			return nil, storeError(createErr, "project")
		}

		tasks := make([]*domain.Task, 0, len(input.Body.Tasks))
		for _, tb := range input.Body.Tasks {
			t := newTask(p.ID, actorID, tb)
			if createErr := store.Tasks().Create(ctx, t); createErr != nil {
				rollbackProject(ctx, store, p, tasks)
				return nil, storeError(createErr, "task")
			}
			tasks = append(tasks, t)
		}

		audit.ProjectCreated(ctx, actorID, p, tasks)

		out := &CreateProjectOutput{}
		out.Body.Project = p
		out.Body.Tasks = tasks
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get a project by ID",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *GetProjectInput) (*GetProjectOutput, error) {
		userID, role, err := requester(ctx)
		if err != nil {
			return nil, err
		}

		p, err := store.Projects().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "project")
		}
		if role != domain.RoleAdmin && !p.HasMember(userID) {
			return nil, huma.Error403Forbidden("not a member of this project")
		}

		return &GetProjectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPut,
		Path:        "/projects/{id}",
		Summary:     "Update a project",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *UpdateProjectInput) (*UpdateProjectOutput, error) {
		actorID, err := projectOwner(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}

		before, err := store.Projects().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "project")
		}
		after := *before

		b := input.Body
		if b.Name != nil {
			after.Name = *b.Name
		}
		if b.Description != nil {
			after.Description = *b.Description
		}
		if b.Status != nil {
			after.Status = domain.ProjectStatus(*b.Status)
		}
		if b.StartDate != nil {
			after.StartDate = *b.StartDate
		}
		if b.EndDate != nil {
			after.EndDate = *b.EndDate
		}
		if b.TeamMemberIDs != nil {
			after.TeamMemberIDs = *b.TeamMemberIDs
		}
		if b.Deliverables != nil {
			after.Deliverables = *b.Deliverables
		}
		if b.Objectives != nil {
			after.Objectives = *b.Objectives
		}
		if after.Name == "" {
			return nil, huma.Error400BadRequest("name must not be empty")
		}
		if !after.EndDate.IsZero() && after.EndDate.Before(after.StartDate) {
			return nil, huma.Error400BadRequest("end date must be after start date")
		}
		after.UpdatedAt = time.Now()

		if updateErr := store.Projects().Update(ctx, &after); updateErr != nil {
			return nil, storeError(updateErr, "project")
		}

		audit.ProjectUpdated(ctx, actorID, before, &after)

		return &UpdateProjectOutput{Body: &after}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}",
		Summary:     "Delete a project and its tasks",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *DeleteProjectInput) (*struct{}, error) {
		actorID, err := projectOwner(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}

		p, err := store.Projects().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "project")
		}
		tasks, err := store.Tasks().ListByProject(ctx, p.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list project tasks", err)
		}

		for _, t := range tasks {
			if delErr := store.Tasks().Delete(ctx, t.ID); delErr != nil {
				return nil, storeError(delErr, "task")
			}
		}
		if delErr := store.Projects().Delete(ctx, p.ID); delErr != nil {
			return nil, storeError(delErr, "project")
		}

		audit.ProjectDeleted(ctx, actorID, p, tasks)

		return nil, nil
	})
}

// projectOwner returns the caller if they are an Admin or the manager of
// the project.
func projectOwner(ctx context.Context, store DataStore, projectID uuid.UUID) (uuid.UUID, error) {
	userID, role, err := requester(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if role == domain.RoleAdmin {
		return userID, nil
	}

	p, err := store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return uuid.Nil, storeError(err, "project")
	}
	if p.ManagerID != userID {
		return uuid.Nil, huma.Error403Forbidden("only the project manager may change this project")
	}
	return userID, nil
}

func newTask(projectID, createdBy uuid.UUID, tb TaskBody) *domain.Task {
	now := time.Now()
	return &domain.Task{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Title:       tb.Title,
		Description: tb.Description,
		Status:      domain.TaskStatusTodo,
		Priority:    tb.Priority,
		AssigneeIDs: tb.AssigneeIDs,
		StartDate:   tb.StartDate,
		DueDate:     tb.DueDate,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// rollbackProject removes a partially created project. Failures are logged;
// the caller already reports the original error.
func rollbackProject(ctx context.Context, store DataStore, p *domain.Project, tasks []*domain.Task) {
	for _, t := range tasks {
		if err := store.Tasks().Delete(ctx, t.ID); err != nil {
			log.Error().Err(err).Str("task_id", t.ID.String()).Msg("api: rollback task failed")
		}
	}
	if err := store.Projects().Delete(ctx, p.ID); err != nil {
		log.Error().Err(err).Str("project_id", p.ID.String()).Msg("api: rollback project failed")
	}
}
