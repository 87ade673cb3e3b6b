package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "To Do"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusReview     TaskStatus = "Review"
	TaskStatusDone       TaskStatus = "Done"
	TaskStatusTested     TaskStatus = "Tested"
)

// Finished reports whether no further work is expected on the task.
func (s TaskStatus) Finished() bool {
	return s == TaskStatusDone || s == TaskStatusTested
}

type Task struct {
	ID          uuid.UUID   `json:"id"`
	ProjectID   uuid.UUID   `json:"project"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      TaskStatus  `json:"status"`
	Priority    string      `json:"priority"`
	AssigneeIDs []uuid.UUID `json:"assigned_to"`
	StartDate   time.Time   `json:"start_date"`
	DueDate     time.Time   `json:"due_date"`
	Importance  int         `json:"importance"`
	Urgency     int         `json:"urgency"`
	Effort      int         `json:"effort"`
	CreatedBy   uuid.UUID   `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Task, error)
	ListByProjects(ctx context.Context, projectIDs []uuid.UUID) ([]*Task, error)
	List(ctx context.Context) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id uuid.UUID) error
}
