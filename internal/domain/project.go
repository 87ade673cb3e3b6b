package domain

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "Pending"
	ProjectStatusInProgress ProjectStatus = "In Progress"
	ProjectStatusCompleted  ProjectStatus = "Completed"
)

type Project struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Status        ProjectStatus `json:"status"`
	StartDate     time.Time     `json:"start_date"`
	EndDate       time.Time     `json:"end_date"`
	ManagerID     uuid.UUID     `json:"project_manager"`
	TeamMemberIDs []uuid.UUID   `json:"team_members"`
	Deliverables  []string      `json:"deliverables"`
	Objectives    []string      `json:"objectives"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewProject creates a Project with validated required fields and defaults.
func NewProject(name string, managerID uuid.UUID, start, end time.Time) (*Project, error) {
	if name == "" {
		return nil, errors.New("project: name is required")
	}
	if managerID == uuid.Nil {
		return nil, errors.New("project: manager is required")
	}
	if !end.IsZero() && end.Before(start) {
		return nil, errors.New("project: end date must be after start date")
	}
	now := time.Now()
	return &Project{
		ID:        uuid.New(),
		Name:      name,
		Status:    ProjectStatusPending,
		StartDate: start,
		EndDate:   end,
		ManagerID: managerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasMember reports whether userID manages or belongs to the project.
func (p *Project) HasMember(userID uuid.UUID) bool {
	return p.ManagerID == userID || slices.Contains(p.TeamMemberIDs, userID)
}

type ProjectRepository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	Update(ctx context.Context, p *Project) error
	List(ctx context.Context) ([]*Project, error)
	ListByManager(ctx context.Context, managerID uuid.UUID) ([]*Project, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]*Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
