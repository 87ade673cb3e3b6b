package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is a user's position in the capability hierarchy.
type Role string

const (
	RoleGuest          Role = "Guest"
	RoleTeamMember     Role = "Team Member"
	RoleTeamLeader     Role = "Team Leader"
	RoleProjectManager Role = "Project Manager"
	RoleAdmin          Role = "Admin"
)

// Roles lists every role from least to most capable. Index is rank.
var Roles = []Role{ //nolint:gochecknoglobals // canonical enum list
	RoleGuest,
	RoleTeamMember,
	RoleTeamLeader,
	RoleProjectManager,
	RoleAdmin,
}

// Rank returns the capability rank of r. Unknown roles rank below Guest.
func (r Role) Rank() int {
	return slices.Index(Roles, r)
}

// AtLeast reports whether r is as capable as other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= 0 && r.Rank() >= other.Rank()
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// ParseRole resolves a role name, ignoring surrounding whitespace.
func ParseRole(name string) (Role, error) {
	r := Role(strings.TrimSpace(name))
	if !r.Valid() {
		return "", fmt.Errorf("role %q: %w", name, ErrValidation)
	}
	return r, nil
}

type User struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstname"`
	LastName  string    `json:"lastname"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName is the display name used in activity messages.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)
	ListByRole(ctx context.Context, role Role) ([]*User, error)
	List(ctx context.Context) ([]*User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error
}
