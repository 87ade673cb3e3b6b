package v1

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/server/middleware"
)

// requester returns the authenticated user stored by the Auth middleware.
func requester(ctx context.Context) (uuid.UUID, domain.Role, error) {
	id, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, "", huma.Error401Unauthorized("authentication required")
	}
	role, _ := middleware.RoleFromContext(ctx)
	return id, role, nil
}

// requireRole returns the authenticated user if they rank at least minRole.
func requireRole(ctx context.Context, minRole domain.Role) (uuid.UUID, domain.Role, error) {
	id, role, err := requester(ctx)
	if err != nil {
		return uuid.Nil, "", err
	}
	if !role.AtLeast(minRole) {
		return uuid.Nil, "", huma.Error403Forbidden("insufficient permissions")
	}
	return id, role, nil
}

// onBehalfOf resolves the userId a client named in its request. Only Admins
// may act for another user.
func onBehalfOf(ctx context.Context, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, huma.Error400BadRequest("userId is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, huma.Error400BadRequest("userId must be a valid UUID")
	}
	self, role, err := requester(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if id != self && role != domain.RoleAdmin {
		return uuid.Nil, huma.Error403Forbidden("cannot act on behalf of another user")
	}
	return id, nil
}
