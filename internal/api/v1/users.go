package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orkestra/internal/domain"
)

type UpdateUserRoleInput struct {
	ID   uuid.UUID `path:"id" doc:"User ID"`
	Body struct {
		Role string `json:"role" minLength:"1" doc:"Guest, Team Member, Team Leader, Project Manager or Admin"`
	}
}

type UpdateUserRoleOutput struct {
	Body *domain.User
}

func RegisterUserRoutes(api huma.API, store DataStore, audit AuditInterceptor, notifier RoleNotifier) {
	huma.Register(api, huma.Operation{
		OperationID: "update-user-role",
		Method:      http.MethodPut,
		Path:        "/users/{id}/role",
		Summary:     "Assign a role to a user (admin only)",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *UpdateUserRoleInput) (*UpdateUserRoleOutput, error) {
		actorID, _, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, err
		}

		role, err := domain.ParseRole(input.Body.Role)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		u, err := store.Users().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "user")
		}
		previous := u.Role
		if previous == role {
			return &UpdateUserRoleOutput{Body: u}, nil
		}

		if updateErr := store.Users().UpdateRole(ctx, u.ID, role); updateErr != nil {
			return nil, storeError(updateErr, "user")
		}
		u.Role = role

		audit.RoleChanged(ctx, actorID, u, previous, role)

		report, err := notifier.DispatchRoleAssignment(ctx, u, role)
		if err != nil {
			log.Error().Err(err).Str("user_id", u.ID.String()).Msg("api: role assignment notification failed")
		} else if report.Failed > 0 {
			log.Warn().Str("user_id", u.ID.String()).Int("failed", report.Failed).Msg("api: role assignment notification partially failed")
		}

		return &UpdateUserRoleOutput{Body: u}, nil
	})
}
