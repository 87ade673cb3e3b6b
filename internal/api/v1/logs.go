package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/domain"
)

type ListActivityLogsInput struct {
	UserID string `query:"userId" doc:"User whose view of the audit log is requested"`
	Page   int    `query:"page" doc:"1-based page number (default 1)"`
	Limit  int    `query:"limit" doc:"Page size (default 10, max 100)"`
}

type ActivityLogsBody struct {
	Logs        []*domain.ActivityEvent `json:"logs"`
	TotalLogs   int                     `json:"totalLogs"`
	CurrentPage int                     `json:"currentPage"`
	TotalPages  int                     `json:"totalPages"`
}

type ListActivityLogsOutput struct {
	Body ActivityLogsBody
}

type DeleteActivityLogsInput struct {
	Body struct {
		LogIDs []uuid.UUID `json:"logIds,omitempty" doc:"Activity log IDs to delete"`
		UserID string      `json:"userId,omitempty" doc:"Requesting user"`
	}
}

type DeleteActivityLogsOutput struct {
	Body struct {
		Deleted int64 `json:"deleted"`
	}
}

func RegisterLogRoutes(api huma.API, query ActivityQuery) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity-logs",
		Method:      http.MethodGet,
		Path:        "/logs/activity-logs",
		Summary:     "List the activity logs visible to a user",
		Tags:        []string{"Logs"},
	}, func(ctx context.Context, input *ListActivityLogsInput) (*ListActivityLogsOutput, error) {
		// Team Members never see the log, whatever they ask for.
		_, role, err := requester(ctx)
		if err != nil {
			return nil, err
		}
		if role == domain.RoleTeamMember {
			return nil, huma.Error403Forbidden("insufficient permissions")
		}

		userID, err := onBehalfOf(ctx, input.UserID)
		if err != nil {
			return nil, err
		}

		page, err := query.List(ctx, userID, input.Page, input.Limit)
		if err != nil {
			return nil, storeError(err, "user")
		}

		logs := page.Events
		if logs == nil {
			logs = []*domain.ActivityEvent{}
		}
		return &ListActivityLogsOutput{Body: ActivityLogsBody{
			Logs:        logs,
			TotalLogs:   page.Total,
			CurrentPage: page.Page,
			TotalPages:  page.TotalPages,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-activity-logs",
		Method:      http.MethodDelete,
		Path:        "/logs/activity-logs/delete",
		Summary:     "Delete activity logs (admin only)",
		Tags:        []string{"Logs"},
	}, func(ctx context.Context, input *DeleteActivityLogsInput) (*DeleteActivityLogsOutput, error) {
		userID, err := onBehalfOf(ctx, input.Body.UserID)
		if err != nil {
			return nil, err
		}

		n, err := query.Purge(ctx, userID, input.Body.LogIDs)
		if err != nil {
			return nil, storeError(err, "activity logs")
		}

		out := &DeleteActivityLogsOutput{}
		out.Body.Deleted = n
		return out, nil
	})
}
