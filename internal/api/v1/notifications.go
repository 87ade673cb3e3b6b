package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/orkestra/internal/activity"
	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/notify"
)

const historyLimit = 50

type DelayAlertResult struct {
	Kind      domain.NotificationKind `json:"kind"`
	EntityID  uuid.UUID               `json:"entityId"`
	Name      string                  `json:"name"`
	DelayDays int                     `json:"delayDays"`
	Report    notify.Report           `json:"report"`
	Error     string                  `json:"error,omitempty"`
}

type CheckDelaysInput struct{}

type CheckDelaysOutput struct {
	Body struct {
		Alerts []DelayAlertResult `json:"alerts"`
	}
}

type MyNotificationsInput struct {
	Page  int `query:"page" doc:"1-based page number (default 1)"`
	Limit int `query:"limit" doc:"Page size (default 10, max 100)"`
}

type MyNotificationsOutput struct {
	Body struct {
		Notifications []*domain.NotificationRecord `json:"notifications"`
		Total         int                          `json:"total"`
		CurrentPage   int                          `json:"currentPage"`
		TotalPages    int                          `json:"totalPages"`
	}
}

type MarkReadInput struct {
	ID uuid.UUID `path:"id" doc:"Notification ID"`
}

type MarkReadOutput struct {
	Body *domain.NotificationRecord
}

type NotificationHistoryInput struct{}

type NotificationHistoryOutput struct {
	Body []*domain.NotificationRecord
}

type PurgeNotificationsInput struct {
	Body struct {
		IDs []uuid.UUID `json:"ids" minItems:"1" doc:"Notification IDs to delete"`
	}
}

type PurgeNotificationsOutput struct {
	Body struct {
		Deleted int64 `json:"deleted"`
	}
}

func RegisterNotificationRoutes(api huma.API, store DataStore, checker DelayChecker, audit AuditInterceptor) {
	huma.Register(api, huma.Operation{
		OperationID: "check-delays",
		Method:      http.MethodPost,
		Path:        "/notifications/check-delays",
		Summary:     "Run delay prediction and alert on projects and tasks at risk",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, _ *CheckDelaysInput) (*CheckDelaysOutput, error) {
		actorID, _, err := requireRole(ctx, domain.RoleProjectManager)
		if err != nil {
			return nil, err
		}

		results, err := checker.CheckDelays(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to check delays", err)
		}

		out := &CheckDelaysOutput{}
		out.Body.Alerts = make([]DelayAlertResult, 0, len(results))
		preds := make([]activity.Predicted, 0, len(results))
		for _, r := range results {
			res := DelayAlertResult{
				Kind:      r.Alert.Kind(),
				EntityID:  r.Alert.EntityID(),
				Name:      r.Alert.Name(),
				DelayDays: r.Alert.Prediction.DelayDays,
				Report:    r.Report,
			}
			if r.Err != nil {
				res.Error = r.Err.Error()
			}
			out.Body.Alerts = append(out.Body.Alerts, res)

			// Only alerts that actually went out are worth an activity entry.
			if r.Report.Skipped || r.Err != nil {
				continue
			}
			target := domain.TargetProject
			if r.Alert.Task != nil {
				target = domain.TargetTask
			}
			preds = append(preds, activity.Predicted{
				TargetType: target,
				TargetID:   res.EntityID,
				Name:       res.Name,
				DelayDays:  res.DelayDays,
			})
		}
		audit.DelaysPredicted(ctx, actorID, preds)

		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications/my-notifications",
		Summary:     "List the caller's notifications, newest first",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *MyNotificationsInput) (*MyNotificationsOutput, error) {
		userID, _, err := requester(ctx)
		if err != nil {
			return nil, err
		}

		page, limit := input.Page, input.Limit
		if page < 1 {
			page = activity.DefaultPage
		}
		if limit < 1 {
			limit = activity.DefaultPageSize
		}
		limit = min(limit, activity.MaxPageSize)

		total, err := store.Notifications().CountByUser(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count notifications", err)
		}
		records, err := store.Notifications().ListByUser(ctx, userID, limit, (page-1)*limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list notifications", err)
		}
		if records == nil {
			records = []*domain.NotificationRecord{}
		}

		out := &MyNotificationsOutput{}
		out.Body.Notifications = records
		out.Body.Total = total
		out.Body.CurrentPage = page
		out.Body.TotalPages = (total + limit - 1) / limit
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPut,
		Path:        "/notifications/mark-read/{id}",
		Summary:     "Mark one of the caller's notifications as read",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *MarkReadInput) (*MarkReadOutput, error) {
		userID, _, err := requester(ctx)
		if err != nil {
			return nil, err
		}

		n, err := store.Notifications().GetByID(ctx, input.ID)
		if err != nil {
			return nil, storeError(err, "notification")
		}
		if n.UserID != userID {
			return nil, huma.Error403Forbidden("notification belongs to another user")
		}

		if markErr := store.Notifications().MarkRead(ctx, n.ID); markErr != nil {
			return nil, storeError(markErr, "notification")
		}
		n.Read = true

		return &MarkReadOutput{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "notification-history",
		Method:      http.MethodGet,
		Path:        "/notifications/history",
		Summary:     "List the latest notifications sent to anyone (admin only)",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, _ *NotificationHistoryInput) (*NotificationHistoryOutput, error) {
		if _, _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, err
		}

		records, err := store.Notifications().ListRecent(ctx, historyLimit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list notifications", err)
		}
		if records == nil {
			records = []*domain.NotificationRecord{}
		}
		return &NotificationHistoryOutput{Body: records}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "purge-notifications",
		Method:      http.MethodDelete,
		Path:        "/notifications/purge",
		Summary:     "Delete notifications by ID (admin only)",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *PurgeNotificationsInput) (*PurgeNotificationsOutput, error) {
		if _, _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, err
		}

		n, err := store.Notifications().DeleteByIDs(ctx, input.Body.IDs)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to delete notifications", err)
		}
		if n == 0 {
			return nil, huma.Error404NotFound("notifications not found")
		}

		out := &PurgeNotificationsOutput{}
		out.Body.Deleted = n
		return out, nil
	})
}
