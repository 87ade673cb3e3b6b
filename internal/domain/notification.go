package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelSlack Channel = "slack"
)

type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

type NotificationKind string

const (
	KindProjectDelay   NotificationKind = "project-delay"
	KindTaskDelay      NotificationKind = "task-delay"
	KindAnomaly        NotificationKind = "anomaly"
	KindRoleAssignment NotificationKind = "role-assignment"
)

// NotificationRecord is written once per delivery attempt, per channel, per
// recipient. Only Read changes after creation.
type NotificationRecord struct {
	ID              uuid.UUID          `json:"id"`
	UserID          uuid.UUID          `json:"user"`
	Channel         Channel            `json:"channel"`
	Recipient       string             `json:"recipient"`
	Subject         string             `json:"subject,omitempty"`
	Body            string             `json:"body"`
	Status          NotificationStatus `json:"status"`
	Kind            NotificationKind   `json:"notification_kind"`
	RelatedEntityID uuid.UUID          `json:"related_entity_id"`
	Read            bool               `json:"read"`
	CreatedAt       time.Time          `json:"created_at"`
}

type NotificationRepository interface {
	Create(ctx context.Context, n *NotificationRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*NotificationRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*NotificationRecord, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	ListRecent(ctx context.Context, limit int) ([]*NotificationRecord, error)
	// ExistsSince reports whether any record of kind about entityID was
	// created at or after since.
	ExistsSince(ctx context.Context, kind NotificationKind, entityID uuid.UUID, since time.Time) (bool, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
