package domain

import (
	"time"

	"github.com/google/uuid"
)

type MetricKind string

const (
	MetricActionCount     MetricKind = "ACTION_COUNT"
	MetricTaskUpdateCount MetricKind = "TASK_UPDATE_COUNT"
)

// AnomalyRecord is produced by a scan and handed to the dispatcher. It is
// never persisted.
type AnomalyRecord struct {
	Subject     *User
	Role        Role
	Metric      MetricKind
	Count       int
	WindowStart time.Time
	WindowEnd   time.Time
	ProjectID   uuid.UUID // set for MetricTaskUpdateCount only
	Events      []*ActivityEvent
}
