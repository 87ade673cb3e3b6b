// Package predict provides schedule-based delay predictors. They compare the
// progress expected from elapsed calendar time with the progress actually
// reported and flag entities that are overdue or lagging.
package predict

import (
	"context"
	"math"
	"time"

	"github.com/gosuda/orkestra/internal/domain"
)

// DefaultGapThreshold is the lag in progress, as a fraction of the whole
// schedule, above which a non-overdue entity is flagged.
const DefaultGapThreshold = 0.3

const day = 24 * time.Hour

// Schedule implements domain.ProjectDelayPredictor and
// domain.TaskDelayPredictor.
type Schedule struct {
	now          func() time.Time
	gapThreshold float64
}

type Option func(*Schedule)

func WithClock(now func() time.Time) Option {
	return func(s *Schedule) { s.now = now }
}

func WithGapThreshold(v float64) Option {
	return func(s *Schedule) { s.gapThreshold = v }
}

func New(opts ...Option) *Schedule {
	s := &Schedule{now: time.Now, gapThreshold: DefaultGapThreshold}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ domain.ProjectDelayPredictor = (*Schedule)(nil)
	_ domain.TaskDelayPredictor    = (*Schedule)(nil)
)

func (s *Schedule) PredictProject(_ context.Context, p *domain.Project, tasks []*domain.Task) (domain.Prediction, error) {
	if p.Status == domain.ProjectStatusCompleted || p.EndDate.IsZero() {
		return noRisk(nil), nil
	}

	now := s.now()
	var done int
	for _, t := range tasks {
		if t.Status.Finished() {
			done++
		}
	}
	completed := 0.0
	if len(tasks) > 0 {
		completed = float64(done) / float64(len(tasks))
	}

	expected := expectedProgress(now, p.StartDate, p.EndDate, p.Status == domain.ProjectStatusPending)
	if p.Status == domain.ProjectStatusPending && completed > 0 {
		expected = completed
	}

	details := map[string]any{
		"progressExpected": round2(expected),
		"tasksCompleted":   round2(completed),
		"taskCount":        len(tasks),
	}
	return s.judge(now, p.StartDate, p.EndDate, expected, completed, details), nil
}

func (s *Schedule) PredictTask(_ context.Context, t *domain.Task) (domain.Prediction, error) {
	if t.Status.Finished() || t.DueDate.IsZero() {
		return noRisk(nil), nil
	}

	now := s.now()
	actual := statusProgress(t.Status)
	expected := expectedProgress(now, t.StartDate, t.DueDate, t.Status == domain.TaskStatusTodo)

	details := map[string]any{
		"progressExpected": round2(expected),
		"progressActual":   round2(actual),
		"assignees":        len(t.AssigneeIDs),
	}
	return s.judge(now, t.StartDate, t.DueDate, expected, actual, details), nil
}

func (s *Schedule) judge(now, start, end time.Time, expected, actual float64, details map[string]any) domain.Prediction {
	gap := expected - actual
	details["progressGap"] = round2(gap)

	if now.After(end) {
		details["overdue"] = true
		return domain.Prediction{
			RiskOfDelay: domain.RiskYes,
			DelayDays:   max(ceilDays(now.Sub(end)), 1),
			Details:     details,
		}
	}
	details["overdue"] = false

	if gap > s.gapThreshold {
		total := math.Max(end.Sub(start).Hours()/24, 1)
		return domain.Prediction{
			RiskOfDelay: domain.RiskYes,
			DelayDays:   max(int(math.Ceil(gap*total)), 1),
			Details:     details,
		}
	}
	return noRisk(details)
}

// expectedProgress is the elapsed fraction of [start, end], or 0 when work
// has not started.
func expectedProgress(now, start, end time.Time, notStarted bool) float64 {
	if notStarted || start.IsZero() || now.Before(start) {
		return 0
	}
	total := end.Sub(start)
	if total <= 0 {
		return 1
	}
	return math.Min(float64(now.Sub(start))/float64(total), 1)
}

func statusProgress(s domain.TaskStatus) float64 {
	switch s {
	case domain.TaskStatusInProgress:
		return 0.5
	case domain.TaskStatusReview:
		return 0.75
	case domain.TaskStatusDone, domain.TaskStatusTested:
		return 1
	default:
		return 0
	}
}

func noRisk(details map[string]any) domain.Prediction {
	return domain.Prediction{RiskOfDelay: domain.RiskNo, Details: details}
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
