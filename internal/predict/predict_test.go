package predict_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/predict"
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

func TestPredictProject(t *testing.T) {
	t.Parallel()

	p := predict.New(predict.WithClock(fixedClock))
	start := now.AddDate(0, 0, -50)

	done := &domain.Task{ID: uuid.New(), Status: domain.TaskStatusDone}
	todo := &domain.Task{ID: uuid.New(), Status: domain.TaskStatusTodo}

	tests := []struct {
		name     string
		project  *domain.Project
		tasks    []*domain.Task
		risk     bool
		minDelay int
	}{
		{
			name:     "overdue",
			project:  &domain.Project{Status: domain.ProjectStatusInProgress, StartDate: start, EndDate: now.AddDate(0, 0, -3)},
			tasks:    []*domain.Task{todo},
			risk:     true,
			minDelay: 3,
		},
		{
			name:     "lagging",
			project:  &domain.Project{Status: domain.ProjectStatusInProgress, StartDate: start, EndDate: now.AddDate(0, 0, 50)},
			tasks:    []*domain.Task{todo, todo},
			risk:     true,
			minDelay: 1,
		},
		{
			name:    "on track",
			project: &domain.Project{Status: domain.ProjectStatusInProgress, StartDate: start, EndDate: now.AddDate(0, 0, 50)},
			tasks:   []*domain.Task{done, todo},
		},
		{
			name:    "completed is never at risk",
			project: &domain.Project{Status: domain.ProjectStatusCompleted, StartDate: start, EndDate: now.AddDate(0, 0, -10)},
		},
		{
			name:    "pending before start",
			project: &domain.Project{Status: domain.ProjectStatusPending, StartDate: now.AddDate(0, 0, 5), EndDate: now.AddDate(0, 0, 30)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := p.PredictProject(context.Background(), tt.project, tt.tasks)
			require.NoError(t, err)
			assert.Equal(t, tt.risk, got.AtRisk())
			if tt.risk {
				assert.GreaterOrEqual(t, got.DelayDays, tt.minDelay)
			} else {
				assert.Zero(t, got.DelayDays)
			}
		})
	}
}

func TestPredictTask(t *testing.T) {
	t.Parallel()

	p := predict.New(predict.WithClock(fixedClock))

	t.Run("overdue by two and a half days rounds up", func(t *testing.T) {
		t.Parallel()

		got, err := p.PredictTask(context.Background(), &domain.Task{
			Status:    domain.TaskStatusInProgress,
			StartDate: now.AddDate(0, 0, -10),
			DueDate:   now.Add(-60 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RiskYes, got.RiskOfDelay)
		assert.Equal(t, 3, got.DelayDays)
		assert.Equal(t, true, got.Details["overdue"])
	})

	t.Run("finished task", func(t *testing.T) {
		t.Parallel()

		got, err := p.PredictTask(context.Background(), &domain.Task{
			Status:  domain.TaskStatusTested,
			DueDate: now.AddDate(0, 0, -10),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RiskNo, got.RiskOfDelay)
	})

	t.Run("no due date", func(t *testing.T) {
		t.Parallel()

		got, err := p.PredictTask(context.Background(), &domain.Task{Status: domain.TaskStatusTodo})
		require.NoError(t, err)
		assert.False(t, got.AtRisk())
	})

	t.Run("review near the end is on track", func(t *testing.T) {
		t.Parallel()

		got, err := p.PredictTask(context.Background(), &domain.Task{
			Status:    domain.TaskStatusReview,
			StartDate: now.AddDate(0, 0, -9),
			DueDate:   now.AddDate(0, 0, 1),
		})
		require.NoError(t, err)
		assert.False(t, got.AtRisk())
	})
}
