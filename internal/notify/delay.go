package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orkestra/internal/domain"
)

// DelayAlert is a positive delay prediction for a project, or for a task
// when Task is set. Project is always set; for a task it is the task's
// project.
type DelayAlert struct {
	Project    *domain.Project
	Task       *domain.Task
	Prediction domain.Prediction
}

func (a DelayAlert) Kind() domain.NotificationKind {
	if a.Task != nil {
		return domain.KindTaskDelay
	}
	return domain.KindProjectDelay
}

func (a DelayAlert) EntityID() uuid.UUID {
	if a.Task != nil {
		return a.Task.ID
	}
	return a.Project.ID
}

func (a DelayAlert) Name() string {
	if a.Task != nil {
		return a.Task.Title
	}
	return a.Project.Name
}

// DelayResult pairs an alert with the outcome of its dispatch.
type DelayResult struct {
	Alert  DelayAlert
	Report Report
	Err    error
}

// DelayDispatcher is the part of Dispatcher the checker needs.
type DelayDispatcher interface {
	DispatchDelay(ctx context.Context, alert DelayAlert) (Report, error)
}

// DelayChecker runs the predictors over every project and task and
// dispatches an alert for each one at risk.
type DelayChecker struct {
	projects         domain.ProjectRepository
	tasks            domain.TaskRepository
	projectPredictor domain.ProjectDelayPredictor
	taskPredictor    domain.TaskDelayPredictor
	dispatcher       DelayDispatcher
}

func NewDelayChecker(
	projects domain.ProjectRepository,
	tasks domain.TaskRepository,
	projectPredictor domain.ProjectDelayPredictor,
	taskPredictor domain.TaskDelayPredictor,
	dispatcher DelayDispatcher,
) *DelayChecker {
	return &DelayChecker{
		projects:         projects,
		tasks:            tasks,
		projectPredictor: projectPredictor,
		taskPredictor:    taskPredictor,
		dispatcher:       dispatcher,
	}
}

// CheckDelays predicts every project and task and dispatches the positive
// ones, projects first. A failing prediction or dispatch is logged and
// reported in its result; it does not stop the cycle.
func (c *DelayChecker) CheckDelays(ctx context.Context) ([]DelayResult, error) {
	projects, err := c.projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify.DelayChecker.CheckDelays: projects: %w", err)
	}
	tasks, err := c.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify.DelayChecker.CheckDelays: tasks: %w", err)
	}

	byProject := make(map[uuid.UUID][]*domain.Task, len(projects))
	for _, t := range tasks {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}
	projectByID := make(map[uuid.UUID]*domain.Project, len(projects))
	for _, p := range projects {
		projectByID[p.ID] = p
	}

	var alerts []DelayAlert
	for _, p := range projects {
		pred, err := c.projectPredictor.PredictProject(ctx, p, byProject[p.ID])
		if err != nil {
			log.Error().Err(err).Str("project_id", p.ID.String()).Msg("notify: project delay prediction failed")
			continue
		}
		if pred.AtRisk() {
			alerts = append(alerts, DelayAlert{Project: p, Prediction: pred})
		}
	}
	for _, t := range tasks {
		project, ok := projectByID[t.ProjectID]
		if !ok {
			continue
		}
		pred, err := c.taskPredictor.PredictTask(ctx, t)
		if err != nil {
			log.Error().Err(err).Str("task_id", t.ID.String()).Msg("notify: task delay prediction failed")
			continue
		}
		if pred.AtRisk() {
			alerts = append(alerts, DelayAlert{Project: project, Task: t, Prediction: pred})
		}
	}

	results := make([]DelayResult, 0, len(alerts))
	for _, alert := range alerts {
		report, err := c.dispatcher.DispatchDelay(ctx, alert)
		if err != nil {
			log.Error().Err(err).
				Str("kind", string(alert.Kind())).
				Str("entity", alert.EntityID().String()).
				Msg("notify: delay dispatch failed")
		}
		results = append(results, DelayResult{Alert: alert, Report: report, Err: err})
	}

	log.Info().Int("alerts", len(alerts)).Msg("notify: delay check completed")
	return results, nil
}

// Run checks delays every interval until ctx is done.
func (c *DelayChecker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.CheckDelays(ctx); err != nil {
				log.Error().Err(err).Msg("notify: scheduled delay check failed")
			}
		}
	}
}
