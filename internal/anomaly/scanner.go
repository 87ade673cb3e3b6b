// Package anomaly sweeps the recent audit log for users whose activity rate
// exceeds what their role normally produces.
package anomaly

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/metrics"
	"github.com/gosuda/orkestra/internal/notify"
)

const (
	DefaultWindow    = time.Hour
	DefaultThreshold = 5
	DefaultInterval  = 15 * time.Minute
)

// Sink receives each detected anomaly. *notify.Dispatcher satisfies it.
type Sink interface {
	DispatchAnomaly(ctx context.Context, a domain.AnomalyRecord) (notify.Report, error)
}

// Locker guards a sweep across processes. Acquire reports false when another
// holder has the lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// EventSource is the slice of the audit log the scanner reads.
type EventSource interface {
	ListSince(ctx context.Context, since time.Time) ([]*domain.ActivityEvent, error)
}

// TaskLookup resolves the project of each updated task.
type TaskLookup interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Task, error)
}

// UserSource lists every user with its role.
type UserSource interface {
	List(ctx context.Context) ([]*domain.User, error)
}

const lockKey = "anomaly:scan"

type Scanner struct {
	users     UserSource
	events    EventSource
	tasks     TaskLookup
	sink      Sink
	locker    Locker
	metrics   *metrics.Metrics
	window    time.Duration
	threshold int
	now       func() time.Time

	running atomic.Bool
}

type Option func(*Scanner)

func WithWindow(d time.Duration) Option {
	return func(s *Scanner) { s.window = d }
}

// WithThreshold sets the count that must be exceeded, not reached.
func WithThreshold(n int) Option {
	return func(s *Scanner) { s.threshold = n }
}

func WithLocker(l Locker) Option {
	return func(s *Scanner) { s.locker = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

func NewScanner(users UserSource, events EventSource, tasks TaskLookup, sink Sink, opts ...Option) *Scanner {
	s := &Scanner{
		users:     users,
		events:    events,
		tasks:     tasks,
		sink:      sink,
		window:    DefaultWindow,
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs one sweep over the trailing window and dispatches every anomaly
// found. A failure for one user is logged and the sweep continues.
func (s *Scanner) Scan(ctx context.Context) ([]domain.AnomalyRecord, error) {
	started := time.Now()
	defer func() { s.metrics.ScanFinished(time.Since(started)) }()

	end := s.now()
	start := end.Add(-s.window)

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("anomaly.Scanner.Scan: users: %w", err)
	}
	events, err := s.events.ListSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("anomaly.Scanner.Scan: events: %w", err)
	}

	byActor := make(map[uuid.UUID][]*domain.ActivityEvent)
	for _, e := range events {
		if e.CreatedAt.After(end) {
			continue
		}
		byActor[e.ActorID] = append(byActor[e.ActorID], e)
	}

	var found []domain.AnomalyRecord
	for _, u := range users {
		userEvents := byActor[u.ID]
		if len(userEvents) == 0 {
			continue
		}

		records, err := s.evaluate(ctx, u, userEvents, start, end)
		if err != nil {
			log.Error().Err(err).Str("user_id", u.ID.String()).Msg("anomaly: evaluate user failed")
			continue
		}

		for _, rec := range records {
			s.metrics.AnomalyDetected(string(rec.Metric))
			log.Warn().
				Str("user_id", u.ID.String()).
				Str("role", string(u.Role)).
				Str("metric", string(rec.Metric)).
				Int("count", rec.Count).
				Msg("anomaly: detected")

			if _, err := s.sink.DispatchAnomaly(ctx, rec); err != nil {
				log.Error().Err(err).Str("user_id", u.ID.String()).Msg("anomaly: dispatch failed")
			}
			found = append(found, rec)
		}
	}

	return found, nil
}

func (s *Scanner) evaluate(ctx context.Context, u *domain.User, events []*domain.ActivityEvent, start, end time.Time) ([]domain.AnomalyRecord, error) {
	switch u.Role {
	case domain.RoleAdmin, domain.RoleProjectManager, domain.RoleTeamLeader:
		if len(events) <= s.threshold {
			return nil, nil
		}
		return []domain.AnomalyRecord{{
			Subject:     u,
			Role:        u.Role,
			Metric:      domain.MetricActionCount,
			Count:       len(events),
			WindowStart: start,
			WindowEnd:   end,
			Events:      events,
		}}, nil

	case domain.RoleTeamMember:
		return s.taskUpdates(ctx, u, events, start, end)

	default:
		return nil, nil
	}
}

// taskUpdates emits one anomaly per project when a team member's task
// updates exceed the threshold. Updates on tasks that no longer exist are
// not attributed to any project.
func (s *Scanner) taskUpdates(ctx context.Context, u *domain.User, events []*domain.ActivityEvent, start, end time.Time) ([]domain.AnomalyRecord, error) {
	var updates []*domain.ActivityEvent
	for _, e := range events {
		if e.Action == domain.ActionUpdate && e.TargetType == domain.TargetTask {
			updates = append(updates, e)
		}
	}
	if len(updates) <= s.threshold {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(updates))
	for _, e := range updates {
		ids = append(ids, e.TargetID)
	}
	tasks, err := s.tasks.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve tasks: %w", err)
	}
	projectOf := make(map[uuid.UUID]uuid.UUID, len(tasks))
	for _, t := range tasks {
		projectOf[t.ID] = t.ProjectID
	}

	var order []uuid.UUID
	groups := make(map[uuid.UUID][]*domain.ActivityEvent)
	for _, e := range updates {
		pid, ok := projectOf[e.TargetID]
		if !ok {
			continue
		}
		if _, seen := groups[pid]; !seen {
			order = append(order, pid)
		}
		groups[pid] = append(groups[pid], e)
	}

	out := make([]domain.AnomalyRecord, 0, len(order))
	for _, pid := range order {
		out = append(out, domain.AnomalyRecord{
			Subject:     u,
			Role:        u.Role,
			Metric:      domain.MetricTaskUpdateCount,
			Count:       len(groups[pid]),
			WindowStart: start,
			WindowEnd:   end,
			ProjectID:   pid,
			Events:      groups[pid],
		})
	}
	return out, nil
}

// RunOnce performs a sweep unless one is already in progress, here or in
// another process holding the lock. It reports whether a sweep ran.
func (s *Scanner) RunOnce(ctx context.Context, lockTTL time.Duration) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.ScanSkipped()
		log.Warn().Msg("anomaly: previous sweep still running, skipping")
		return false
	}
	defer s.running.Store(false)

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, lockKey, lockTTL)
		if err != nil {
			log.Error().Err(err).Msg("anomaly: acquire scan lock failed")
			return false
		}
		if !ok {
			s.metrics.ScanSkipped()
			log.Info().Msg("anomaly: sweep held by another process, skipping")
			return false
		}
		defer release()
	}

	found, err := s.Scan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("anomaly: sweep failed")
		return true
	}
	log.Info().Int("anomalies", len(found)).Msg("anomaly: sweep completed")
	return true
}

// Run sweeps once immediately and then every interval until ctx is done.
// Sweeps run on the calling goroutine, so ticks that fire during an overrun
// are dropped and Run returns only after the sweep in progress has finished.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	s.RunOnce(ctx, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, interval)
		}
	}
}
