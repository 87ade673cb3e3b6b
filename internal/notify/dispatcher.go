package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gosuda/orkestra/internal/domain"
	"github.com/gosuda/orkestra/internal/metrics"
)

const (
	DefaultWorkers     = 8
	DefaultDedupWindow = 24 * time.Hour
)

// Report summarizes one fan-out. Skipped is set when a delay alert was
// suppressed by the dedup window and nothing was attempted.
type Report struct {
	Attempted int  `json:"attempted"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Skipped   bool `json:"skipped"`
}

// Dispatcher resolves recipients for anomalies and delay alerts and delivers
// role-tailored messages over every registered channel. Every attempt is
// recorded, successful or not.
type Dispatcher struct {
	users    domain.UserRepository
	projects domain.ProjectRepository
	records  domain.NotificationRepository
	senders  *Registry
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	workers  int
	window   time.Duration
	now      func() time.Time
}

type Option func(*Dispatcher)

// WithWorkers bounds the number of concurrent deliveries per fan-out.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRateLimit paces deliveries across all fan-outs. A zero limit disables
// pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = nil
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithDedupWindow overrides DefaultDedupWindow for delay alerts.
func WithDedupWindow(w time.Duration) Option {
	return func(d *Dispatcher) { d.window = w }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(
	users domain.UserRepository,
	projects domain.ProjectRepository,
	records domain.NotificationRepository,
	senders *Registry,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		users:    users,
		projects: projects,
		records:  records,
		senders:  senders,
		workers:  DefaultWorkers,
		window:   DefaultDedupWindow,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type recipient struct {
	user     *domain.User
	audience audience
}

// recipients accumulates users in order, keeping the first audience seen for
// each user.
type recipients struct {
	list []recipient
	seen map[uuid.UUID]struct{}
}

func (r *recipients) add(u *domain.User, aud audience) {
	if u == nil {
		return
	}
	if r.seen == nil {
		r.seen = make(map[uuid.UUID]struct{})
	}
	if _, ok := r.seen[u.ID]; ok {
		return
	}
	r.seen[u.ID] = struct{}{}
	r.list = append(r.list, recipient{user: u, audience: aud})
}

type delivery struct {
	to      *domain.User
	sender  Sender
	msg     Message
	kind    domain.NotificationKind
	related uuid.UUID
}

// DispatchAnomaly alerts the subject of a and everyone who oversees them.
func (d *Dispatcher) DispatchAnomaly(ctx context.Context, a domain.AnomalyRecord) (Report, error) {
	if a.Subject == nil {
		return Report{}, fmt.Errorf("notify.Dispatcher.DispatchAnomaly: no subject: %w", domain.ErrValidation)
	}

	admins, err := d.users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return Report{}, fmt.Errorf("notify.Dispatcher.DispatchAnomaly: admins: %w", err)
	}

	var (
		rs      recipients
		project *domain.Project
	)
	rs.add(a.Subject, audienceSubject)

	if a.Metric == domain.MetricTaskUpdateCount && a.ProjectID != uuid.Nil {
		project, err = d.projects.GetByID(ctx, a.ProjectID)
		if err != nil {
			return Report{}, fmt.Errorf("notify.Dispatcher.DispatchAnomaly: project: %w", err)
		}
		if err := d.addProjectOverseers(ctx, &rs, project); err != nil {
			return Report{}, fmt.Errorf("notify.Dispatcher.DispatchAnomaly: %w", err)
		}
	}
	for _, admin := range admins {
		rs.add(admin, audienceAdmin)
	}

	related := a.Subject.ID
	if project != nil {
		related = project.ID
	}

	var jobs []delivery
	for _, r := range rs.list {
		msg := anomalyMessage(a, project, r.user, r.audience)
		jobs = append(jobs, d.deliveries(r.user, msg, domain.KindAnomaly, related)...)
	}
	return d.fanOut(ctx, jobs), nil
}

// addProjectOverseers adds the project manager and the team leaders on p.
func (d *Dispatcher) addProjectOverseers(ctx context.Context, rs *recipients, p *domain.Project) error {
	ids := append([]uuid.UUID{p.ManagerID}, p.TeamMemberIDs...)
	users, err := d.users.ListByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("project members: %w", err)
	}
	for _, u := range users {
		if u.ID == p.ManagerID {
			rs.add(u, audienceManager)
		}
	}
	for _, u := range users {
		if u.Role == domain.RoleTeamLeader {
			rs.add(u, audienceLeader)
		}
	}
	return nil
}

// DispatchDelay alerts the people responsible for a delayed project or task
// unless an alert of the same kind about the same entity was recorded inside
// the dedup window.
func (d *Dispatcher) DispatchDelay(ctx context.Context, alert DelayAlert) (Report, error) {
	kind := alert.Kind()
	entity := alert.EntityID()

	exists, err := d.records.ExistsSince(ctx, kind, entity, d.now().Add(-d.window))
	if err != nil {
		return Report{}, fmt.Errorf("notify.Dispatcher.DispatchDelay: dedup check: %w", err)
	}
	if exists {
		d.metrics.DelaySuppressed()
		log.Debug().Str("kind", string(kind)).Str("entity", entity.String()).Msg("notify: delay alert already sent")
		return Report{Skipped: true}, nil
	}

	admins, err := d.users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return Report{}, fmt.Errorf("notify.Dispatcher.DispatchDelay: admins: %w", err)
	}

	var managerName string
	manager, err := d.users.GetByID(ctx, alert.Project.ManagerID)
	switch {
	case err == nil:
		managerName = manager.FullName()
	case errors.Is(err, domain.ErrNotFound):
		manager, managerName = nil, "Unknown"
	default:
		return Report{}, fmt.Errorf("notify.Dispatcher.DispatchDelay: manager: %w", err)
	}

	var (
		rs            recipients
		assigneeNames string
	)
	rs.add(manager, audienceManager)
	if alert.Task != nil {
		assignees, err := d.users.ListByIDs(ctx, alert.Task.AssigneeIDs)
		if err != nil {
			return Report{}, fmt.Errorf("notify.Dispatcher.DispatchDelay: assignees: %w", err)
		}
		names := make([]string, 0, len(assignees))
		for _, u := range assignees {
			rs.add(u, audienceAssignee)
			names = append(names, u.FullName())
		}
		assigneeNames = strings.Join(names, ", ")
		if assigneeNames == "" {
			assigneeNames = "Unknown"
		}
	}
	for _, admin := range admins {
		rs.add(admin, audienceAdmin)
	}

	var jobs []delivery
	for _, r := range rs.list {
		msg := delayMessage(alert, managerName, assigneeNames, r.user, r.audience)
		jobs = append(jobs, d.deliveries(r.user, msg, kind, entity)...)
	}
	return d.fanOut(ctx, jobs), nil
}

// DispatchRoleAssignment emails u about its new role.
func (d *Dispatcher) DispatchRoleAssignment(ctx context.Context, u *domain.User, role domain.Role) (Report, error) {
	sender, ok := d.senders.Get(domain.ChannelEmail)
	if !ok {
		return Report{}, nil
	}
	msg := roleAssignmentMessage(u, role)
	job, ok := d.delivery(u, sender, msg, domain.KindRoleAssignment, u.ID)
	if !ok {
		return Report{}, nil
	}
	return d.fanOut(ctx, []delivery{job}), nil
}

func (d *Dispatcher) deliveries(u *domain.User, msg Message, kind domain.NotificationKind, related uuid.UUID) []delivery {
	var out []delivery
	for _, s := range d.senders.Senders() {
		if job, ok := d.delivery(u, s, msg, kind, related); ok {
			out = append(out, job)
		}
	}
	return out
}

// delivery reports false when u has no address at all on s's channel.
func (d *Dispatcher) delivery(u *domain.User, s Sender, msg Message, kind domain.NotificationKind, related uuid.UUID) (delivery, bool) {
	if _, ok, err := s.Address(u); !ok && err == nil {
		return delivery{}, false
	}
	return delivery{to: u, sender: s, msg: msg, kind: kind, related: related}, true
}

// fanOut runs every delivery with bounded concurrency. A failed delivery
// never cancels its siblings.
func (d *Dispatcher) fanOut(ctx context.Context, jobs []delivery) Report {
	var (
		mu     sync.Mutex
		report Report
	)

	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for _, job := range jobs {
		g.Go(func() error {
			sent := d.deliver(ctx, job)

			mu.Lock()
			defer mu.Unlock()
			report.Attempted++
			if sent {
				report.Sent++
			} else {
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	return report
}

// deliver sends one message and records the attempt.
func (d *Dispatcher) deliver(ctx context.Context, job delivery) bool {
	ch := job.sender.Channel()
	rec := &domain.NotificationRecord{
		ID:              uuid.New(),
		UserID:          job.to.ID,
		Channel:         ch,
		Body:            job.msg.Body(ch),
		Status:          domain.NotificationSent,
		Kind:            job.kind,
		RelatedEntityID: job.related,
	}
	if ch == domain.ChannelEmail {
		rec.Subject = job.msg.Subject
	}

	addr, _, err := job.sender.Address(job.to)
	if err == nil && d.limiter != nil {
		err = d.limiter.Wait(ctx)
	}
	if err == nil {
		err = job.sender.Send(ctx, addr, job.msg)
	}

	rec.Recipient = addr
	if addr == "" {
		rec.Recipient = rawAddress(job.to, ch)
	}
	if err != nil {
		rec.Status = domain.NotificationFailed
		log.Warn().Err(err).
			Str("channel", string(ch)).
			Str("kind", string(job.kind)).
			Str("user_id", job.to.ID.String()).
			Msg("notify: delivery failed")
	}

	rec.CreatedAt = d.now()
	if cerr := d.records.Create(context.WithoutCancel(ctx), rec); cerr != nil {
		log.Error().Err(cerr).Str("notification_id", rec.ID.String()).Msg("notify: record attempt failed")
	}
	d.metrics.NotificationAttempted(string(ch), string(job.kind), string(rec.Status))

	return err == nil
}

func rawAddress(u *domain.User, ch domain.Channel) string {
	if ch == domain.ChannelSMS {
		return u.Phone
	}
	return u.Email
}
