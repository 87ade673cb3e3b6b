package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orkestra"

// Metrics holds the collectors for the audit and alerting pipeline.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	activityRecorded     *prometheus.CounterVec
	activityDeduplicated prometheus.Counter
	auditFailures        *prometheus.CounterVec
	anomalies            *prometheus.CounterVec
	scanDuration         prometheus.Histogram
	scansSkipped         prometheus.Counter
	notifications        *prometheus.CounterVec
	delaysSuppressed     prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activityRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_recorded_total",
			Help:      "Audit events written, by action and target type.",
		}, []string{"action", "target_type"}),
		activityDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_deduplicated_total",
			Help:      "Audit events suppressed by the dedup window.",
		}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Audit hook failures swallowed after commit.",
		}, []string{"reason"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Anomalies emitted by the activity scanner.",
		}, []string{"metric"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "anomaly_scan_duration_seconds",
			Help:      "Wall time of one anomaly sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		scansSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomaly_scans_skipped_total",
			Help:      "Scheduled sweeps skipped because another sweep held the lock.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery attempts, by channel, kind and status.",
		}, []string{"channel", "kind", "status"}),
		delaysSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delay_notifications_suppressed_total",
			Help:      "Delay alerts skipped because one was sent inside the dedup window.",
		}),
	}

	m.registry.MustRegister(
		m.activityRecorded,
		m.activityDeduplicated,
		m.auditFailures,
		m.anomalies,
		m.scanDuration,
		m.scansSkipped,
		m.notifications,
		m.delaysSuppressed,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ActivityRecorded(action, targetType string) {
	if m == nil {
		return
	}
	m.activityRecorded.WithLabelValues(action, targetType).Inc()
}

func (m *Metrics) ActivityDeduplicated() {
	if m == nil {
		return
	}
	m.activityDeduplicated.Inc()
}

func (m *Metrics) AuditFailed(reason string) {
	if m == nil {
		return
	}
	m.auditFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) AnomalyDetected(metric string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(metric).Inc()
}

func (m *Metrics) ScanFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(d.Seconds())
}

func (m *Metrics) ScanSkipped() {
	if m == nil {
		return
	}
	m.scansSkipped.Inc()
}

func (m *Metrics) NotificationAttempted(channel, kind, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, kind, status).Inc()
}

func (m *Metrics) DelaySuppressed() {
	if m == nil {
		return
	}
	m.delaysSuppressed.Inc()
}
