package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hazard_alerts"

// Metrics holds the Prometheus collectors for alert runs.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec // labels: trigger={startup,interval,manual}
	RunsSkipped      prometheus.Counter
	RunDuration      prometheus.Histogram
	RunInProgress    prometheus.Gauge
	SitesChecked     prometheus.Counter
	SiteErrors       *prometheus.CounterVec // labels: stage={fetch,evaluate,store,panic}
	CandidatesFound  *prometheus.CounterVec // labels: severity
	AlertsSuppressed prometheus.Counter
	AlertsRecorded   *prometheus.CounterVec // labels: severity
	Dispatches       *prometheus.CounterVec // labels: outcome={sent,failed,skipped}
	EventsPublished  *prometheus.CounterVec // labels: outcome={success,error}
	CooldownCache    *prometheus.CounterVec // labels: result={hit,miss,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed alert runs by trigger.",
		}, []string{"trigger"}),
		RunsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_skipped_total",
			Help:      "Triggers rejected because a run was already in progress.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fan-out run across all sites.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a run is executing.",
		}),
		SitesChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sites_checked_total",
			Help:      "Sites processed across all runs.",
		}),
		SiteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "site_errors_total",
			Help:      "Per-site processing failures by stage.",
		}, []string{"stage"}),
		CandidatesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Hazard candidates produced by evaluation.",
		}, []string{"severity"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Candidates skipped because their cooldown was active.",
		}),
		AlertsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_recorded_total",
			Help:      "Alert records written.",
		}, []string{"severity"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Notification attempts by outcome.",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Alert events written to Kafka by outcome.",
		}, []string{"outcome"}),
		CooldownCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cooldown_cache_total",
			Help:      "Cooldown cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunsSkipped,
		m.RunDuration,
		m.RunInProgress,
		m.SitesChecked,
		m.SiteErrors,
		m.CandidatesFound,
		m.AlertsSuppressed,
		m.AlertsRecorded,
		m.Dispatches,
		m.EventsPublished,
		m.CooldownCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
