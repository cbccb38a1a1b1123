package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared across metrics.
const (
	OutcomeOK       = "ok"
	OutcomeDenied   = "denied"
	OutcomeFailed   = "failed"
	OutcomeDropped  = "dropped"
	OutcomeTimeout  = "timeout"
	OutcomeDeferred = "deferred"
	OutcomeRejected = "rejected"
)

// Metrics holds Prometheus instruments for Warden.
type Metrics struct {
	CommandsTotal      *prometheus.CounterVec
	CommandLatency     *prometheus.HistogramVec
	LinkCardsTotal     prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
	ChannelRenames     *prometheus.CounterVec
	WaitlistSize       prometheus.Gauge
	DeploymentsTotal   *prometheus.CounterVec
	LoginAttemptsTotal prometheus.Counter
}

// NewMetrics creates Warden metric instruments registered with reg.
// A nil reg creates unregistered instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_commands_total",
			Help: "Slash-command invocations by command and outcome.",
		}, []string{"command", "outcome"}),
		CommandLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_command_latency_seconds",
			Help:    "Time spent handling a slash-command invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		LinkCardsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_link_cards_total",
			Help: "Pull-request link cards sent.",
		}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_waitlist_notifications_total",
			Help: "Waitlist notifications by outcome.",
		}, []string{"outcome"}),
		ChannelRenames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_channel_renames_total",
			Help: "Waitlist channel renames by outcome.",
		}, []string{"outcome"}),
		WaitlistSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "warden_waitlist_size",
			Help: "Most recent waitlist document count.",
		}),
		DeploymentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_command_deployments_total",
			Help: "Command registration syncs by outcome.",
		}, []string{"outcome"}),
		LoginAttemptsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_login_attempts_total",
			Help: "Gateway login attempts.",
		}),
	}
}

// RecordCommand records a handled invocation.
func (m *Metrics) RecordCommand(command, outcome string, seconds float64) {
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
	m.CommandLatency.WithLabelValues(command).Observe(seconds)
}

// RecordNotification records a waitlist notification attempt.
func (m *Metrics) RecordNotification(outcome string) {
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordRename records a channel rename attempt.
func (m *Metrics) RecordRename(outcome string) {
	m.ChannelRenames.WithLabelValues(outcome).Inc()
}

// RecordDeployment records a command registration sync.
func (m *Metrics) RecordDeployment(outcome string) {
	m.DeploymentsTotal.WithLabelValues(outcome).Inc()
}
