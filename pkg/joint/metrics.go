package joint

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/textmode-dev/joint/pkg/protocol"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "joint").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for save duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the Prometheus collectors shared by every session of a
// registry. A nil *Metrics records nothing.
type Metrics struct {
	sessions     prometheus.Gauge
	participants *prometheus.GaugeVec
	events       *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	refused      prometheus.Counter
	sendErrors   prometheus.Counter
	saves        *prometheus.CounterVec
	saveDuration prometheus.Histogram
}

// NewMetrics creates and registers the collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "joint",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "sessions_active",
			Help:        "Number of running sessions",
			ConstLabels: config.ConstLabels,
		}),
		participants: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "participants_connected",
			Help:        "Number of connected participants per session",
			ConstLabels: config.ConstLabels,
		}, []string{"path"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "events_total",
			Help:        "Total number of envelopes dispatched, by action",
			ConstLabels: config.ConstLabels,
		}, []string{"action"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "events_dropped_total",
			Help:        "Total number of envelopes dropped, by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),
		refused: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "connects_refused_total",
			Help:        "Total number of CONNECTED requests refused for a bad password",
			ConstLabels: config.ConstLabels,
		}),
		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "send_errors_total",
			Help:        "Total number of failed websocket sends",
			ConstLabels: config.ConstLabels,
		}),
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "saves_total",
			Help:        "Total number of document saves, by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
		saveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "save_duration_seconds",
			Help:        "Document save duration in seconds",
			Buckets:     config.Buckets,
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Drop reasons.
const (
	dropMalformed     = "malformed"
	dropOutOfBounds   = "out_of_bounds"
	dropUnknownSender = "unknown_participant"
)

// Save results.
const (
	saveOK           = "ok"
	saveFailed       = "error"
	saveSnapshotFail = "snapshot_error"
)

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) sessionEnded(path string) {
	if m == nil {
		return
	}
	m.sessions.Dec()
	m.participants.DeleteLabelValues(path)
}

func (m *Metrics) setParticipants(path string, n int) {
	if m == nil {
		return
	}
	m.participants.WithLabelValues(path).Set(float64(n))
}

func (m *Metrics) event(a protocol.Action) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(a.String()).Inc()
}

func (m *Metrics) drop(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) refuse() {
	if m == nil {
		return
	}
	m.refused.Inc()
}

func (m *Metrics) sendError() {
	if m == nil {
		return
	}
	m.sendErrors.Inc()
}

func (m *Metrics) save(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(result).Inc()
	if result == saveOK {
		m.saveDuration.Observe(d.Seconds())
	}
}
