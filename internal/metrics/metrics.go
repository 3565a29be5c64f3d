package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "swapwatch"

// Metrics holds the collectors exported on /metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	WebhookRequests  *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec
	TradeOutcomes    *prometheus.CounterVec
	TradesStored     prometheus.Counter
	AlertsSent       prometheus.Counter
	AlertsFailed     prometheus.Counter
	EnrichmentErrors *prometheus.CounterVec
	SchedulerJobRuns *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhookRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Webhook deliveries by HTTP status code",
		}, []string{"code"}),
		WebhookLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "duration_seconds",
			Help:      "Webhook handling latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		TradeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "outcomes_total",
			Help:      "Transactions handled by outcome status and reason",
		}, []string{"status", "reason"}),
		TradesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "stored_total",
			Help:      "Trades persisted to the store",
		}),
		AlertsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "sent_total",
			Help:      "Alerts delivered to the notifier",
		}),
		AlertsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "failed_total",
			Help:      "Alerts that could not be composed or delivered",
		}),
		EnrichmentErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "errors_total",
			Help:      "Upstream enrichment failures by source",
		}, []string{"source"}),
		SchedulerJobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result",
		}, []string{"job", "result"}),
	}
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveWebhook(code int, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WebhookRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	m.WebhookLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordOutcome(status, reason string) {
	if m == nil {
		return
	}
	m.TradeOutcomes.WithLabelValues(status, reason).Inc()
}

func (m *Metrics) RecordTradeStored() {
	if m == nil {
		return
	}
	m.TradesStored.Inc()
}

func (m *Metrics) RecordAlert(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.AlertsFailed.Inc()
		return
	}
	m.AlertsSent.Inc()
}

func (m *Metrics) RecordEnrichmentError(source string) {
	if m == nil {
		return
	}
	m.EnrichmentErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordJob(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SchedulerJobRuns.WithLabelValues(job, result).Inc()
}
