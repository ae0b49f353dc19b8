package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the call pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	WebhookEvents         *prometheus.CounterVec
	RoutingDecisions      *prometheus.CounterVec
	CallLogs              *prometheus.CounterVec
	TranscriptionEnqueues *prometheus.CounterVec
	TranscriptionTasks    *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	LedgerSubscribers     prometheus.Gauge
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// New returns the process-wide collectors, registering them on first use.
func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "crm_webhook_events_total",
				Help: "Telephony webhook deliveries by kind and outcome",
			}, []string{"kind", "outcome"}),
			RoutingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "crm_routing_decisions_total",
				Help: "Inbound routing decisions by action",
			}, []string{"action"}),
			CallLogs: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "crm_call_logs_total",
				Help: "Call log recording attempts by outcome",
			}, []string{"outcome"}),
			TranscriptionEnqueues: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "crm_transcription_enqueues_total",
				Help: "Transcription task enqueue attempts by outcome",
			}, []string{"outcome"}),
			TranscriptionTasks: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "crm_transcription_tasks_total",
				Help: "Processed transcription tasks by outcome",
			}, []string{"outcome"}),
			TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "crm_transcription_task_seconds",
				Help:    "Wall time of one transcription task",
				Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
			}),
			LedgerSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "crm_ledger_stream_subscribers",
				Help: "Open call ledger websocket streams",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) Webhook(kind, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Routed(action string) {
	if m == nil {
		return
	}
	m.RoutingDecisions.WithLabelValues(action).Inc()
}

func (m *Metrics) CallLogged(outcome string) {
	if m == nil {
		return
	}
	m.CallLogs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Enqueued(outcome string) {
	if m == nil {
		return
	}
	m.TranscriptionEnqueues.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TaskFinished(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.TranscriptionTasks.WithLabelValues(outcome).Inc()
	m.TranscriptionDuration.Observe(took.Seconds())
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.LedgerSubscribers.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.LedgerSubscribers.Dec()
}
