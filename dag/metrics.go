package dag

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible instrumentation for a running
// graph: routing throughput, per-step latency, inbox depth, and
// message-dropped counts, namespaced "dagflow_".
//
// Exposed series:
//   - messages_routed_total (counter, labels node_id): emissions observed
//     per output name.
//   - step_latency_ms (histogram, labels step, status): duration of a
//     reactive step's Handle call (source Produce loops are not timed).
//   - inbox_depth (gauge, labels step): current queued messages per step.
//   - messages_dropped_total (counter, labels step, reason): messages a
//     step declined to emit further. OR-join absorption of later
//     arrivals is counted too, under reason "or_join_absorbed"; AND-join
//     and pooler buffering is not counted.
//   - join_pending (gauge, labels step): open correlation keys in a join.
//   - pooler_buffered (gauge, labels step): buffered messages in a pooler.
type Metrics struct {
	messagesRouted *prometheus.CounterVec
	stepLatency    *prometheus.HistogramVec
	inboxDepth     *prometheus.GaugeVec
	messagesDropped *prometheus.CounterVec
	joinPending    *prometheus.GaugeVec
	poolerBuffered *prometheus.GaugeVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics registers every series with registry (prometheus.DefaultRegisterer
// if nil) and returns a ready-to-use Metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := promauto.With(registry)

	return &Metrics{
		enabled: true,
		messagesRouted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "messages_routed_total",
			Help:      "Messages routed by output name",
		}, []string{"node_id"}),
		stepLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dagflow",
			Name:      "step_latency_ms",
			Help:      "Step Handle duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"step", "status"}),
		inboxDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dagflow",
			Name:      "inbox_depth",
			Help:      "Current number of messages queued in a step's inbox",
		}, []string{"step"}),
		messagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped by a step instead of emitted",
		}, []string{"step", "reason"}),
		joinPending: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dagflow",
			Name:      "join_pending",
			Help:      "Open correlation keys awaiting completion in a join step",
		}, []string{"step"}),
		poolerBuffered: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dagflow",
			Name:      "pooler_buffered",
			Help:      "Messages currently buffered in a pooler step",
		}, []string{"step"}),
	}
}

func (m *Metrics) RecordRouted(nodeID string) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.messagesRouted.WithLabelValues(nodeID).Inc()
}

func (m *Metrics) RecordStepLatency(step string, d time.Duration, status string) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.stepLatency.WithLabelValues(step, status).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) SetInboxDepth(step string, depth int) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.inboxDepth.WithLabelValues(step).Set(float64(depth))
}

func (m *Metrics) RecordDropped(step, reason string) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.messagesDropped.WithLabelValues(step, reason).Inc()
}

func (m *Metrics) SetJoinPending(step string, n int) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.joinPending.WithLabelValues(step).Set(float64(n))
}

func (m *Metrics) SetPoolerBuffered(step string, n int) {
	if m == nil || !m.isEnabled() {
		return
	}
	m.poolerBuffered.WithLabelValues(step).Set(float64(n))
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Disable stops metric recording (useful for benchmarks).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}
