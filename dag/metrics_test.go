package dag

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordRoutedIncrementsCounter(t *testing.T) {
	m := newTestMetrics()
	m.RecordRouted("raw")
	m.RecordRouted("raw")

	if got := testutil.ToFloat64(m.messagesRouted.WithLabelValues("raw")); got != 2 {
		t.Errorf("expected messages_routed_total{node_id=\"raw\"} = 2, got %v", got)
	}
}

func TestMetricsRecordDroppedIncrementsByStepAndReason(t *testing.T) {
	m := newTestMetrics()
	m.RecordDropped("mlmodel", "empty_vector")

	if got := testutil.ToFloat64(m.messagesDropped.WithLabelValues("mlmodel", "empty_vector")); got != 1 {
		t.Errorf("expected messages_dropped_total = 1, got %v", got)
	}
}

func TestMetricsSetInboxDepthAndJoinPendingAndPoolerBuffered(t *testing.T) {
	m := newTestMetrics()
	m.SetInboxDepth("step1", 5)
	m.SetJoinPending("join", 3)
	m.SetPoolerBuffered("pool", 7)

	if got := testutil.ToFloat64(m.inboxDepth.WithLabelValues("step1")); got != 5 {
		t.Errorf("expected inbox_depth = 5, got %v", got)
	}
	if got := testutil.ToFloat64(m.joinPending.WithLabelValues("join")); got != 3 {
		t.Errorf("expected join_pending = 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.poolerBuffered.WithLabelValues("pool")); got != 7 {
		t.Errorf("expected pooler_buffered = 7, got %v", got)
	}
}

func TestMetricsRecordStepLatencyCreatesOneSeries(t *testing.T) {
	m := newTestMetrics()
	m.RecordStepLatency("normalize", 15*time.Millisecond, "ok")

	if got := testutil.CollectAndCount(m.stepLatency); got != 1 {
		t.Errorf("expected exactly one collected series, got %d", got)
	}
}

func TestMetricsDisableStopsRecording(t *testing.T) {
	m := newTestMetrics()
	m.Disable()
	m.RecordRouted("raw")

	if got := testutil.ToFloat64(m.messagesRouted.WithLabelValues("raw")); got != 0 {
		t.Errorf("expected no recording after Disable, got %v", got)
	}
}

func TestMetricsNilReceiverMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	// Exercises the nil-receiver guard on every method; must not panic.
	m.RecordRouted("x")
	m.RecordStepLatency("x", time.Millisecond, "ok")
	m.SetInboxDepth("x", 1)
	m.RecordDropped("x", "reason")
	m.SetJoinPending("x", 1)
	m.SetPoolerBuffered("x", 1)
}
