package dag

import "time"

// TraceRecord is one entry in a Message's trace: a record of which step
// handled the message, how long it took, and a snapshot of the params the
// step was configured with at the time. Steps append a record before
// re-emitting; sinks serialize the accumulated trace for inspection.
type TraceRecord struct {
	StepName string                 `json:"node_id"`
	Duration time.Duration          `json:"duration"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

// Message is the immutable value packet routed between steps. Once
// emitted, a Message's fields are never mutated in place; a step that
// wants to change the data produces a new Message value (typically via
// WithData) carrying the accumulated trace forward.
//
// NodeID is the routing key: it names the *output* the message was
// emitted under, not the step that produced it. The coordinator looks up
// NodeID in its adjacency table to find every downstream step.
type Message struct {
	ID         int64
	NodeID     string
	Data       []float64
	BatchID    *int64
	BatchTotal *int64
	Trace      []TraceRecord
}

// HasBatch reports whether both batch fields are set, the precondition
// batch-id poolers and correlation keys require.
func (m Message) HasBatch() bool {
	return m.BatchID != nil && m.BatchTotal != nil
}

// Key returns the correlation key joins and poolers key their state by:
// the batch id when present, otherwise the message id.
func (m Message) Key() int64 {
	if m.BatchID != nil {
		return *m.BatchID
	}
	return m.ID
}

// WithTrace returns a copy of m with rec appended to its trace. The
// original message's trace slice is never mutated, so the same
// upstream message can safely be routed to multiple downstream steps.
func (m Message) WithTrace(rec TraceRecord) Message {
	trace := make([]TraceRecord, len(m.Trace), len(m.Trace)+1)
	copy(trace, m.Trace)
	trace = append(trace, rec)
	m.Trace = trace
	return m
}

// WithData returns a copy of m with Data replaced and the given trace
// record appended, the common shape of a stateless transform's output.
func (m Message) WithData(nodeID string, data []float64, rec TraceRecord) Message {
	out := m.WithTrace(rec)
	out.NodeID = nodeID
	out.Data = data
	return out
}

// Int64Ptr is a small helper for constructing optional batch fields in
// tests and config loading without spelling out a local variable.
func Int64Ptr(v int64) *int64 {
	return &v
}
