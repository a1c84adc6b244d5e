// Package emit provides event emission and observability for graph runs.
package emit

// Event represents an observability event emitted while routing messages
// through a graph. Events provide detailed insight into behavior that
// otherwise only shows up in a message's own trace: step start/complete,
// dropped messages, join/pooler state transitions, and validation
// failures.
//
// Events are emitted to an Emitter which can log to stdout/stderr, send
// to OpenTelemetry, or buffer in memory for tests.
type Event struct {
	// RunID identifies the graph run that emitted this event. The
	// coordinator uses one run id for the whole process in both modes;
	// in request/response mode the request id is the MessageID instead.
	RunID string

	// MessageID is the id of the message this event concerns, or zero
	// for run-level events (startup, validation, shutdown).
	MessageID int64

	// StepName identifies which step emitted this event. Empty for
	// run-level events.
	StepName string

	// Msg is a human-readable event name, e.g. "step_start",
	// "message_dropped", "join_emit".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys: "duration_ms", "error", "node_id", "batch_id",
	// "reason".
	Meta map[string]interface{}
}
