package emit

import "context"

// Emitter receives and processes observability events from graph
// execution. Implementations enable pluggable observability backends:
// logging, OpenTelemetry spans, or an in-memory buffer for tests.
//
// Implementations should be non-blocking and safe for concurrent use:
// every step runs in its own goroutine and may emit events at any time.
type Emitter interface {
	// Emit sends a single observability event to the configured
	// backend. Emit must not block graph execution and must not panic;
	// backend errors should be logged internally instead of returned.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation, amortizing
	// overhead for high-volume emission (e.g. per-message routing
	// events in a tight streaming loop).
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events have been delivered to the
	// backend. Call before process shutdown to avoid losing the tail
	// of a run's events.
	Flush(ctx context.Context) error
}
