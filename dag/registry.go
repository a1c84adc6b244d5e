package dag

import "sync"

// ReplyRegistry is the single process-wide mutable structure shared
// between steps: a map from a request id to a one-shot reply channel.
// The HTTP ingress inserts an entry before emitting a message tagged
// http_input; the request/response sink looks up and fires the channel
// when the matching message reaches it; either side may remove the
// entry (the sink on delivery, the ingress on timeout).
//
// Mutations are limited to insert and remove; no stored value is ever
// mutated in place, so a plain mutex-guarded map is sufficient and no
// lock is ever held across channel sends or network I/O.
type ReplyRegistry struct {
	mu      sync.Mutex
	pending map[int64]chan []float64
}

// NewReplyRegistry returns an empty registry.
func NewReplyRegistry() *ReplyRegistry {
	return &ReplyRegistry{pending: make(map[int64]chan []float64)}
}

// Register inserts a one-shot reply channel for reqID and returns it.
// Registering twice for the same id replaces the previous channel; the
// ingress never does this since ids are drawn fresh per request.
func (r *ReplyRegistry) Register(reqID int64) chan []float64 {
	ch := make(chan []float64, 1)
	r.mu.Lock()
	r.pending[reqID] = ch
	r.mu.Unlock()
	return ch
}

// Resolve looks up and removes the reply channel for reqID, then sends
// data on it. Reports whether an entry existed; a miss means the
// request already timed out and its ingress stopped listening.
func (r *ReplyRegistry) Resolve(reqID int64, data []float64) bool {
	r.mu.Lock()
	ch, ok := r.pending[reqID]
	if ok {
		delete(r.pending, reqID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	ch <- data
	return true
}

// Forget removes reqID's entry without resolving it, used by the
// ingress when its wait times out so a late sink delivery is silently
// dropped rather than blocking on a channel nobody reads anymore (the
// channel is buffered, so the dropped send never leaks a goroutine).
func (r *ReplyRegistry) Forget(reqID int64) {
	r.mu.Lock()
	delete(r.pending, reqID)
	r.mu.Unlock()
}
