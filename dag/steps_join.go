package dag

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// joinMode selects fan-in semantics for StepJoinPoint.
type joinMode int

const (
	joinAND joinMode = iota
	joinOR
)

// orTTL bounds how long a completed OR-join's residual completed_ids
// counter survives if a key never receives its full expected arrival
// count — without this the map would grow without bound for any key
// that only ever sees a single arrival.
const orTTL = 5 * time.Minute

// StepJoinPoint fans multiple named inputs back into one message,
// correlated by Message.Key(). AND mode waits for every expected input
// name to arrive for a key before emitting the concatenation; OR mode
// emits the first arrival for a key verbatim and absorbs the rest.
type StepJoinPoint struct {
	name           string
	outputName     string
	expectedNodes  []string // declared order; also the AND concatenation order
	mode           joinMode

	mu        sync.Mutex
	pending   map[int64]map[string][]float64 // AND mode: key -> input name -> data
	completed map[int64]orEntry              // OR mode: key -> remaining count + deadline

	metrics *Metrics
}

type orEntry struct {
	remaining int
	expiresAt time.Time
}

// NewStepJoinPoint builds a join from its declaration. Params:
// expected_nodes ([]string, required), mode ("AND"|"OR", default AND).
// output_mode "Nest" is rejected at validation time, not here.
func NewStepJoinPoint(decl StepDecl, metrics *Metrics) (*StepJoinPoint, error) {
	if len(decl.Outputs) != 1 {
		return nil, fmt.Errorf("StepJoinPoint %q must declare exactly one output", decl.Name)
	}

	raw, _ := decl.Params["expected_nodes"].([]interface{})
	if len(raw) == 0 {
		return nil, fmt.Errorf("StepJoinPoint %q requires a non-empty params.expected_nodes", decl.Name)
	}
	expected := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("StepJoinPoint %q: expected_nodes must be strings", decl.Name)
		}
		expected = append(expected, s)
	}

	mode := joinAND
	if m, _ := decl.Params["mode"].(string); m == "OR" {
		mode = joinOR
	}

	return &StepJoinPoint{
		name:          decl.Name,
		outputName:    decl.Outputs[0],
		expectedNodes: expected,
		mode:          mode,
		pending:       make(map[int64]map[string][]float64),
		completed:     make(map[int64]orEntry),
		metrics:       metrics,
	}, nil
}

func (j *StepJoinPoint) Name() string       { return j.name }
func (j *StepJoinPoint) OutputName() string { return j.outputName }

func (j *StepJoinPoint) Handle(ctx context.Context, msg Message, router Router) error {
	start := time.Now()
	key := msg.Key()

	if j.mode == joinOR {
		return j.handleOR(ctx, msg, key, router, start)
	}
	return j.handleAND(ctx, msg, key, router, start)
}

func (j *StepJoinPoint) handleAND(ctx context.Context, msg Message, key int64, router Router, start time.Time) error {
	j.mu.Lock()

	slot, ok := j.pending[key]
	if !ok {
		// Either a fresh key, or a late arrival reopening a key that was
		// already emitted and removed. Both are treated identically: a
		// fresh pending entry. A late arrival can therefore produce a
		// spurious partial emission later if the key never completes
		// again; this is a documented, accepted edge case.
		slot = make(map[string][]float64)
		j.pending[key] = slot
	}
	slot[msg.NodeID] = msg.Data

	complete := true
	for _, name := range j.expectedNodes {
		if _, ok := slot[name]; !ok {
			complete = false
			break
		}
	}

	var out Message
	if complete {
		var data []float64
		for _, name := range j.expectedNodes {
			data = append(data, slot[name]...)
		}
		delete(j.pending, key)
		out = Message{ID: key, NodeID: j.outputName, Data: data, BatchID: msg.BatchID, BatchTotal: msg.BatchTotal}
		out = out.WithTrace(TraceRecord{StepName: j.name, Duration: time.Since(start)})
	}
	j.metrics.SetJoinPending(j.name, len(j.pending))
	j.mu.Unlock()

	if !complete {
		return nil
	}
	return router.Route(ctx, out)
}

func (j *StepJoinPoint) handleOR(ctx context.Context, msg Message, key int64, router Router, start time.Time) error {
	j.mu.Lock()
	j.sweepLocked()

	if entry, ok := j.completed[key]; ok {
		entry.remaining--
		if entry.remaining <= 0 {
			delete(j.completed, key)
		} else {
			j.completed[key] = entry
		}
		j.metrics.SetJoinPending(j.name, len(j.completed))
		j.mu.Unlock()
		j.metrics.RecordDropped(j.name, "or_join_absorbed")
		return nil
	}

	j.completed[key] = orEntry{remaining: len(j.expectedNodes) - 1, expiresAt: time.Now().Add(orTTL)}
	j.metrics.SetJoinPending(j.name, len(j.completed))
	j.mu.Unlock()

	out := msg
	out.NodeID = j.outputName
	out = out.WithTrace(TraceRecord{StepName: j.name, Duration: time.Since(start)})
	return router.Route(ctx, out)
}

// sweepLocked removes OR-join entries past their TTL. Caller must hold
// j.mu. Bounds completed_ids growth for keys that never receive their
// full expected arrival count.
func (j *StepJoinPoint) sweepLocked() {
	now := time.Now()
	for k, e := range j.completed {
		if now.After(e.expiresAt) {
			delete(j.completed, k)
		}
	}
}
