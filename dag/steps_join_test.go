package dag

import (
	"context"
	"testing"
)

// recordingRouter captures every message routed to it, in order, for
// assertions in step-level tests that don't need a full Coordinator.
type recordingRouter struct {
	routed []Message
}

func (r *recordingRouter) Route(_ context.Context, msg Message) error {
	r.routed = append(r.routed, msg)
	return nil
}

func newTestJoin(t *testing.T, mode string, expected []string) *StepJoinPoint {
	t.Helper()
	raw := make([]interface{}, len(expected))
	for i, e := range expected {
		raw[i] = e
	}
	decl := StepDecl{
		Name:    "join",
		Type:    "StepJoinPoint",
		Inputs:  expected,
		Outputs: []string{"joined"},
		Params:  map[string]interface{}{"expected_nodes": raw, "mode": mode},
	}
	j, err := NewStepJoinPoint(decl, newTestMetrics())
	if err != nil {
		t.Fatalf("NewStepJoinPoint: %v", err)
	}
	return j
}

func TestJoinANDEmitsOnceAllInputsArrive(t *testing.T) {
	j := newTestJoin(t, "AND", []string{"a", "b"})
	router := &recordingRouter{}
	ctx := context.Background()

	if err := j.Handle(ctx, Message{ID: 1, NodeID: "a", Data: []float64{1, 2}}, router); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(router.routed) != 0 {
		t.Fatalf("expected no emission after only one branch arrived, got %d", len(router.routed))
	}

	if err := j.Handle(ctx, Message{ID: 1, NodeID: "b", Data: []float64{3, 4}}, router); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(router.routed) != 1 {
		t.Fatalf("expected exactly one emission, got %d", len(router.routed))
	}

	out := router.routed[0]
	if out.ID != 1 {
		t.Errorf("expected emitted id = 1 (the key), got %d", out.ID)
	}
	want := []float64{1, 2, 3, 4}
	if len(out.Data) != len(want) {
		t.Fatalf("expected data length %d, got %d", len(want), len(out.Data))
	}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("data[%d] = %v, want %v (expected_nodes order a then b)", i, out.Data[i], v)
		}
	}
}

func TestJoinANDKeysByBatchIDWhenPresent(t *testing.T) {
	j := newTestJoin(t, "AND", []string{"a", "b"})
	router := &recordingRouter{}
	ctx := context.Background()

	batch := Int64Ptr(100)
	total := Int64Ptr(1)
	_ = j.Handle(ctx, Message{ID: 1, NodeID: "a", Data: []float64{1}, BatchID: batch, BatchTotal: total}, router)
	_ = j.Handle(ctx, Message{ID: 2, NodeID: "b", Data: []float64{2}, BatchID: batch, BatchTotal: total}, router)

	if len(router.routed) != 1 {
		t.Fatalf("expected one emission keyed by shared batch id, got %d", len(router.routed))
	}
	if router.routed[0].ID != 100 {
		t.Errorf("expected emitted id = batch id 100, got %d", router.routed[0].ID)
	}
}

func TestJoinORFirstArrivalWinsAndAbsorbsRest(t *testing.T) {
	j := newTestJoin(t, "OR", []string{"a", "b"})
	router := &recordingRouter{}
	ctx := context.Background()

	_ = j.Handle(ctx, Message{ID: 1, NodeID: "a", Data: []float64{1, 2}}, router)
	_ = j.Handle(ctx, Message{ID: 1, NodeID: "b", Data: []float64{9, 9}}, router)

	if len(router.routed) != 1 {
		t.Fatalf("expected exactly one OR-join emission per key, got %d", len(router.routed))
	}
	if router.routed[0].Data[0] != 1 || router.routed[0].Data[1] != 2 {
		t.Errorf("expected first branch's data verbatim, got %v", router.routed[0].Data)
	}
}

func TestJoinORDifferentKeysEmitIndependently(t *testing.T) {
	j := newTestJoin(t, "OR", []string{"a", "b"})
	router := &recordingRouter{}
	ctx := context.Background()

	_ = j.Handle(ctx, Message{ID: 1, NodeID: "a", Data: []float64{1}}, router)
	_ = j.Handle(ctx, Message{ID: 2, NodeID: "a", Data: []float64{2}}, router)

	if len(router.routed) != 2 {
		t.Fatalf("expected one emission per distinct key, got %d", len(router.routed))
	}
}

func TestJoinANDLateArrivalReopensKey(t *testing.T) {
	// Documents the chosen edge-case behavior (§4.5): a late arrival for
	// an already-completed-and-removed key starts a fresh pending entry
	// rather than being dropped.
	j := newTestJoin(t, "AND", []string{"a", "b"})
	router := &recordingRouter{}
	ctx := context.Background()

	_ = j.Handle(ctx, Message{ID: 1, NodeID: "a", Data: []float64{1}}, router)
	_ = j.Handle(ctx, Message{ID: 1, NodeID: "b", Data: []float64{2}}, router)
	if len(router.routed) != 1 {
		t.Fatalf("expected one emission after completion, got %d", len(router.routed))
	}

	// Late arrival for the same, already-removed key.
	_ = j.Handle(ctx, Message{ID: 1, NodeID: "a", Data: []float64{3}}, router)
	if len(router.routed) != 1 {
		t.Fatalf("expected the late single-branch arrival not to trigger a new emission, got %d", len(router.routed))
	}

	j.mu.Lock()
	_, reopened := j.pending[1]
	j.mu.Unlock()
	if !reopened {
		t.Error("expected the late arrival to reopen a pending slot for the key")
	}
}
