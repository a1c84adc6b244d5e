package dag

import (
	"context"
	"math"
	"testing"
)

func TestNormalizeDividesByMax(t *testing.T) {
	n, err := NewNormalize(StepDecl{Name: "n", Inputs: []string{"in"}, Outputs: []string{"out"}})
	if err != nil {
		t.Fatalf("NewNormalize: %v", err)
	}
	router := &recordingRouter{}

	err = n.Handle(context.Background(), Message{ID: 1, Data: []float64{2, 4, 8}}, router)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	want := []float64{0.25, 0.5, 1}
	got := router.routed[0].Data
	for i, v := range want {
		if got[i] != v {
			t.Errorf("data[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestNormalizePassesThroughOnNonPositiveMax(t *testing.T) {
	n, _ := NewNormalize(StepDecl{Name: "n", Inputs: []string{"in"}, Outputs: []string{"out"}})
	router := &recordingRouter{}

	input := []float64{-1, -2, -3}
	_ = n.Handle(context.Background(), Message{ID: 1, Data: input}, router)

	got := router.routed[0].Data
	for i, v := range input {
		if got[i] != v {
			t.Errorf("expected passthrough data[%d] = %v, got %v", i, v, got[i])
		}
	}
}

func TestNormalizePassesThroughOnNonFiniteMax(t *testing.T) {
	n, _ := NewNormalize(StepDecl{Name: "n", Inputs: []string{"in"}, Outputs: []string{"out"}})
	router := &recordingRouter{}

	input := []float64{1, math.Inf(1)}
	_ = n.Handle(context.Background(), Message{ID: 1, Data: input}, router)

	got := router.routed[0].Data
	if got[0] != 1 || !math.IsInf(got[1], 1) {
		t.Errorf("expected passthrough on infinite max, got %v", got)
	}
}

func TestEncodeSquaresEachElement(t *testing.T) {
	e, err := NewEncode(StepDecl{Name: "e", Inputs: []string{"in"}, Outputs: []string{"out"}})
	if err != nil {
		t.Fatalf("NewEncode: %v", err)
	}
	router := &recordingRouter{}

	_ = e.Handle(context.Background(), Message{ID: 1, Data: []float64{1, 2, 3}}, router)

	want := []float64{1, 4, 9}
	got := router.routed[0].Data
	for i, v := range want {
		if got[i] != v {
			t.Errorf("data[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestEncodePreservesTraceAndEmitsUnderOutputName(t *testing.T) {
	e, _ := NewEncode(StepDecl{Name: "encoder", Inputs: []string{"in"}, Outputs: []string{"encoded"}})
	router := &recordingRouter{}

	_ = e.Handle(context.Background(), Message{ID: 1, NodeID: "in", Data: []float64{2}}, router)

	out := router.routed[0]
	if out.NodeID != "encoded" {
		t.Errorf("expected NodeID = encoded, got %q", out.NodeID)
	}
	if len(out.Trace) != 1 || out.Trace[0].StepName != "encoder" {
		t.Errorf("expected a trace record for the encoder step, got %+v", out.Trace)
	}
}
