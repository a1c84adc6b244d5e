package dag

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Normalize divides every element of the input vector by its maximum. If
// the maximum is non-positive or non-finite, the original data is passed
// through unchanged and an error is logged — dividing by a degenerate
// maximum would produce NaN/Inf, which is worse than an un-normalized
// passthrough for anything downstream.
type Normalize struct {
	name       string
	inputName  string
	outputName string
}

// NewNormalize builds a Normalize step. It requires exactly one input
// and one output.
func NewNormalize(decl StepDecl) (*Normalize, error) {
	if len(decl.Inputs) != 1 || len(decl.Outputs) != 1 {
		return nil, fmt.Errorf("Normalize %q requires exactly one input and one output", decl.Name)
	}
	return &Normalize{
		name:       decl.Name,
		inputName:  decl.Inputs[0],
		outputName: decl.Outputs[0],
	}, nil
}

func (n *Normalize) Name() string       { return n.name }
func (n *Normalize) OutputName() string { return n.outputName }

func (n *Normalize) Handle(ctx context.Context, msg Message, router Router) error {
	start := time.Now()

	max := 0.0
	for _, v := range msg.Data {
		if v > max {
			max = v
		}
	}

	var out []float64
	if max <= 0 || math.IsInf(max, 0) || math.IsNaN(max) {
		log.Error().Str("step", n.name).Int64("msg_id", msg.ID).Float64("max", max).Msg("normalize: degenerate maximum, passing data through")
		out = msg.Data
	} else {
		out = make([]float64, len(msg.Data))
		for i, v := range msg.Data {
			out[i] = v / max
		}
	}

	rec := TraceRecord{StepName: n.name, Duration: time.Since(start)}
	return router.Route(ctx, msg.WithData(n.outputName, out, rec))
}

// Encode squares every element of the input vector.
type Encode struct {
	name       string
	inputName  string
	outputName string
}

// NewEncode builds an Encode step. It requires exactly one input and one
// output.
func NewEncode(decl StepDecl) (*Encode, error) {
	if len(decl.Inputs) != 1 || len(decl.Outputs) != 1 {
		return nil, fmt.Errorf("Encode %q requires exactly one input and one output", decl.Name)
	}
	return &Encode{name: decl.Name, inputName: decl.Inputs[0], outputName: decl.Outputs[0]}, nil
}

func (e *Encode) Name() string       { return e.name }
func (e *Encode) OutputName() string { return e.outputName }

func (e *Encode) Handle(ctx context.Context, msg Message, router Router) error {
	start := time.Now()
	out := make([]float64, len(msg.Data))
	for i, v := range msg.Data {
		out[i] = v * v
	}
	rec := TraceRecord{StepName: e.name, Duration: time.Since(start)}
	return router.Route(ctx, msg.WithData(e.outputName, out, rec))
}

// localScorers implements the handful of deterministic in-process scoring
// functions an MLModel step can run without a remote call, keyed by the
// step's output name the way the reference implementation dispatches by
// node name.
var localScorers = map[string]func([]float64) float64{
	"sum": func(data []float64) float64 {
		var total float64
		for _, v := range data {
			total += v
		}
		return total
	},
	"product": func(data []float64) float64 {
		total := 1.0
		for _, v := range data {
			total *= v
		}
		return total
	},
}
