package dag

import (
	"context"

	"github.com/nodeflow/dagflow-go/dag/emit"
)

// Step is the uniform contract every graph node implements, whether it is
// a source, a stateless transform, a stateful join or pooler, or a sink.
//
// A Step owns no reference to its downstream neighbors; it only knows the
// name it tags its own emissions with (OutputName) and a Router to hand
// emitted messages back to. This keeps steps decoupled from graph shape:
// the same Step implementation works regardless of how many (if any)
// downstream consumers the coordinator wires up to its output.
type Step interface {
	// Name returns the step's unique declared name.
	Name() string

	// OutputName returns the output tag this step emits under, or "" for
	// a sink that never emits.
	OutputName() string

	// Handle processes one inbound message. Implementations that emit
	// call router.Route with a new Message tagged with OutputName();
	// implementations that cannot produce a result for this input simply
	// return without routing anything (a drop), after logging why.
	Handle(ctx context.Context, msg Message, router Router) error
}

// Router is the subset of Coordinator a Step needs in order to emit. It
// exists so step implementations and their tests don't need a full
// Coordinator, only something that can route one message.
type Router interface {
	Route(ctx context.Context, msg Message) error
}

// Sourcer is implemented by steps that originate messages rather than
// only reacting to them (DataGenerator, CsvReader). The coordinator runs
// Produce in its own goroutine for every step that implements it, ignoring
// Handle for such steps.
type Sourcer interface {
	Step
	Produce(ctx context.Context, router Router) error
}

// StepDecl is one entry in a parsed graph configuration: the declared
// shape of a step before it has been instantiated.
type StepDecl struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`
	Inputs  []string               `json:"inputs"`
	Outputs []string               `json:"outputs"`
	Params  map[string]interface{} `json:"params"`
}

// GraphConfig is the parsed shape of a graph configuration file: an
// ordered list of step declarations. The adjacency table is derived
// from it by NewCoordinator and is not stored here.
type GraphConfig struct {
	Steps []StepDecl `json:"steps"`
}

// StepFactory constructs a Step from its declaration; BuildStep has this
// signature and is the concrete dispatcher the coordinator calls.
// Nothing in this package takes a StepFactory parameter.
type StepFactory func(decl StepDecl, deps StepDeps) (Step, error)

// StepDeps bundles the collaborators a step factory may need beyond its
// own declaration: observability, metrics, and (for the request/response
// sink) the pending-reply registry.
type StepDeps struct {
	Emitter  emit.Emitter
	Metrics  *Metrics
	Registry *ReplyRegistry
	IDs      *IDAllocator
}
