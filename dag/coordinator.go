package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeflow/dagflow-go/dag/emit"
)

// InboxSize is the default bounded capacity of every step's inbox
// channel. A full inbox blocks the sender, throttling a fast upstream
// rather than letting queued messages grow without bound.
const InboxSize = 256

// Coordinator owns every instantiated step and the adjacency table
// derived from their declarations, and routes messages between them. It
// never calls a step's Handle inline: it hands a message off to the
// destination step's own goroutine so a step can freely emit back into
// the coordinator without risking re-entrant blocking.
type Coordinator struct {
	adjacency map[string][]string // output name -> downstream step names
	inboxes   map[string]chan Message
	steps     map[string]Step

	emitter  emit.Emitter
	metrics  *Metrics
	logger   zerolog.Logger
	registry *ReplyRegistry

	wg sync.WaitGroup

	mu          sync.Mutex
	runID       string
	draining    bool
	stepTimeout time.Duration // 0 = unlimited
}

// SetStepTimeout bounds every reactive step's Handle invocation with a
// per-call context deadline, guarding against a single hung step (most
// plausibly a remote MLModel call exhausting its retries slowly)
// starving the rest of the graph. 0 leaves Handle unbounded.
func (c *Coordinator) SetStepTimeout(d time.Duration) {
	c.mu.Lock()
	c.stepTimeout = d
	c.mu.Unlock()
}

// NewCoordinator instantiates every step declared in cfg via BuildStep
// and derives the routing table from declared
// inputs/outputs. cfg must already have passed Validate.
func NewCoordinator(cfg GraphConfig, runID string, e emit.Emitter, m *Metrics, logger zerolog.Logger, registry *ReplyRegistry) (*Coordinator, error) {
	if e == nil {
		e = emit.NewNullEmitter()
	}

	c := &Coordinator{
		adjacency: make(map[string][]string),
		inboxes:   make(map[string]chan Message),
		steps:     make(map[string]Step),
		emitter:   e,
		metrics:   m,
		logger:    logger,
		registry:  registry,
		runID:     runID,
	}

	deps := StepDeps{Emitter: e, Metrics: m, Registry: registry, IDs: NewIDAllocator()}

	for _, decl := range cfg.Steps {
		step, err := BuildStep(decl, deps)
		if err != nil {
			return nil, fmt.Errorf("instantiate step %q: %w", decl.Name, err)
		}
		c.steps[decl.Name] = step
		c.inboxes[decl.Name] = make(chan Message, InboxSize)
	}

	for _, decl := range cfg.Steps {
		for _, in := range decl.Inputs {
			c.adjacency[in] = append(c.adjacency[in], decl.Name)
		}
	}

	return c, nil
}

// Route hands a copy of msg to every step subscribed to msg.NodeID. It
// never blocks on step processing, only on the bounded inbox send
// itself, and it is safe to call concurrently from many step goroutines.
func (c *Coordinator) Route(ctx context.Context, msg Message) error {
	c.metrics.RecordRouted(msg.NodeID)

	destinations := c.adjacency[msg.NodeID]
	if len(destinations) == 0 {
		// A dead output: nothing consumes it. This is normal for a
		// sink's (empty) output name and a logged warning otherwise.
		if msg.NodeID != "" {
			c.logger.Warn().Str("node_id", msg.NodeID).Msg("no downstream step for output")
		}
		return nil
	}

	for _, dest := range destinations {
		inbox, ok := c.inboxes[dest]
		if !ok {
			continue
		}
		select {
		case inbox <- msg:
			c.metrics.SetInboxDepth(dest, len(inbox))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run starts every step's goroutine (its inbox-processing loop for
// reactive steps, or its Produce loop for sources) and blocks until ctx
// is done. A source finishing does not end Run; only ctx does. It
// enforces the streaming shutdown timeout via ctx's own deadline;
// callers construct ctx with context.WithTimeout for that.
func (c *Coordinator) Run(ctx context.Context) error {
	for name, step := range c.steps {
		name, step := name, step
		if src, ok := step.(Sourcer); ok {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				if err := src.Produce(ctx, c); err != nil && ctx.Err() == nil {
					c.logger.Error().Str("step", name).Err(err).Msg("source step failed")
				}
			}()
			continue
		}

		c.wg.Add(1)
		go c.runReactive(ctx, name, step)
	}

	<-ctx.Done()
	c.mu.Lock()
	c.draining = true
	c.mu.Unlock()

	return nil
}

// Wait blocks until every step goroutine has exited. Called after
// Run's context is cancelled to let in-flight handling complete.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) runReactive(ctx context.Context, name string, step Step) {
	defer c.wg.Done()
	inbox := c.inboxes[name]

	for {
		select {
		case msg := <-inbox:
			c.metrics.SetInboxDepth(name, len(inbox))
			start := time.Now()
			c.mu.Lock()
			stepTimeout := c.stepTimeout
			c.mu.Unlock()
			err := runWithTimeout(ctx, name, 0, stepTimeout, func(stepCtx context.Context) error {
				return step.Handle(stepCtx, msg, c)
			})
			status := "success"
			if err != nil {
				status = "error"
				c.logger.Error().Str("step", name).Int64("msg_id", msg.ID).Err(err).Msg("step handling failed")
				c.metrics.RecordDropped(name, "handler_error")
			}
			c.metrics.RecordStepLatency(name, time.Since(start), status)
			c.emitter.Emit(emit.Event{
				RunID:     c.runID,
				MessageID: msg.ID,
				StepName:  name,
				Msg:       "step_handled",
				Meta:      map[string]interface{}{"duration_ms": time.Since(start).Milliseconds(), "status": status},
			})
		case <-ctx.Done():
			return
		}
	}
}
