package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type poolerMode int

const (
	poolerWindow poolerMode = iota
	poolerBatchID
)

// BatchPooler accumulates messages and flushes them as a single
// concatenated message. Window mode buffers in arrival order and flushes
// once window_size messages have accumulated, non-sliding. BatchId mode
// buffers per batch id and flushes once that batch's buffer reaches its
// declared batch_total, dropping any message missing either field.
type BatchPooler struct {
	name       string
	outputName string
	mode       poolerMode
	windowSize int

	mu          sync.Mutex
	windowBuf   []Message
	batchBufs   map[int64][]Message

	metrics *Metrics
}

// NewBatchPooler builds a pooler from its declaration. Params:
// mode ("Window"|"BatchId", default Window), window_size (Window mode,
// default 10; a value of 1 is valid and flushes every message
// individually — this is how request/response mode forces the pooler
// that feeds the sink to pass single messages straight through).
func NewBatchPooler(decl StepDecl, metrics *Metrics) (*BatchPooler, error) {
	if len(decl.Outputs) != 1 {
		return nil, fmt.Errorf("BatchPooler %q must declare exactly one output", decl.Name)
	}

	mode := poolerWindow
	if m, _ := decl.Params["mode"].(string); m == "BatchId" {
		mode = poolerBatchID
	}

	windowSize := 10
	if ws, ok := numParam(decl.Params, "window_size"); ok && ws > 0 {
		windowSize = int(ws)
	}

	return &BatchPooler{
		name:       decl.Name,
		outputName: decl.Outputs[0],
		mode:       mode,
		windowSize: windowSize,
		batchBufs:  make(map[int64][]Message),
		metrics:    metrics,
	}, nil
}

// SetWindowSize overrides the configured window size; n < 1 is ignored.
// RewriteForHTTP does not call it: it sets params.window_size on the
// declaration instead.
func (p *BatchPooler) SetWindowSize(n int) {
	if n > 0 {
		p.windowSize = n
	}
}

func (p *BatchPooler) Name() string       { return p.name }
func (p *BatchPooler) OutputName() string { return p.outputName }

func (p *BatchPooler) Handle(ctx context.Context, msg Message, router Router) error {
	start := time.Now()

	if p.mode == poolerBatchID {
		return p.handleBatchID(ctx, msg, router, start)
	}
	return p.handleWindow(ctx, msg, router, start)
}

func (p *BatchPooler) handleWindow(ctx context.Context, msg Message, router Router, start time.Time) error {
	p.mu.Lock()
	p.windowBuf = append(p.windowBuf, msg)

	var out Message
	flush := len(p.windowBuf) >= p.windowSize
	if flush {
		out = p.concat(p.windowBuf, start)
		p.windowBuf = nil
	}
	p.metrics.SetPoolerBuffered(p.name, len(p.windowBuf))
	p.mu.Unlock()

	if !flush {
		return nil
	}
	return router.Route(ctx, out)
}

func (p *BatchPooler) handleBatchID(ctx context.Context, msg Message, router Router, start time.Time) error {
	if msg.BatchID == nil || msg.BatchTotal == nil {
		log.Warn().Str("step", p.name).Int64("msg_id", msg.ID).Msg("BatchPooler: dropping message missing batch_id/batch_total in BatchId mode")
		p.metrics.RecordDropped(p.name, "missing_batch_fields")
		return nil
	}

	key := *msg.BatchID
	total := int(*msg.BatchTotal)

	p.mu.Lock()
	p.batchBufs[key] = append(p.batchBufs[key], msg)
	buf := p.batchBufs[key]

	var out Message
	flush := len(buf) >= total
	if flush {
		out = p.concat(buf, start)
		actual := int64(len(buf))
		out.ID = key
		out.BatchID = msg.BatchID
		out.BatchTotal = &actual
		delete(p.batchBufs, key)
	}
	p.metrics.SetPoolerBuffered(p.name, p.totalBufferedLocked())
	p.mu.Unlock()

	if !flush {
		return nil
	}
	return router.Route(ctx, out)
}

func (p *BatchPooler) totalBufferedLocked() int {
	n := 0
	for _, buf := range p.batchBufs {
		n += len(buf)
	}
	return n
}

// concat flattens a buffer of messages in insertion order into one
// message tagged with the pooler's output name, carrying the triggering
// (last) message's BatchID/BatchTotal forward. Caller must hold p.mu.
func (p *BatchPooler) concat(buf []Message, start time.Time) Message {
	var data []float64
	last := buf[len(buf)-1]
	for _, m := range buf {
		data = append(data, m.Data...)
	}
	out := Message{ID: last.ID, NodeID: p.outputName, Data: data, BatchID: last.BatchID, BatchTotal: last.BatchTotal}
	return out.WithTrace(TraceRecord{StepName: p.name, Duration: time.Since(start)})
}
