package dag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

// Printer is the default streaming-mode sink: it writes every message's
// data and trace to a writer (stdout by default) as pretty-printed JSON,
// one object per message.
type Printer struct {
	name      string
	inputName string
	writer    io.Writer
}

// NewPrinter builds a Printer. It declares no output — it is a sink.
func NewPrinter(decl StepDecl) (*Printer, error) {
	if len(decl.Inputs) != 1 {
		return nil, fmt.Errorf("Printer %q requires exactly one input", decl.Name)
	}
	if len(decl.Outputs) != 0 {
		return nil, fmt.Errorf("Printer %q is a sink and must declare no outputs", decl.Name)
	}
	return &Printer{name: decl.Name, inputName: decl.Inputs[0], writer: os.Stdout}, nil
}

func (p *Printer) Name() string       { return p.name }
func (p *Printer) OutputName() string { return "" }

type printerRecord struct {
	MessageID  int64         `json:"message_id"`
	NodeID     string        `json:"node_id"`
	Data       []float64     `json:"data"`
	BatchID    *int64        `json:"batch_id,omitempty"`
	BatchTotal *int64        `json:"batch_total,omitempty"`
	Trace      []TraceRecord `json:"trace"`
}

func (p *Printer) Handle(ctx context.Context, msg Message, router Router) error {
	rec := printerRecord{MessageID: msg.ID, NodeID: msg.NodeID, Data: msg.Data, BatchID: msg.BatchID, BatchTotal: msg.BatchTotal, Trace: msg.Trace}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("Printer %q: marshal: %w", p.name, err)
	}
	_, err = fmt.Fprintln(p.writer, string(out))
	return err
}

// ResponseSink is the request/response-mode terminal step: it resolves
// the pending reply channel registered under the message's id (which,
// in request/response mode, is the original request id) with the
// message's data. If no reply is pending — the request already timed
// out and was forgotten, or the graph is misconfigured — it logs a
// warning and drops the message; there is nobody left to deliver to.
type ResponseSink struct {
	name      string
	inputName string
	registry  *ReplyRegistry
}

// NewResponseSink builds a ResponseSink. It declares no output.
func NewResponseSink(decl StepDecl, registry *ReplyRegistry) (*ResponseSink, error) {
	if len(decl.Inputs) != 1 {
		return nil, fmt.Errorf("ResponseSink %q requires exactly one input", decl.Name)
	}
	if registry == nil {
		return nil, fmt.Errorf("ResponseSink %q requires a reply registry in request/response mode", decl.Name)
	}
	return &ResponseSink{name: decl.Name, inputName: decl.Inputs[0], registry: registry}, nil
}

func (s *ResponseSink) Name() string       { return s.name }
func (s *ResponseSink) OutputName() string { return "" }

func (s *ResponseSink) Handle(ctx context.Context, msg Message, router Router) error {
	if !s.registry.Resolve(msg.ID, msg.Data) {
		log.Warn().Str("step", s.name).Int64("msg_id", msg.ID).Msg("ResponseSink: no pending reply for message, dropping")
	}
	return nil
}
