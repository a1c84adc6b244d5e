package dag

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

// batchEmitter is embedded by every source step to share the batch
// bookkeeping: when batch_mode is enabled, every batchSize-th message
// advances the batch id so that BatchId-mode poolers downstream can
// correlate the run.
type batchEmitter struct {
	batchMode  bool
	batchSize  int64
	emitted    int64
	curBatchID int64
}

func newBatchEmitter(params map[string]interface{}) batchEmitter {
	be := batchEmitter{batchSize: 1}
	if b, ok := params["batch_mode"].(bool); ok {
		be.batchMode = b
	}
	if sz, ok := numParam(params, "batch_size"); ok && sz > 0 {
		be.batchSize = int64(sz)
	}
	return be
}

// tag annotates a freshly generated message with id/batch fields.
func (be *batchEmitter) tag(msg Message, id int64) Message {
	msg.ID = id
	if !be.batchMode {
		return msg
	}
	if be.emitted%be.batchSize == 0 {
		be.curBatchID++
	}
	be.emitted++
	msg.BatchID = Int64Ptr(be.curBatchID)
	msg.BatchTotal = Int64Ptr(be.batchSize)
	return msg
}

func numParam(params map[string]interface{}, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// DataGenerator emits a five-element vector of uniform doubles in [0, 10)
// on a fixed interval, stopping after an optional limit count. It is the
// streaming-mode default source, grounded on the reference
// implementation's interval-driven generator.
type DataGenerator struct {
	name       string
	outputName string
	interval   time.Duration
	limit      int64 // 0 = unlimited
	batch      batchEmitter
	rng        *rand.Rand
	ids        *IDAllocator
}

// NewDataGenerator builds a DataGenerator from its declaration. Params:
// interval_ms (default 1000), limit (0 = unlimited), batch_mode,
// batch_size.
func NewDataGenerator(decl StepDecl, ids *IDAllocator) (*DataGenerator, error) {
	if len(decl.Outputs) != 1 {
		return nil, fmt.Errorf("DataGenerator %q must declare exactly one output", decl.Name)
	}
	g := &DataGenerator{
		name:       decl.Name,
		outputName: decl.Outputs[0],
		interval:   time.Second,
		batch:      newBatchEmitter(decl.Params),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- feature generation, not security sensitive
		ids:        ids,
	}
	if ms, ok := numParam(decl.Params, "interval_ms"); ok && ms > 0 {
		g.interval = time.Duration(ms) * time.Millisecond
	}
	if lim, ok := numParam(decl.Params, "limit"); ok && lim > 0 {
		g.limit = int64(lim)
	}
	return g, nil
}

func (g *DataGenerator) Name() string       { return g.name }
func (g *DataGenerator) OutputName() string { return g.outputName }

func (g *DataGenerator) Handle(context.Context, Message, Router) error {
	return fmt.Errorf("DataGenerator %q is a source and never handles inbound messages", g.name)
}

// Produce runs the generator's interval loop until ctx is cancelled or
// limit is reached.
func (g *DataGenerator) Produce(ctx context.Context, router Router) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	var count int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if g.limit > 0 && count >= g.limit {
				return nil
			}
			data := make([]float64, 5)
			for i := range data {
				data[i] = g.rng.Float64() * 10
			}
			id := g.ids.Next()
			msg := g.batch.tag(Message{NodeID: g.outputName, Data: data}, id)
			if err := router.Route(ctx, msg); err != nil {
				return err
			}
			count++
		}
	}
}

// CsvReader emits one message per non-empty line of a CSV file, parsing
// each comma-separated token as a float64. A token that fails to parse
// is silently dropped from that line's vector (matching the reference
// implementation), not the whole line.
type CsvReader struct {
	name       string
	outputName string
	filePath   string
	batch      batchEmitter
	ids        *IDAllocator
}

// NewCsvReader builds a CsvReader from its declaration. Params:
// file_path (required), batch_mode, batch_size.
func NewCsvReader(decl StepDecl, ids *IDAllocator) (*CsvReader, error) {
	if len(decl.Outputs) != 1 {
		return nil, fmt.Errorf("CsvReader %q must declare exactly one output", decl.Name)
	}
	path, _ := decl.Params["file_path"].(string)
	if path == "" {
		return nil, fmt.Errorf("CsvReader %q requires params.file_path", decl.Name)
	}
	return &CsvReader{
		name:       decl.Name,
		outputName: decl.Outputs[0],
		filePath:   path,
		batch:      newBatchEmitter(decl.Params),
		ids:        ids,
	}, nil
}

func (r *CsvReader) Name() string       { return r.name }
func (r *CsvReader) OutputName() string { return r.outputName }

func (r *CsvReader) Handle(context.Context, Message, Router) error {
	return fmt.Errorf("CsvReader %q is a source and never handles inbound messages", r.name)
}

// Produce reads the file line by line, emitting one message per non-empty
// line, until EOF or ctx cancellation.
func (r *CsvReader) Produce(ctx context.Context, router Router) error {
	f, err := os.Open(r.filePath)
	if err != nil {
		return fmt.Errorf("CsvReader %q: %w", r.name, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var data []float64
		for _, tok := range strings.Split(line, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
			if err != nil {
				continue // drop the invalid token, keep parsing the line
			}
			data = append(data, v)
		}
		if len(data) == 0 {
			continue
		}

		id := r.ids.Next()
		msg := r.batch.tag(Message{NodeID: r.outputName, Data: data}, id)
		if err := router.Route(ctx, msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}
