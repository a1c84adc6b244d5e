package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterTextModeFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)

	l.Emit(Event{RunID: "run-1", MessageID: 42, StepName: "normalize", Msg: "step_start"})

	line := buf.String()
	if !strings.HasPrefix(line, "[step_start] runID=run-1 msgID=42 step=normalize") {
		t.Errorf("unexpected text output: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("expected trailing newline")
	}
}

func TestLogEmitterTextModeIncludesMeta(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)

	l.Emit(Event{RunID: "r", Msg: "message_dropped", Meta: map[string]interface{}{"reason": "empty_vector"}})

	line := buf.String()
	if !strings.Contains(line, "meta=") {
		t.Errorf("expected meta field in output, got %q", line)
	}
	if !strings.Contains(line, "empty_vector") {
		t.Errorf("expected meta content in output, got %q", line)
	}
}

func TestLogEmitterJSONMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, true)

	l.Emit(Event{RunID: "run-1", MessageID: 7, StepName: "join", Msg: "join_emit"})

	var decoded struct {
		RunID    string `json:"runID"`
		MsgID    int64  `json:"msgID"`
		StepName string `json:"step"`
		Msg      string `json:"msg"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal JSON output: %v (raw: %q)", err, buf.String())
	}
	if decoded.RunID != "run-1" || decoded.MsgID != 7 || decoded.StepName != "join" || decoded.Msg != "join_emit" {
		t.Errorf("unexpected decoded event: %+v", decoded)
	}
}

func TestLogEmitterEmitBatchWritesEveryEventInOrder(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)

	events := []Event{
		{RunID: "r", Msg: "first"},
		{RunID: "r", Msg: "second"},
	}
	if err := l.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "[first]") || !strings.HasPrefix(lines[1], "[second]") {
		t.Errorf("expected events written in order, got %v", lines)
	}
}

func TestLogEmitterDefaultsToStdoutWhenWriterNil(t *testing.T) {
	l := NewLogEmitter(nil, false)
	if l.writer == nil {
		t.Error("expected LogEmitter to default to a non-nil writer")
	}
}

func TestLogEmitterFlushIsNoOp(t *testing.T) {
	l := NewLogEmitter(&bytes.Buffer{}, false)
	if err := l.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
