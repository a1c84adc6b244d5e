package dag

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// TestHTTPRoundTrip exercises §8 property 7 through the actual HTTP
// handler: POSTing {"features": xs} to /process on the degenerate
// graph http_input -> sink returns xs unchanged with a dag-request-id
// header.
func TestHTTPRoundTrip(t *testing.T) {
	cfg := GraphConfig{Steps: []StepDecl{
		{Name: "sink", Type: "ResponseSink", Inputs: []string{httpInputName}},
	}}
	if errs := Validate(cfg, true); len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}

	registry := NewReplyRegistry()
	metrics := NewMetrics(prometheus.NewRegistry())
	coord, err := NewCoordinator(cfg, "http-run", nil, metrics, zerolog.Nop(), registry)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { _ = coord.Run(ctx) }()

	srv := NewServer(coord, registry, 2*time.Second, prometheus.NewRegistry())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(map[string][]float64{"features": {1, 2, 3}})
	resp, err := http.Post(ts.URL+"/process", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /process: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("dag-request-id") == "" {
		t.Error("expected dag-request-id header to be set")
	}

	var out []float64
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []float64{1, 2, 3}
	if len(out) != len(want) {
		t.Fatalf("expected response body to be a bare JSON array of length %d, got %v", len(want), out)
	}
	for i, v := range want {
		if out[i] != v {
			t.Errorf("[%d] = %v, want %v", i, out[i], v)
		}
	}
}

func TestHTTPRejectsNonPost(t *testing.T) {
	registry := NewReplyRegistry()
	srv := NewServer(nil, registry, time.Second, prometheus.NewRegistry())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/process")
	if err != nil {
		t.Fatalf("GET /process: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHTTPMalformedBodyReturns400(t *testing.T) {
	registry := NewReplyRegistry()
	srv := NewServer(nil, registry, time.Second, prometheus.NewRegistry())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/process", "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatalf("POST /process: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHTTPTimeoutReturns500AndForgetsRegistryEntry(t *testing.T) {
	// A router that never routes to a sink: the reply never arrives.
	registry := NewReplyRegistry()
	srv := NewServer(noopRouter{}, registry, 50*time.Millisecond, prometheus.NewRegistry())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(map[string][]float64{"features": {1}})
	resp, err := http.Post(ts.URL+"/process", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /process: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}

	reqID, err := strconv.ParseInt(resp.Header.Get("dag-request-id"), 10, 64)
	if err != nil {
		t.Fatalf("parse dag-request-id header: %v", err)
	}
	if registry.Resolve(reqID, nil) {
		t.Error("expected the timed-out request's registry entry to have been forgotten")
	}
}

type noopRouter struct{}

func (noopRouter) Route(_ context.Context, _ Message) error { return nil }
