package dag

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server is the request/response-mode external HTTP ingress: it accepts
// feature vectors over POST /process, injects them into the graph as
// http_input messages, and blocks the request until the graph's
// ResponseSink resolves a reply or the configured timeout elapses. It
// also exposes Prometheus metrics on GET /metrics.
type Server struct {
	router   Router
	registry *ReplyRegistry
	timeout  time.Duration
	promReg  prometheus.Gatherer
}

// NewServer builds an HTTP ingress bound to a running coordinator.
func NewServer(router Router, registry *ReplyRegistry, timeout time.Duration, promReg prometheus.Gatherer) *Server {
	if promReg == nil {
		promReg = prometheus.DefaultGatherer
	}
	return &Server{router: router, registry: registry, timeout: timeout, promReg: promReg}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/process", s.handleProcess)
	mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	return mux
}

type processRequest struct {
	Features []float64 `json:"features"`
}

// handleProcess generates a request id, registers a reply channel,
// emits a single http_input message tagged with that id as both id and
// batch_id (batch_total 1, matching the reference implementation's
// single-request batching convention), and waits for the graph's
// ResponseSink to resolve it.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqID := rand.Int63() // #nosec G404 -- request correlation id, not security sensitive
	w.Header().Set("dag-request-id", strconv.FormatInt(reqID, 10))

	if s.registry == nil {
		http.Error(w, "no reply registry configured", http.StatusBadRequest)
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	reply := s.registry.Register(reqID)

	msg := Message{
		ID:         reqID,
		NodeID:     httpInputName,
		Data:       req.Features,
		BatchID:    Int64Ptr(reqID),
		BatchTotal: Int64Ptr(1),
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if err := s.router.Route(ctx, msg); err != nil {
		s.registry.Forget(reqID)
		http.Error(w, fmt.Sprintf("failed to route request: %v", err), http.StatusInternalServerError)
		return
	}

	select {
	case data := <-reply:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(data)
	case <-ctx.Done():
		s.registry.Forget(reqID)
		log.Warn().Int64("request_id", reqID).Msg("request timed out waiting for graph response")
		http.Error(w, "request timed out", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP ingress on addr, blocking until ctx is
// cancelled or the server fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
