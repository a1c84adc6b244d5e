package dag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// MLModel scores an input vector either locally (a hosted deterministic
// function keyed by the step's own output name) or remotely over HTTP,
// depending on whether params.remote_endpoint is set.
//
// An empty input vector is dropped with a logged error before any
// inference is attempted, local or remote — there is nothing to score.
// Any other local or remote failure is also resolved to a drop with a
// logged error: the engine never carries an error inside a Message, and
// there is no well-defined partial result for a failed inference.
type MLModel struct {
	name       string
	inputName  string
	outputName string

	remoteEndpoint string
	httpClient     *http.Client
	retry          *RetryPolicy
	rng            *rand.Rand
}

// NewMLModel builds an MLModel step. Params: remote_endpoint (optional
// string; selects remote scoring when present). Local scoring requires
// the step's single output name to be a known scorer ("sum" or
// "product").
func NewMLModel(decl StepDecl) (*MLModel, error) {
	if len(decl.Inputs) != 1 || len(decl.Outputs) != 1 {
		return nil, fmt.Errorf("MLModel %q requires exactly one input and one output", decl.Name)
	}

	m := &MLModel{
		name:       decl.Name,
		inputName:  decl.Inputs[0],
		outputName: decl.Outputs[0],
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- retry jitter, not security sensitive
	}

	if endpoint, ok := decl.Params["remote_endpoint"].(string); ok && endpoint != "" {
		m.remoteEndpoint = endpoint
		m.httpClient = &http.Client{Timeout: 10 * time.Second}
		m.retry = &RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Retryable:   isRetryableHTTPError,
		}
		return m, nil
	}

	if _, ok := localScorers[m.outputName]; !ok {
		return nil, fmt.Errorf("MLModel %q: local scoring requires output name to be one of the known scorers (sum, product), got %q", decl.Name, m.outputName)
	}
	return m, nil
}

func (m *MLModel) Name() string       { return m.name }
func (m *MLModel) OutputName() string { return m.outputName }

func (m *MLModel) Handle(ctx context.Context, msg Message, router Router) error {
	start := time.Now()

	if len(msg.Data) == 0 {
		log.Error().Str("step", m.name).Int64("msg_id", msg.ID).Msg("MLModel: dropping message with empty input vector")
		return nil
	}

	var out []float64
	var err error
	if m.remoteEndpoint != "" {
		out, err = m.scoreRemote(ctx, msg.Data)
	} else {
		out = []float64{localScorers[m.outputName](msg.Data)}
	}
	if err != nil {
		log.Error().Str("step", m.name).Int64("msg_id", msg.ID).Err(err).Msg("MLModel: dropping message after inference failure")
		return nil
	}

	rec := TraceRecord{StepName: m.name, Duration: time.Since(start), Params: map[string]interface{}{"remote": m.remoteEndpoint != ""}}
	return router.Route(ctx, msg.WithData(m.outputName, out, rec))
}

// remoteRequest/remoteResponse mirror the wire shape the reference
// implementation's HTTP model endpoint speaks.
type remoteRequest struct {
	Features []float64 `json:"features"`
}

type remoteResponse struct {
	ProcessedFeatures []float64 `json:"processed_features"`
}

// scoreRemote POSTs the feature vector to the configured endpoint,
// retrying every failed attempt with exponential backoff up to
// MaxAttempts. A failed request, a non-2xx response, or a response body
// that does not decode returns an error, which Handle resolves to a drop.
func (m *MLModel) scoreRemote(ctx context.Context, features []float64) ([]float64, error) {
	var lastErr error

	for attempt := 0; attempt < m.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := computeBackoff(attempt-1, m.retry.BaseDelay, m.retry.MaxDelay, m.rng)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		out, err := m.doRemoteCall(ctx, features)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if m.retry.Retryable == nil || !m.retry.Retryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("MLModel remote call exhausted retries: %w", lastErr)
}

func (m *MLModel) doRemoteCall(ctx context.Context, features []float64) ([]float64, error) {
	body, err := json.Marshal(remoteRequest{Features: features})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.remoteEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote call returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed remoteResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parsed.ProcessedFeatures, nil
}

func isRetryableHTTPError(err error) bool {
	return err != nil
}
