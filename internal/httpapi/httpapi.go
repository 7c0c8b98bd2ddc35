// Package httpapi exposes a Dispatcher over HTTP: POST /v1/append to
// submit an observation batch for a symbol, GET /v1/stats to query a
// symbol's windowed statistics, plus /healthz and /metrics for
// operational tooling.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"k8s.io/klog/v2"

	"github.com/quantedge/symstat"
)

// Dispatcher is the subset of symstat.Dispatcher this package depends
// on, so handlers can be tested against a fake.
type Dispatcher interface {
	Submit(ctx context.Context, symbol symstat.Symbol, cmd symstat.Command) error
}

// Ingest is the subset of internal/ingest.Fabric this package depends
// on. When set via WithIngest, POST /v1/append pushes individual
// values through it instead of submitting one AppendBatch command
// directly to the Dispatcher.
type Ingest interface {
	Push(symbol symstat.Symbol, value float64)
}

// statusQueued is the status string returned to a caller whose batch
// was handed to an Ingest instead of submitted synchronously: the
// coalescer's whole purpose is to decouple submission from the
// per-batch reply, so there is no AppendBatch status to report yet.
const statusQueued = "queued for coalesced delivery"

// API holds the handlers bound to a single Dispatcher.
type API struct {
	d      Dispatcher
	ingest Ingest
}

// Option configures an API at construction time.
type Option func(*API)

// WithIngest routes POST /v1/append through ingest instead of
// submitting directly to the Dispatcher. If this option isn't
// provided, every append request is a single synchronous Submit.
func WithIngest(ingest Ingest) Option {
	return func(a *API) {
		a.ingest = ingest
	}
}

// New returns an API serving requests against d.
func New(d Dispatcher, opts ...Option) *API {
	a := &API{d: d}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// appendRequest is the JSON body of POST /v1/append.
type appendRequest struct {
	Symbol string    `json:"symbol"`
	Values []float64 `json:"values"`
}

// appendResponse is the JSON body returned by POST /v1/append.
type appendResponse struct {
	Status string `json:"status"`
}

// Mux builds the handler serving every route this package exposes,
// wrapped with a request-ID middleware. The append and stats routes
// additionally get an otelhttp span per request; /healthz and
// /metrics do not.
func (a *API) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/append", otelhttp.NewHandler(http.HandlerFunc(a.handleAppend), "append"))
	mux.Handle("GET /v1/stats", otelhttp.NewHandler(http.HandlerFunc(a.handleGetStats), "get-stats"))
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return withRequestID(mux)
}

func (a *API) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	if a.ingest != nil {
		a.handleAppendCoalesced(w, req)
		return
	}

	reply := make(chan string, 1)
	cmd := symstat.AppendBatchCommand{Values: req.Values, Reply: reply}
	if err := a.d.Submit(r.Context(), symstat.Symbol(req.Symbol), cmd); err != nil {
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}

	status := <-reply
	writeJSON(w, http.StatusOK, appendResponse{Status: status})
}

// handleAppendCoalesced pushes req's values through a.ingest one at a
// time instead of submitting a single AppendBatch command. The batch
// size is still validated up front, matching the limits a direct
// Submit would enforce, but the eventual AppendBatch this produces is
// assembled downstream by the coalescer on its own schedule, so there
// is no per-request reply to wait for.
func (a *API) handleAppendCoalesced(w http.ResponseWriter, req appendRequest) {
	if len(req.Values) < symstat.MinBatchSize || len(req.Values) > symstat.MaxBatchSize {
		writeJSON(w, http.StatusOK, appendResponse{Status: symstat.StatusInvalidBatchSize})
		return
	}
	symbol := symstat.Symbol(req.Symbol)
	for _, v := range req.Values {
		a.ingest.Push(symbol, v)
	}
	writeJSON(w, http.StatusAccepted, appendResponse{Status: statusQueued})
}

func (a *API) handleGetStats(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	k, err := strconv.Atoi(r.URL.Query().Get("k"))
	if err != nil || k < 0 {
		http.Error(w, "k must be a non-negative integer", http.StatusBadRequest)
		return
	}

	reply := make(chan symstat.Stats, 1)
	cmd := symstat.GetStatsCommand{K: k, Reply: reply}
	if err := a.d.Submit(r.Context(), symstat.Symbol(symbol), cmd); err != nil {
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, <-reply)
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		klog.Errorf("httpapi: encoding response: %v", err)
	}
}

// withRequestID stamps every response with an X-Request-Id header so
// a caller's logs can be correlated with this service's, even when
// tracing is disabled.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}
