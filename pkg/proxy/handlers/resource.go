package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/connect/pkg/journal"
	"mercator-hq/connect/pkg/proxy"
	"mercator-hq/connect/pkg/proxy/middleware"
	"mercator-hq/connect/pkg/telemetry/tracing"
	"mercator-hq/connect/pkg/upstream"
)

// StatusClientClosed is journaled when the caller went away before any
// status was written. It is never sent.
const StatusClientClosed = 499

// Streamer produces the fragments of a paginated listing.
// proxy.Streamer implements it.
type Streamer interface {
	Stream(ctx context.Context, path string, params proxy.Params) (<-chan proxy.Fragment, *proxy.StreamStats)
}

// Metrics receives per-request observations. metrics.Collector implements it.
type Metrics interface {
	RecordRequest(method, kind string, status int, duration time.Duration, bytes int64)
}

// Journal receives per-request records. journal.Recorder implements it.
type Journal interface {
	Record(record *journal.Record) error
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(string, string, int, time.Duration, int64) {}

type noopJournal struct{}

func (noopJournal) Record(*journal.Record) error { return nil }

// ResourceConfig contains the collaborators of a ResourceHandler.
type ResourceConfig struct {
	Streamer  Streamer
	Forwarder proxy.Forwarder
	Metrics   Metrics
	Journal   Journal
	Logger    *slog.Logger
}

// ResourceHandler serves every upstream resource path. GET requests are
// streamed as one JSON array across all upstream pages; PUT, POST, DELETE
// and PATCH are forwarded once and relayed.
type ResourceHandler struct {
	streamer  Streamer
	forwarder proxy.Forwarder
	metrics   Metrics
	journal   Journal
	logger    *slog.Logger
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(cfg ResourceConfig) *ResourceHandler {
	h := &ResourceHandler{
		streamer:  cfg.Streamer,
		forwarder: cfg.Forwarder,
		metrics:   cfg.Metrics,
		journal:   cfg.Journal,
		logger:    cfg.Logger,
	}
	if h.metrics == nil {
		h.metrics = noopMetrics{}
	}
	if h.journal == nil {
		h.journal = noopJournal{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "proxy.handler")
	return h
}

// ServeHTTP implements http.Handler.
func (h *ResourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.stream(w, r)
	case http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodPatch:
		h.forward(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT, POST, DELETE, PATCH")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ResourceHandler) stream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	path := proxy.UpstreamPath(r)
	params := proxy.Classify(r.URL.Query())

	fragments, stats := h.streamer.Stream(ctx, path, params)
	res := proxy.WriteStream(w, fragments)

	// Stop the producer and wait for it so stats are final.
	cancel()
	for range fragments {
	}

	record := &journal.Record{
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: start,
		Method:    r.Method,
		Path:      path,
		Kind:      journal.KindStream,
		Status:    res.Status,
		Pages:     stats.Pages,
		Entities:  res.Entities,
		Bytes:     res.Bytes,
		Renewals:  stats.Renewals,
		Truncated: res.Truncated,
	}
	switch {
	case res.Failure != nil:
		record.Error = res.Failure.Err.Error()
	case res.Err != nil:
		record.Error = res.Err.Error()
	case res.Status == 0:
		record.Error = "client closed request"
	}
	if record.Status == 0 {
		record.Status = StatusClientClosed
	}

	h.finish(r, record, start)

	if res.Truncated || (res.Err != nil && res.Status != 0) {
		proxy.AbortResponse()
	}
}

func (h *ResourceHandler) forward(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	path := proxy.UpstreamPath(r)
	record := &journal.Record{
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: start,
		Method:    r.Method,
		Path:      path,
		Kind:      journal.KindForward,
	}
	defer h.finish(r, record, start)

	body, err := proxy.ReadBody(r)
	if err != nil {
		record.Status = proxy.WriteError(w, err)
		record.Error = err.Error()
		return
	}

	resp, err := h.forwarder.Forward(r.Context(), upstream.Request{
		Method: r.Method,
		Path:   path,
		Query:  proxy.Classify(r.URL.Query()).Forward,
		Body:   body,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			record.Status = StatusClientClosed
			record.Error = err.Error()
			return
		}
		record.Status = proxy.WriteError(w, err)
		record.Error = err.Error()
		return
	}

	record.Status = resp.StatusCode
	if resp.Renewed {
		record.Renewals = 1
	}
	if !resp.IsSuccess() {
		record.Error = firstLine(resp.Body)
	}

	n, err := proxy.WritePassthrough(w, resp)
	record.Bytes = n
	if err != nil && record.Error == "" {
		record.Error = err.Error()
	}
}

// finish records metrics, the journal entry and the span status.
func (h *ResourceHandler) finish(r *http.Request, record *journal.Record, start time.Time) {
	record.Duration = time.Since(start)

	h.metrics.RecordRequest(record.Method, record.Kind, record.Status, record.Duration, record.Bytes)
	tracing.SetStatusCode(trace.SpanFromContext(r.Context()), record.Status)

	if err := h.journal.Record(record); err != nil {
		h.logger.DebugContext(r.Context(), "journal record not queued", "error", err)
	}

	attrs := []any{
		"method", record.Method,
		"path", record.Path,
		"kind", record.Kind,
		"status", record.Status,
		"pages", record.Pages,
		"entities", record.Entities,
		"renewals", record.Renewals,
		"duration_ms", record.Duration.Milliseconds(),
	}
	if record.Failed() {
		attrs = append(attrs, "truncated", record.Truncated, "error", record.Error)
		h.logger.WarnContext(r.Context(), "request failed", attrs...)
		return
	}
	h.logger.DebugContext(r.Context(), "request served", attrs...)
}

func firstLine(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 256
	if len(s) > max {
		s = s[:max]
	}
	return s
}
