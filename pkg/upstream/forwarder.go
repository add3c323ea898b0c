package upstream

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mercator-hq/connect/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/trace"
)

// Request is one call to the upstream API.
type Request struct {
	// Method is the HTTP method.
	Method string

	// Path is the upstream path relative to the base URL.
	Path string

	// Query holds the query parameters sent upstream.
	Query url.Values

	// Body is the JSON request body; nil or empty means no body.
	Body []byte

	// ForceRenew obtains a new token before the first attempt.
	ForceRenew bool
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Renewed reports that the first attempt was rejected with 401 and this
	// response comes from the retry with a renewed token.
	Renewed bool
}

// ForwarderConfig contains the settings for a Forwarder.
type ForwarderConfig struct {
	// Client performs the upstream calls.
	Client *http.Client

	// BaseURL is the upstream base URL.
	BaseURL string

	// Tokens supplies bearer tokens.
	Tokens *TokenManager

	// Tracer creates a client span per attempt (optional).
	Tracer *tracing.Tracer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Recorder receives call observations (optional).
	Recorder Recorder
}

// Forwarder performs authenticated upstream calls. A call rejected with 401
// triggers exactly one token refresh and one identical retry; the retry's
// response is returned whatever its status. Transport failures are not
// retried.
type Forwarder struct {
	client   *http.Client
	baseURL  string
	tokens   *TokenManager
	tracer   *tracing.Tracer
	logger   *slog.Logger
	recorder Recorder
}

// NewForwarder creates a Forwarder.
func NewForwarder(cfg ForwarderConfig) *Forwarder {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Forwarder{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		tokens:   cfg.Tokens,
		tracer:   tracer,
		logger:   logger.With("component", "upstream.forwarder"),
		recorder: recorder,
	}
}

// Forward performs req against the upstream API.
//
// Errors are *AuthenticationError when no token could be obtained,
// *TransportError when no response was received, or the context error when
// ctx ended while waiting for a token renewal. Any HTTP response, including
// non-2xx, is returned as a Response.
func (f *Forwarder) Forward(ctx context.Context, req Request) (*Response, error) {
	tok, err := f.tokens.Acquire(ctx, req.ForceRenew)
	if err != nil {
		return nil, err
	}

	resp, err := f.attempt(ctx, req, tok, 1)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	f.logger.InfoContext(ctx, "upstream rejected token, renewing",
		"method", req.Method,
		"path", req.Path,
	)

	tok, err = f.tokens.Refresh(ctx, tok)
	if err != nil {
		return nil, err
	}

	resp, err = f.attempt(ctx, req, tok, 2)
	if err != nil {
		return nil, err
	}
	resp.Renewed = true
	return resp, nil
}

// URL returns the upstream URL for path and query.
func (f *Forwarder) URL(path string, query url.Values) string {
	u := f.baseURL + "/" + strings.TrimLeft(path, "/")
	if encoded := query.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// attempt performs a single upstream call with tok.
func (f *Forwarder) attempt(ctx context.Context, req Request, tok Token, n int) (*Response, error) {
	target := f.URL(req.Path, req.Query)

	ctx, span := f.tracer.Start(ctx, "upstream "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.UpstreamCallAttributes(req.Method, target, n)...),
	)
	defer span.End()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		tracing.SetError(span, err)
		return nil, &TransportError{Method: req.Method, URL: target, Cause: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+tok.Value)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	tracing.Inject(ctx, httpReq.Header)

	f.logger.DebugContext(ctx, "calling upstream",
		"method", req.Method,
		"url", target,
		"attempt", n,
	)

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		f.recorder.RecordUpstreamCall(req.Method, 0, time.Since(start))
		tracing.SetError(span, err)
		f.logger.WarnContext(ctx, "upstream call failed",
			"method", req.Method,
			"url", target,
			"error", err,
		)
		return nil, &TransportError{Method: req.Method, URL: target, Cause: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	f.recorder.RecordUpstreamCall(req.Method, httpResp.StatusCode, duration)
	tracing.SetStatusCode(span, httpResp.StatusCode)
	if err != nil {
		tracing.SetError(span, err)
		return nil, &TransportError{Method: req.Method, URL: target, Cause: err}
	}

	f.logger.DebugContext(ctx, "upstream responded",
		"method", req.Method,
		"url", target,
		"status", httpResp.StatusCode,
		"bytes", len(respBody),
		"duration_ms", duration.Milliseconds(),
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

// IsSuccess reports whether the response status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}
