package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys in the connect.* namespace.
const (
	AttrRequestID     = "connect.request_id"
	AttrPath          = "connect.path"
	AttrAttempt       = "connect.attempt"
	AttrTokenRenewed  = "connect.token.renewed"
	AttrPage          = "connect.page"
	AttrPagesFetched  = "connect.pages_fetched"
	AttrEntities      = "connect.entities"
	AttrStatusCode    = "http.status_code"
	AttrHTTPMethod    = "http.method"
	AttrHTTPURL       = "http.url"
	AttrHTTPRoute     = "http.target"
	AttrAuthenticated = "connect.authenticated"
)

// UpstreamCallAttributes returns the attributes recorded on every upstream
// call span.
func UpstreamCallAttributes(method, url string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPURL, url),
		attribute.Int(AttrAttempt, attempt),
	}
}

// SetStatusCode records the HTTP status of an upstream response.
func SetStatusCode(span trace.Span, status int) {
	span.SetAttributes(attribute.Int(AttrStatusCode, status))
}

// SetStreamAttributes records the outcome of a paginated listing.
func SetStreamAttributes(span trace.Span, pages, entities int) {
	span.SetAttributes(
		attribute.Int(AttrPagesFetched, pages),
		attribute.Int(AttrEntities, entities),
	)
}

func serverSpan(r *http.Request) []trace.SpanStartOption {
	return []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrHTTPMethod, r.Method),
			attribute.String(AttrHTTPRoute, r.URL.Path),
		),
	}
}
