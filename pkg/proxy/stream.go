package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"

	"mercator-hq/connect/pkg/config"
	"mercator-hq/connect/pkg/telemetry/tracing"
	"mercator-hq/connect/pkg/upstream"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stream outcomes reported to the Recorder and in StreamStats.
const (
	OutcomeComplete  = "complete"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var (
	openArray  = []byte("[")
	closeArray = []byte("]")
)

// Forwarder performs one authenticated upstream call.
// upstream.Forwarder implements it.
type Forwarder interface {
	Forward(ctx context.Context, req upstream.Request) (*upstream.Response, error)
}

// Recorder receives paging observations. metrics.Collector implements it.
type Recorder interface {
	RecordPage(entities int)
	RecordStream(pages int, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordPage(int) {}
func (noopRecorder) RecordStream(int, string) {}

// Fragment is one piece of a streamed JSON array.
type Fragment struct {
	// Data is "[", an entity (prefixed with "," after the first) or "]".
	Data []byte

	// Entity reports whether Data carries an entity.
	Entity bool

	// Failure is set on the last fragment of a stream that ended early.
	Failure *Failure
}

// Failure describes why a stream stopped before its closing bracket.
type Failure struct {
	// Status is the HTTP status to report: the upstream's status for a
	// rejected page, 500 for anything else.
	Status int

	// Diagnostic is the JSON object sent to the caller.
	Diagnostic []byte

	// Err is the underlying error.
	Err error
}

// StreamStats summarizes one stream. Its fields are final once the fragment
// channel is closed.
type StreamStats struct {
	Pages    int
	Entities int
	Renewals int
	Outcome  string
}

// StreamerConfig contains the settings for a Streamer.
type StreamerConfig struct {
	Forwarder Forwarder
	Paging    config.PagingConfig
	Tracer    *tracing.Tracer
	Logger    *slog.Logger
	Recorder  Recorder
}

// Streamer turns paginated upstream listings into a single JSON array.
type Streamer struct {
	fwd           Forwarder
	pageParam     string
	pageSizeParam string
	dataProperty  string
	pageSize      atomic.Int64
	tracer        *tracing.Tracer
	logger        *slog.Logger
	recorder      Recorder
}

// NewStreamer creates a Streamer. Empty paging fields take their defaults.
func NewStreamer(cfg StreamerConfig) *Streamer {
	paging := cfg.Paging
	config.ApplyPagingDefaults(&paging)

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

	s := &Streamer{
		fwd:           cfg.Forwarder,
		pageParam:     paging.PageParam,
		pageSizeParam: paging.PageSizeParam,
		dataProperty:  paging.DataProperty,
		tracer:        tracer,
		logger:        logger.With("component", "proxy.stream"),
		recorder:      recorder,
	}
	s.pageSize.Store(int64(paging.DefaultPageSize))
	return s
}

// SetDefaultPageSize changes the page size used when the caller supplies
// none. Non-positive values are ignored.
func (s *Streamer) SetDefaultPageSize(n int) {
	if n > 0 {
		s.pageSize.Store(int64(n))
	}
}

// DefaultPageSize returns the current default page size.
func (s *Streamer) DefaultPageSize() int {
	return int(s.pageSize.Load())
}

// Stream lists path page by page and returns the fragments of one JSON
// array. A page is fetched only after every fragment of the previous page
// has been received. The channel is closed after "]", after a Failure
// fragment, or as soon as ctx is done; the caller must either drain it or
// cancel ctx.
func (s *Streamer) Stream(ctx context.Context, path string, params Params) (<-chan Fragment, *StreamStats) {
	out := make(chan Fragment)
	stats := &StreamStats{}
	go s.produce(ctx, path, params, out, stats)
	return out, stats
}

func (s *Streamer) produce(ctx context.Context, path string, params Params, out chan<- Fragment, stats *StreamStats) {
	defer close(out)

	ctx, span := s.tracer.Start(ctx, "stream "+path,
		trace.WithAttributes(attribute.String(tracing.AttrPath, path)),
	)
	defer span.End()

	defer func() {
		s.recorder.RecordStream(stats.Pages, stats.Outcome)
		tracing.SetStreamAttributes(span, stats.Pages, stats.Entities)
	}()

	query := cloneValues(params.Forward)
	autoAdvance := !query.Has(s.pageParam)
	if !query.Has(s.pageSizeParam) {
		size := strconv.Itoa(s.DefaultPageSize())
		if limit, ok := params.Kept(ParamLimit); ok {
			if n, err := strconv.Atoi(limit); err == nil && n > 0 {
				size = strconv.Itoa(n)
			} else {
				s.logger.DebugContext(ctx, "ignoring invalid limit", "limit", limit)
			}
		}
		query.Set(s.pageSizeParam, size)
	}

	dataProperty := s.dataProperty
	if v, ok := params.Kept(ParamDataProperty); ok {
		dataProperty = v
	}
	updatedProperty, stamp := params.Kept(ParamUpdatedProperty)

	stats.Outcome = OutcomeCancelled
	if !send(ctx, out, Fragment{Data: openArray}) {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		resp, err := s.fwd.Forward(ctx, upstream.Request{
			Method: http.MethodGet,
			Path:   path,
			Query:  query,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			tracing.SetError(span, err)
			s.fail(ctx, out, stats, &Failure{
				Status:     StatusFor(err),
				Diagnostic: diagnostic([]byte(err.Error())),
				Err:        err,
			})
			return
		}

		stats.Pages++
		if resp.Renewed {
			stats.Renewals++
		}

		if !resp.IsSuccess() {
			err := &UpstreamError{StatusCode: resp.StatusCode, Body: resp.Body}
			tracing.SetError(span, err)
			s.fail(ctx, out, stats, &Failure{
				Status:     resp.StatusCode,
				Diagnostic: diagnostic(resp.Body),
				Err:        err,
			})
			return
		}

		pg, err := parsePage(resp.Body, dataProperty)
		if err != nil {
			s.logger.WarnContext(ctx, "unexpected page body, treating as empty",
				"path", path,
				"page", stats.Pages,
				"error", err,
			)
		}
		s.recorder.RecordPage(len(pg.entities))

		for _, entity := range pg.entities {
			data, err := s.encodeEntity(entity, updatedProperty, stamp)
			if err != nil {
				s.fail(ctx, out, stats, &Failure{
					Status:     http.StatusInternalServerError,
					Diagnostic: diagnostic([]byte(err.Error())),
					Err:        err,
				})
				return
			}
			if stats.Entities > 0 {
				data = append([]byte{','}, data...)
			}
			if !send(ctx, out, Fragment{Data: data, Entity: true}) {
				return
			}
			stats.Entities++
		}

		if !autoAdvance || len(pg.entities) == 0 {
			break
		}
		next, ok := pg.nextCursor()
		if !ok {
			break
		}
		query.Set(s.pageParam, next)
	}

	if !send(ctx, out, Fragment{Data: closeArray}) {
		return
	}
	stats.Outcome = OutcomeComplete

	s.logger.DebugContext(ctx, "stream completed",
		"path", path,
		"pages", stats.Pages,
		"entities", stats.Entities,
	)
}

// encodeEntity stamps and compacts one entity.
func (s *Streamer) encodeEntity(entity json.RawMessage, updatedProperty string, stamp bool) ([]byte, error) {
	if stamp {
		var err error
		if entity, err = stampUpdated(entity, updatedProperty); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, entity); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Streamer) fail(ctx context.Context, out chan<- Fragment, stats *StreamStats, f *Failure) {
	s.logger.WarnContext(ctx, "stream failed",
		"status", f.Status,
		"pages", stats.Pages,
		"entities", stats.Entities,
		"error", f.Err,
	)
	if send(ctx, out, Fragment{Failure: f}) {
		stats.Outcome = OutcomeFailed
	}
}

func send(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}
