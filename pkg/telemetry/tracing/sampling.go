package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// createSampler returns a parent-based sampler. A ratio of 1 samples every
// root trace; anything lower uses trace-ID ratio sampling so that the decision
// is consistent across services sharing a trace.
func createSampler(ratio float64) (sdktrace.Sampler, error) {
	if ratio < 0.0 || ratio > 1.0 {
		return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
	}

	var base sdktrace.Sampler
	switch ratio {
	case 1.0:
		base = sdktrace.AlwaysSample()
	case 0.0:
		base = sdktrace.NeverSample()
	default:
		base = sdktrace.TraceIDRatioBased(ratio)
	}

	return sdktrace.ParentBased(base), nil
}
