package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/connect/pkg/proxy"
	"mercator-hq/connect/pkg/telemetry/logging"
)

// maxRequestIDLength bounds caller-supplied request IDs.
const maxRequestIDLength = 128

// RequestIDMiddleware assigns every request an ID, stores it in the context
// (where the logging handler picks it up) and echoes it in X-Request-ID.
// A caller-supplied ID is reused when it is short and printable ASCII;
// otherwise a UUID v4 is generated.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(proxy.RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set(proxy.RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
