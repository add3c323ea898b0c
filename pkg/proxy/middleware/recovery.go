package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// RecoveryMiddleware turns a handler panic into a plain-text 500 carrying
// the panic value and logs the stack. http.ErrAbortHandler is re-panicked so the server still drops
// the connection of a deliberately aborted response.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			http.Error(w, fmt.Sprint(err), http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
