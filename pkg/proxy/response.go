package proxy

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"mercator-hq/connect/pkg/upstream"
)

// StreamResult describes what WriteStream sent to the caller.
type StreamResult struct {
	// Status is the committed HTTP status (0 when nothing was written).
	Status int

	// Bytes is the number of body bytes written.
	Bytes int64

	// Entities is the number of entities written.
	Entities int

	// Failure is the failure that ended the stream, if any.
	Failure *Failure

	// Truncated reports that the array was cut short after status 200 had
	// been committed. The caller must abort the connection with
	// AbortResponse so the client cannot mistake the body for a complete
	// result.
	Truncated bool

	// Err is the error returned by the ResponseWriter, if any.
	Err error
}

// WriteStream drains fragments into w. The status and Content-Type are
// committed lazily on the second fragment, so a failure on the first page
// is reported with the upstream's status and the diagnostic object alone,
// or as a plain-text 500 when no upstream response was received.
// WriteStream returns on the first write error; the caller must then cancel
// the stream's context.
func WriteStream(w http.ResponseWriter, fragments <-chan Fragment) StreamResult {
	var (
		res      StreamResult
		pending  []byte
		complete bool
	)
	flusher, _ := w.(http.Flusher)

	write := func(b []byte) bool {
		n, err := w.Write(b)
		res.Bytes += int64(n)
		if err != nil {
			res.Err = err
			return false
		}
		return true
	}

	for f := range fragments {
		if f.Failure != nil {
			res.Failure = f.Failure
			if res.Status == 0 {
				var upErr *UpstreamError
				if !errors.As(f.Failure.Err, &upErr) {
					// Internal faults before commit are plain text.
					res.Status = f.Failure.Status
					res.Bytes, res.Err = writePlain(w, f.Failure.Status, f.Failure.Err.Error())
					return res
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(f.Failure.Status)
				res.Status = f.Failure.Status
				write(f.Failure.Diagnostic)
				return res
			}
			if write(f.Failure.Diagnostic) && flusher != nil {
				flusher.Flush()
			}
			res.Truncated = true
			return res
		}

		if res.Status == 0 && pending == nil {
			pending = f.Data
			continue
		}
		if res.Status == 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			res.Status = http.StatusOK
			if !write(pending) {
				return res
			}
			pending = nil
		}

		if !write(f.Data) {
			return res
		}
		if f.Entity {
			res.Entities++
		}
		complete = bytes.Equal(f.Data, closeArray)
		if flusher != nil {
			flusher.Flush()
		}
	}

	if res.Status != 0 && !complete {
		res.Truncated = true
	}
	return res
}

// AbortResponse aborts the current response. The server closes the
// connection without completing the body and suppresses the panic.
func AbortResponse() {
	panic(http.ErrAbortHandler)
}

// WritePassthrough relays an upstream response. Success keeps the upstream
// Content-Type; any other status is relayed as text/plain.
func WritePassthrough(w http.ResponseWriter, resp *upstream.Response) (int64, error) {
	if resp.IsSuccess() {
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
	} else {
		w.Header().Set("Content-Type", "text/plain")
	}
	w.WriteHeader(resp.StatusCode)

	n, err := w.Write(resp.Body)
	return int64(n), err
}

// WriteError writes err as a plain-text response and returns the status
// used.
func WriteError(w http.ResponseWriter, err error) int {
	status := StatusFor(err)
	_, _ = writePlain(w, status, err.Error())
	return status
}

func writePlain(w http.ResponseWriter, status int, text string) (int64, error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	n, err := io.WriteString(w, text)
	return int64(n), err
}
