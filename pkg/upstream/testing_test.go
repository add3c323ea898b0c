package upstream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeUpstream is an upstream API that issues numbered tokens and accepts
// only the most recently issued one.
type fakeUpstream struct {
	*httptest.Server

	authCalls atomic.Int32
	calls     atomic.Int32

	mu          sync.Mutex
	current     string
	authStatus  int
	alwaysDeny  bool
	lastBodies  []string
	lastQueries []string
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()

	f := &fakeUpstream{authStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /authenticate", f.authenticate)
	mux.HandleFunc("/", f.resource)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeUpstream) authenticate(w http.ResponseWriter, r *http.Request) {
	n := f.authCalls.Add(1)

	var creds map[string]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.authStatus != http.StatusOK {
		http.Error(w, "invalid credentials", f.authStatus)
		return
	}
	if creds["username"] == "" || creds["password"] == "" {
		http.Error(w, "missing credentials", http.StatusBadRequest)
		return
	}

	f.current = fmt.Sprintf("token-%d-%s", n, creds["username"])
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": f.current})
}

func (f *fakeUpstream) resource(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.lastBodies = append(f.lastBodies, string(body))
	f.lastQueries = append(f.lastQueries, r.URL.RawQuery)
	ok := !f.alwaysDeny && r.Header.Get("Authorization") == "Bearer "+f.current
	f.mu.Unlock()

	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
}

// rotate invalidates the currently issued token.
func (f *fakeUpstream) rotate() {
	f.mu.Lock()
	f.current = "revoked"
	f.mu.Unlock()
}

func (f *fakeUpstream) setAuthStatus(status int) {
	f.mu.Lock()
	f.authStatus = status
	f.mu.Unlock()
}

func (f *fakeUpstream) setAlwaysDeny(deny bool) {
	f.mu.Lock()
	f.alwaysDeny = deny
	f.mu.Unlock()
}

func (f *fakeUpstream) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lastBodies...)
}

func (f *fakeUpstream) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lastQueries...)
}

func (f *fakeUpstream) tokens() *TokenManager {
	return NewTokenManager(TokenManagerConfig{
		Client:   f.Client(),
		BaseURL:  f.URL,
		Username: "alice",
		Password: "secret",
	})
}

// recordingRecorder counts observations.
type recordingRecorder struct {
	mu       sync.Mutex
	calls    []int
	renewals []bool
}

func (r *recordingRecorder) RecordUpstreamCall(_ string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, status)
}

func (r *recordingRecorder) RecordTokenRenewal(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renewals = append(r.renewals, success)
}

func (r *recordingRecorder) SetTokenTimes(time.Time, time.Time) {}
