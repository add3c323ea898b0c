package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
)

func newTestForwarder(up *fakeUpstream, rec Recorder) *Forwarder {
	return NewForwarder(ForwarderConfig{
		Client:   up.Client(),
		BaseURL:  up.URL,
		Tokens:   up.tokens(),
		Recorder: rec,
	})
}

func TestForwarder_Forward(t *testing.T) {
	up := newFakeUpstream(t)
	fwd := newTestForwarder(up, nil)

	resp, err := fwd.Forward(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "companies",
		Query:  url.Values{"page": {"3"}},
	})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"path":"/companies"}` {
		t.Errorf("Body = %s", resp.Body)
	}
	if resp.Renewed {
		t.Error("Renewed = true on first-attempt success")
	}
	if q := up.queries(); len(q) != 1 || q[0] != "page=3" {
		t.Errorf("upstream queries = %v, want [page=3]", q)
	}
}

func TestForwarder_ForceRenew(t *testing.T) {
	up := newFakeUpstream(t)
	fwd := newTestForwarder(up, nil)

	tests := []struct {
		name          string
		forceRenew    bool
		wantAuthCalls int32
	}{
		{name: "first call authenticates", wantAuthCalls: 1},
		{name: "held token reused", wantAuthCalls: 1},
		{name: "forced renewal", forceRenew: true, wantAuthCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := fwd.Forward(context.Background(), Request{
				Method:     http.MethodGet,
				Path:       "companies",
				ForceRenew: tt.forceRenew,
			})
			if err != nil {
				t.Fatalf("Forward() error = %v", err)
			}
			if resp.StatusCode != http.StatusOK || resp.Renewed {
				t.Errorf("StatusCode = %d, Renewed = %v, want 200 without a 401 retry", resp.StatusCode, resp.Renewed)
			}
			if got := up.authCalls.Load(); got != tt.wantAuthCalls {
				t.Errorf("authenticate called %d times, want %d", got, tt.wantAuthCalls)
			}
		})
	}
}

func TestForwarder_RenewsOnceOn401(t *testing.T) {
	up := newFakeUpstream(t)
	rec := &recordingRecorder{}
	fwd := newTestForwarder(up, rec)

	if _, err := fwd.Forward(context.Background(), Request{Method: http.MethodGet, Path: "companies"}); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}

	up.rotate()

	body := []byte(`{"name":"ACME"}`)
	resp, err := fwd.Forward(context.Background(), Request{Method: http.MethodPost, Path: "companies", Body: body})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if !resp.Renewed {
		t.Error("Renewed = false after a 401 retry")
	}
	if got := up.authCalls.Load(); got != 2 {
		t.Errorf("authenticate called %d times, want 2", got)
	}

	bodies := up.bodies()
	if len(bodies) != 3 {
		t.Fatalf("upstream saw %d resource calls, want 3", len(bodies))
	}
	if bodies[1] != string(body) || bodies[2] != string(body) {
		t.Errorf("retry body differs: first %q, retry %q", bodies[1], bodies[2])
	}
}

func TestForwarder_SecondRejectionIsFinal(t *testing.T) {
	up := newFakeUpstream(t)
	up.setAlwaysDeny(true)
	fwd := newTestForwarder(up, nil)

	resp, err := fwd.Forward(context.Background(), Request{Method: http.MethodGet, Path: "companies"})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", resp.StatusCode)
	}
	if got := up.calls.Load(); got != 2 {
		t.Errorf("upstream called %d times, want 2", got)
	}
	if got := up.authCalls.Load(); got != 2 {
		t.Errorf("authenticate called %d times, want 2", got)
	}
}

func TestForwarder_NonAuthErrorsPassThrough(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/authenticate" {
			_, _ = w.Write([]byte(`{"token":"t"}`))
			return
		}
		calls.Add(1)
		http.Error(w, `{"error":"missing"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	tm := NewTokenManager(TokenManagerConfig{Client: srv.Client(), BaseURL: srv.URL, Username: "u", Password: "p"})
	fwd := NewForwarder(ForwarderConfig{Client: srv.Client(), BaseURL: srv.URL, Tokens: tm})

	resp, err := fwd.Forward(context.Background(), Request{Method: http.MethodGet, Path: "/companies/9"})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
	if resp.IsSuccess() {
		t.Error("IsSuccess() = true for 404")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream called %d times, want 1", got)
	}
}

func TestForwarder_TransportError(t *testing.T) {
	up := newFakeUpstream(t)
	tm := up.tokens()
	if _, err := tm.Acquire(context.Background(), false); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Point the forwarder at a closed server while the token stays valid.
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	fwd := NewForwarder(ForwarderConfig{BaseURL: deadURL, Tokens: tm})
	_, err := fwd.Forward(context.Background(), Request{Method: http.MethodGet, Path: "companies"})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Forward() error = %v, want *TransportError", err)
	}
	if transportErr.Method != http.MethodGet {
		t.Errorf("Method = %q, want GET", transportErr.Method)
	}
}

func TestForwarder_AuthenticationError(t *testing.T) {
	up := newFakeUpstream(t)
	up.setAuthStatus(http.StatusUnauthorized)
	fwd := newTestForwarder(up, nil)

	_, err := fwd.Forward(context.Background(), Request{Method: http.MethodGet, Path: "companies"})

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Forward() error = %v, want *AuthenticationError", err)
	}
	if got := up.calls.Load(); got != 0 {
		t.Errorf("resource called %d times without a token", got)
	}
}

func TestForwarder_ConcurrentRejectionsShareRenewal(t *testing.T) {
	up := newFakeUpstream(t)
	fwd := newTestForwarder(up, nil)

	if _, err := fwd.Forward(context.Background(), Request{Method: http.MethodGet, Path: "warmup"}); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	up.rotate()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := fwd.Forward(context.Background(), Request{Method: http.MethodGet, Path: "companies"})
			if err != nil {
				t.Errorf("Forward() error = %v", err)
				return
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	if got := up.authCalls.Load(); got != 2 {
		t.Errorf("authenticate called %d times, want 2", got)
	}
}

func TestForwarder_URL(t *testing.T) {
	fwd := NewForwarder(ForwarderConfig{BaseURL: "https://api.example.com/v1/"})

	tests := []struct {
		path  string
		query url.Values
		want  string
	}{
		{path: "companies", want: "https://api.example.com/v1/companies"},
		{path: "/companies", want: "https://api.example.com/v1/companies"},
		{path: "companies/7", query: url.Values{"b": {"2"}, "a": {"1"}}, want: "https://api.example.com/v1/companies/7?a=1&b=2"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := fwd.URL(tt.path, tt.query); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}
