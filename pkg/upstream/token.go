package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// maxErrorBody caps how much of an error response is kept in error messages.
const maxErrorBody = 512

// Token is an upstream bearer token.
type Token struct {
	// Value is the opaque bearer string.
	Value string

	// IssuedAt is when the token was obtained.
	IssuedAt time.Time

	// ExpiresAt is the exp claim when Value is a JWT, zero otherwise. It is
	// informational: renewal is driven by upstream 401 responses only.
	ExpiresAt time.Time
}

// IssuedAtMillis returns the issue time in milliseconds since the Unix epoch.
func (t Token) IssuedAtMillis() int64 {
	return t.IssuedAt.UnixMilli()
}

// IsZero reports whether t holds no token.
func (t Token) IsZero() bool {
	return t.Value == ""
}

// TokenManagerConfig contains the settings for a TokenManager.
type TokenManagerConfig struct {
	// Client performs the authentication calls.
	Client *http.Client

	// BaseURL is the upstream base URL.
	BaseURL string

	// AuthenticatePath is appended to BaseURL (default "/authenticate").
	AuthenticatePath string

	// Username and Password are posted to the authentication endpoint.
	Username string
	Password string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Recorder receives renewal observations (optional).
	Recorder Recorder
}

// TokenManager owns the process-wide bearer token. It holds at most one
// token, obtains one lazily on first use and replaces it on demand. Renewals
// are serialized; callers that were waiting for a renewal started by someone
// else reuse its result instead of authenticating again.
type TokenManager struct {
	client   *http.Client
	authURL  string
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	mu       sync.RWMutex
	username string
	password string
	token    Token

	// generation counts credential changes. A renewal started under an
	// older generation does not store its token.
	generation uint64

	// renewing is a context-aware mutex: holding its single slot means a
	// renewal is in progress.
	renewing chan struct{}
}

// NewTokenManager creates a token manager. No token is held until the first
// Acquire.
func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	authPath := cfg.AuthenticatePath
	if authPath == "" {
		authPath = "/authenticate"
	}

	return &TokenManager{
		client:   client,
		authURL:  strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(authPath, "/"),
		logger:   logger.With("component", "upstream.token"),
		recorder: recorder,
		now:      time.Now,
		username: cfg.Username,
		password: cfg.Password,
		renewing: make(chan struct{}, 1),
	}
}

// Acquire returns the held token, authenticating first when none is held or
// forceRenew is set. Authentication failures are returned as
// *AuthenticationError and leave any previously held token in place.
func (m *TokenManager) Acquire(ctx context.Context, forceRenew bool) (Token, error) {
	if !forceRenew {
		if tok, ok := m.Current(); ok {
			return tok, nil
		}
	}

	if err := m.lock(ctx); err != nil {
		return Token{}, err
	}
	defer m.unlock()

	// A renewal that finished while we waited already produced a token.
	if !forceRenew {
		if tok, ok := m.Current(); ok {
			return tok, nil
		}
	}

	return m.authenticate(ctx)
}

// Refresh replaces a token the upstream has rejected. When the held token is
// no longer stale (another request renewed it while this one waited), the
// held token is returned without authenticating again.
func (m *TokenManager) Refresh(ctx context.Context, stale Token) (Token, error) {
	if err := m.lock(ctx); err != nil {
		return Token{}, err
	}
	defer m.unlock()

	if tok, ok := m.Current(); ok && (tok.Value != stale.Value || tok.IssuedAt.After(stale.IssuedAt)) {
		m.logger.DebugContext(ctx, "token already renewed by a concurrent request")
		return tok, nil
	}

	return m.authenticate(ctx)
}

// Current returns the held token and whether one is held.
func (m *TokenManager) Current() (Token, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, !m.token.IsZero()
}

// SetCredentials replaces the credential pair and drops the held token, so
// the next call authenticates with the new pair. Unchanged credentials are
// a no-op.
func (m *TokenManager) SetCredentials(username, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if username == m.username && password == m.password {
		return
	}
	m.username = username
	m.password = password
	m.token = Token{}
	m.generation++
	m.logger.Info("upstream credentials changed, token dropped")
}

func (m *TokenManager) lock(ctx context.Context) error {
	select {
	case m.renewing <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *TokenManager) unlock() {
	<-m.renewing
}

// authenticate performs the authentication call and stores the new token.
// It must be called with the renewal lock held.
func (m *TokenManager) authenticate(ctx context.Context) (Token, error) {
	m.mu.RLock()
	creds := map[string]string{"username": m.username, "password": m.password}
	generation := m.generation
	m.mu.RUnlock()

	payload, err := json.Marshal(creds)
	if err != nil {
		return Token{}, m.fail(&AuthenticationError{URL: m.authURL, Message: "failed to encode credentials", Cause: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.authURL, bytes.NewReader(payload))
	if err != nil {
		return Token{}, m.fail(&AuthenticationError{URL: m.authURL, Message: "failed to create request", Cause: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	m.logger.DebugContext(ctx, "authenticating against upstream", "url", m.authURL)

	start := m.now()
	resp, err := m.client.Do(req)
	if err != nil {
		m.recorder.RecordUpstreamCall(http.MethodPost, 0, time.Since(start))
		return Token{}, m.fail(&AuthenticationError{URL: m.authURL, Message: "request failed", Cause: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	m.recorder.RecordUpstreamCall(http.MethodPost, resp.StatusCode, time.Since(start))
	if err != nil {
		return Token{}, m.fail(&AuthenticationError{URL: m.authURL, StatusCode: resp.StatusCode, Message: "failed to read response", Cause: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Token{}, m.fail(&AuthenticationError{URL: m.authURL, StatusCode: resp.StatusCode, Message: truncate(string(body))})
	}

	var parsed struct {
		Token *string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Token{}, m.fail(&AuthenticationError{URL: m.authURL, Message: "response is not JSON", Cause: err})
	}
	if parsed.Token == nil || *parsed.Token == "" {
		return Token{}, m.fail(&AuthenticationError{URL: m.authURL, Message: `response has no "token" field`})
	}

	tok := Token{
		Value:     *parsed.Token,
		IssuedAt:  m.now(),
		ExpiresAt: tokenExpiry(*parsed.Token),
	}

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		// The caller still gets the token for its in-flight call; the next
		// call authenticates with the new pair.
		m.logger.InfoContext(ctx, "credentials changed during authentication, token not kept")
		return tok, nil
	}
	m.token = tok
	m.mu.Unlock()

	m.recorder.RecordTokenRenewal(true)
	m.recorder.SetTokenTimes(tok.IssuedAt, tok.ExpiresAt)

	attrs := []any{"issued_at_ms", tok.IssuedAtMillis()}
	if !tok.ExpiresAt.IsZero() {
		attrs = append(attrs, "expires_at", tok.ExpiresAt)
	}
	m.logger.InfoContext(ctx, "upstream token obtained", attrs...)

	return tok, nil
}

func (m *TokenManager) fail(err *AuthenticationError) error {
	m.recorder.RecordTokenRenewal(false)
	m.logger.Error("upstream authentication failed", "error", err)
	return err
}

// tokenExpiry returns the exp claim of a JWT without verifying its
// signature, or the zero time when value is not a JWT or carries no exp.
func tokenExpiry(value string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return s
}
