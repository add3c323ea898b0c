package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CheckFunc reports whether a dependency is usable. It returns nil when
// healthy and an error describing the problem otherwise.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single readiness check.
type CheckResult struct {
	// Status is "ok" or "failing".
	Status string `json:"status"`

	// Message carries the error text of a failing check.
	Message string `json:"message,omitempty"`

	// DurationMS is how long the check took in milliseconds.
	DurationMS float64 `json:"duration_ms"`
}

// Status is the body of the liveness and readiness endpoints.
type Status struct {
	// Status is "ok" for liveness, "ready" or "not_ready" for readiness.
	Status string `json:"status"`

	// Checks holds the individual readiness results by name.
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// Timestamp is when the status was computed.
	Timestamp time.Time `json:"timestamp"`
}

// Checker runs named readiness checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc

	checkTimeout time.Duration
}

// New creates a new health checker. A zero timeout defaults to 5 seconds
// per check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}

	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// RegisterCheck registers or replaces a named readiness check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// ListChecks returns the registered check names in sorted order.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckLiveness reports that the process is serving.
func (c *Checker) CheckLiveness(ctx context.Context) Status {
	return Status{Status: "ok", Timestamp: time.Now()}
}

// CheckReadiness runs every registered check concurrently. The service is
// ready only when all of them pass.
func (c *Checker) CheckReadiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.runCheck(ctx, check)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}()
	}
	wg.Wait()

	status := "ready"
	for _, result := range results {
		if result.Status != "ok" {
			status = "not_ready"
		}
	}

	return Status{Status: status, Checks: results, Timestamp: time.Now()}
}

// runCheck executes a single check bounded by the check timeout.
func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	var err error
	select {
	case err = <-errChan:
	case <-checkCtx.Done():
		err = checkCtx.Err()
	}

	result := CheckResult{Status: "ok", DurationMS: float64(time.Since(start).Microseconds()) / 1000}
	if err != nil {
		result.Status = "failing"
		result.Message = err.Error()
	}
	return result
}
