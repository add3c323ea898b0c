package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// refreshTimeout bounds one scheduled renewal.
const refreshTimeout = 30 * time.Second

// RefreshScheduler forces token renewals on a cron schedule so that a token
// with a known lifetime is replaced before requests start hitting 401s.
type RefreshScheduler struct {
	schedule string
	tokens   *TokenManager
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewRefreshScheduler validates schedule and creates a scheduler. Standard
// five-field expressions and descriptors such as "@every 50m" are accepted.
func NewRefreshScheduler(schedule string, tokens *TokenManager) (*RefreshScheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid token refresh schedule %q: %w", schedule, err)
	}

	return &RefreshScheduler{
		schedule: schedule,
		tokens:   tokens,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "upstream.refresh"),
	}, nil
}

// Start begins scheduled renewals until ctx is cancelled or Stop is called.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cron.AddFunc(s.schedule, func() { s.refresh(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule token refresh: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("token refresh scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// refresh runs one forced renewal.
func (s *RefreshScheduler) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if _, err := s.tokens.Acquire(ctx, true); err != nil {
		s.logger.Error("scheduled token refresh failed", "error", err)
		return
	}
	s.logger.Debug("scheduled token refresh completed")
}

// Stop stops the scheduler and waits for a running renewal to finish.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("token refresh scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *RefreshScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled renewal, or nil when not running.
func (s *RefreshScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
