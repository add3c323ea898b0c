package handlers

import (
	"context"
	"fmt"

	"mercator-hq/connect/pkg/journal"
	"mercator-hq/connect/pkg/telemetry/health"
	"mercator-hq/connect/pkg/upstream"
)

// TokenSource yields the upstream bearer token. upstream.TokenManager
// implements it.
type TokenSource interface {
	Acquire(ctx context.Context, forceRenew bool) (upstream.Token, error)
}

// RegisterChecks adds the readiness checks for the upstream token and, when
// store is non-nil, the journal backend.
func RegisterChecks(c *health.Checker, tokens TokenSource, store journal.Storage) {
	c.RegisterCheck("upstream_token", TokenCheck(tokens))
	if store != nil {
		c.RegisterCheck("journal", JournalCheck(store))
	}
}

// TokenCheck passes when a token is held or can be obtained. A failing
// check does not discard a held token.
func TokenCheck(tokens TokenSource) health.CheckFunc {
	return func(ctx context.Context) error {
		tok, err := tokens.Acquire(ctx, false)
		if err != nil {
			return err
		}
		if tok.IsZero() {
			return fmt.Errorf("no upstream token")
		}
		return nil
	}
}

// JournalCheck passes when the journal backend answers a count query.
func JournalCheck(store journal.Storage) health.CheckFunc {
	return func(ctx context.Context) error {
		_, err := store.Count(ctx, &journal.Query{})
		return err
	}
}
