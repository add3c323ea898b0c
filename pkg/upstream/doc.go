// Package upstream talks to the single upstream API connect proxies.
//
// A TokenManager holds the process-wide bearer token. It authenticates
// lazily by posting the configured credential pair to the authentication
// endpoint and reading the "token" property of the JSON reply. Renewals are
// serialized and coalesced: when several requests are rejected with 401 at
// once, only the first performs a new authentication and the others reuse
// its result.
//
// A Forwarder performs one authenticated call. A 401 answer triggers one
// renewal and one retry with the identical method, URL and body; the
// retry's answer is final. Transport failures are not retried.
//
// A RefreshScheduler optionally forces renewals on a cron schedule.
//
// Basic usage:
//
//	client, _ := upstream.NewHTTPClient(cfg.Upstream)
//	tokens := upstream.NewTokenManager(upstream.TokenManagerConfig{
//		Client:   client,
//		BaseURL:  cfg.Upstream.BaseURL,
//		Username: cfg.Upstream.Username,
//		Password: cfg.Upstream.Password,
//	})
//	fwd := upstream.NewForwarder(upstream.ForwarderConfig{
//		Client:  client,
//		BaseURL: cfg.Upstream.BaseURL,
//		Tokens:  tokens,
//	})
//	resp, err := fwd.Forward(ctx, upstream.Request{Method: "GET", Path: "companies"})
package upstream
