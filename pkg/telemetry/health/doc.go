// Package health implements the liveness and readiness probes.
//
// Liveness only reports that the process serves HTTP. Readiness runs the
// registered checks concurrently (for connect: whether an upstream token is
// held or can be obtained, and whether the journal store answers) and returns
// 503 while any of them fails:
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("upstream_token", tokenCheck)
//	mux.Handle("GET /ready", checker.ReadinessHandler())
package health
