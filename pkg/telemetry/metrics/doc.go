// Package metrics exposes Prometheus metrics for connect.
//
// The Collector groups metric families by concern (inbound requests, upstream
// calls and token lifecycle, pagination, journal) on a private registry and is
// served by Handler at the configured metrics path.
//
// Token renewals are worth watching: a steady climb of
// connect_token_renewals_total{result="success"} alongside 401 upstream calls
// means tokens expire faster than traffic reuses them, and a non-zero
// {result="failure"} rate means the credentials are being rejected.
package metrics
