package upstream

import (
	"fmt"
	"net/http"

	"mercator-hq/connect/pkg/config"

	"golang.org/x/net/http2"
)

// NewHTTPClient creates the pooled HTTP client shared by the token manager
// and the forwarder. The client timeout bounds one upstream call (a single
// page or a single forwarded request), not a whole streamed listing.
//
// With cfg.HTTP2 the transport is upgraded through x/net/http2 so that
// HTTP/2 is negotiated over TLS and the connection pool multiplexes pages of
// concurrent listings on a single connection.
func NewHTTPClient(cfg config.UpstreamConfig) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableCompression:  false,
	}

	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to enable HTTP/2 on upstream transport: %w", err)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}, nil
}
