package upstream

import (
	"net/http"
	"testing"
	"time"

	"mercator-hq/connect/pkg/config"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.UpstreamConfig
		wantH bool
	}{
		{
			name: "http1",
			cfg:  config.UpstreamConfig{Timeout: 5 * time.Second, MaxIdleConns: 10, IdleConnTimeout: time.Minute},
		},
		{
			name:  "http2",
			cfg:   config.UpstreamConfig{Timeout: 5 * time.Second, MaxIdleConns: 10, HTTP2: true},
			wantH: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewHTTPClient(tt.cfg)
			if err != nil {
				t.Fatalf("NewHTTPClient() error = %v", err)
			}
			if client.Timeout != tt.cfg.Timeout {
				t.Errorf("Timeout = %v, want %v", client.Timeout, tt.cfg.Timeout)
			}

			transport, ok := client.Transport.(*http.Transport)
			if !ok {
				t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
			}
			if transport.MaxIdleConnsPerHost != tt.cfg.MaxIdleConns {
				t.Errorf("MaxIdleConnsPerHost = %d, want %d", transport.MaxIdleConnsPerHost, tt.cfg.MaxIdleConns)
			}

			_, h2 := transport.TLSNextProto["h2"]
			if h2 != tt.wantH {
				t.Errorf("h2 registered = %v, want %v", h2, tt.wantH)
			}
		})
	}
}
