package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/connect/pkg/cli"
)

// authServer accepts svc/secret on /authenticate.
func authServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/authenticate" {
			http.NotFound(w, r)
			return
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds["username"] != "svc" || creds["password"] != "secret" {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"t1"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidate(t *testing.T) {
	cfgPath, _ := writeConfig(t, "https://api.example.com/v1", "sqlite")

	out, err := execute(t, "validate", "--config", cfgPath)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	for _, want := range []string{"✓ Configuration valid", "https://api.example.com/v1 (user svc)", "Default page size: 100", "sqlite, 30 days retention"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret") {
		t.Error("summary prints the password")
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("upstream:\n  base_url: https://api.example.com\n  username: svc\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "validate", "--config", cfgPath)

	var ce *cli.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want a ConfigError", err)
	}
	if ce.Field != "upstream.password" {
		t.Errorf("Field = %q, want upstream.password", ce.Field)
	}
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("ExitCode = %d, want %d", cli.ExitCode(err), cli.ExitConfig)
	}
}

func TestValidate_EnvironmentOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("BASE_URL", "https://api.example.com")
	t.Setenv("USERNAME", "svc")
	t.Setenv("PASSWORD", "secret")
	t.Setenv("DEFAULT_PAGESIZE", "250")
	t.Chdir(t.TempDir())

	// No --config: the absent default config.yaml is not an error.
	out, err := execute(t, "validate")
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "Default page size: 250") {
		t.Errorf("output = %q", out)
	}
}

func TestValidate_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("BASE_URL", "https://api.example.com")
	t.Setenv("USERNAME", "svc")
	t.Setenv("PASSWORD", "secret")

	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("ExitCode = %d, want %d (error %v)", cli.ExitCode(err), cli.ExitConfig, err)
	}
}

func TestValidate_CheckUpstream(t *testing.T) {
	upstream := authServer(t)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "accepted", password: "secret"},
		{name: "rejected", password: "wrong", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath, _ := writeConfig(t, upstream.URL, "sqlite")
			t.Setenv("PASSWORD", tt.password)

			out, err := execute(t, "validate", "--config", cfgPath, "--check-upstream")
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if cli.ExitCode(err) != cli.ExitFailure {
					t.Errorf("ExitCode = %d, want %d", cli.ExitCode(err), cli.ExitFailure)
				}
				return
			}
			if !strings.Contains(out, "✓ Upstream authentication succeeded") {
				t.Errorf("output = %q", out)
			}
		})
	}
}
