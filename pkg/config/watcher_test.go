package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const watchedConfig = `
upstream:
  base_url: "https://api.example.com"
  username: "u"
  password: "p"
paging:
  default_page_size: %s
`

func TestWatcher_ReloadsOnChange(t *testing.T) {
	clearEnv(t)
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })

	path := filepath.Join(t.TempDir(), "connect.yaml")
	write := func(size string) {
		t.Helper()
		content := []byte(fmt.Sprintf(watchedConfig, size))
		if err := os.WriteFile(path, content, 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("10")

	w, err := NewWatcher(path, false, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.SetDebounceInterval(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(cfg *Config) { reloaded <- cfg })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	write("-1") // invalid, must be ignored
	time.Sleep(100 * time.Millisecond)
	write("25")

	select {
	case cfg := <-reloaded:
		if cfg.Paging.DefaultPageSize != 25 {
			t.Errorf("expected page size 25, got %d", cfg.Paging.DefaultPageSize)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	clearEnv(t)
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })

	dir := t.TempDir()
	path := filepath.Join(dir, "connect.yaml")
	if err := os.WriteFile(path, []byte(fmt.Sprintf(watchedConfig, "10")), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.SetDebounceInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	go func() { _ = w.Watch(ctx, func(cfg *Config) { reloaded <- cfg }) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Error("unexpected reload for unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}
