package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "bcast.yaml", `
engine:
  base_url: http://engine:9000
  timeout: 5s
  rate_per_sec: 20
push:
  url: amqp://guest:guest@mq:5672/
  queue: statuses
poll:
  refresh: 45s
  fallback: 2s
log:
  level: debug
  console: true
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.BaseURL != "http://engine:9000" {
		t.Fatalf("BaseURL = %q", cfg.Engine.BaseURL)
	}
	if got := cfg.Engine.RequestTimeout(); got != 5*time.Second {
		t.Fatalf("RequestTimeout = %v", got)
	}
	if got := cfg.Poll.FallbackEvery(); got != 2*time.Second {
		t.Fatalf("FallbackEvery = %v", got)
	}
	// Defaults filled where the file is silent.
	if cfg.Push.ReconnectMin == "" || cfg.Notices.Dismiss == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if m.Get() != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "bcast.yaml", `
engine:
  base_url: http://engine:9000
  tiemout: 5s
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown key")
	} else if !strings.Contains(err.Error(), "tiemout") {
		t.Fatalf("error should name the bad key, got %v", err)
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "bcast.json", `{"poll": {"refresh": "soon"}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestReconnectBackoffOrdering(t *testing.T) {
	t.Parallel()
	c := PushConfig{ReconnectMin: "10s", ReconnectMax: "1s"}
	min, max := c.ReconnectBackoff()
	if max < min {
		t.Fatalf("max %v < min %v", max, min)
	}
}
