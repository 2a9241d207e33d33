package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "partychat.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected path: %s", resolved)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partychat.yaml")
	content := "backend_url: ws://party.example/ws\nnickname: alice\ntyping_idle_timeout: 3s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PARTYCHAT_NICKNAME", "bob")
	t.Setenv("PARTYCHAT_REQUEST_TIMEOUT", "2s")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BackendURL != "ws://party.example/ws" {
		t.Fatalf("unexpected backend url: %s", cfg.BackendURL)
	}
	if cfg.Nickname != "bob" {
		t.Fatalf("env should override file, got nickname %q", cfg.Nickname)
	}
	if cfg.TypingIdleTimeout != 3*time.Second {
		t.Fatalf("unexpected typing timeout: %v", cfg.TypingIdleTimeout)
	}
	if cfg.RequestTimeout != 2*time.Second {
		t.Fatalf("unexpected request timeout: %v", cfg.RequestTimeout)
	}
	if cfg.Addr != Default().Addr {
		t.Fatalf("unset keys should keep defaults, got addr %q", cfg.Addr)
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Nickname: "carol", TypingIdleTimeout: time.Second})

	if cfg.Nickname != "carol" || cfg.TypingIdleTimeout != time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.BackendURL != Default().BackendURL {
		t.Fatalf("zero values must not overwrite: %+v", cfg)
	}
}
