package account

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.HealthPort != 8090 {
		t.Fatalf("expected default health port 8090, got %d", cfg.HealthPort)
	}
	if cfg.CounterBackend != "sqlite" {
		t.Fatalf("expected sqlite counter backend, got %q", cfg.CounterBackend)
	}
	if cfg.OutboxInterval != 2*time.Second || cfg.OutboxBatch != 64 {
		t.Fatalf("outbox = %v/%d, want 2s/64", cfg.OutboxInterval, cfg.OutboxBatch)
	}
	if cfg.OwnerTimeout != 5*time.Second {
		t.Fatalf("owner timeout = %v, want 5s", cfg.OwnerTimeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("ACCOUNT_OWNER_SERVICE_URL", "http://customers:9000")
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9001", "-addr", "127.0.0.1:9999", "-counter-backend", "postgres"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Port)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.CounterBackend != "postgres" {
		t.Fatalf("expected postgres backend, got %q", cfg.CounterBackend)
	}
	if cfg.OwnerServiceURL != "http://customers:9000" {
		t.Fatalf("expected owner url from env, got %q", cfg.OwnerServiceURL)
	}
}

func TestParseConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account.toml")
	content := "ACCOUNT_HTTP_PORT = 7000\nACCOUNT_OUTBOX_BATCH = 16\nACCOUNT_OWNER_SERVICE_URL = \"http://file:1\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ACCOUNT_OUTBOX_BATCH", "32")

	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-config", path, "-port", "7100"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 7100 {
		t.Fatalf("expected flag to win, got port %d", cfg.Port)
	}
	if cfg.OutboxBatch != 32 {
		t.Fatalf("expected env to win over file, got batch %d", cfg.OutboxBatch)
	}
	if cfg.OwnerServiceURL != "http://file:1" {
		t.Fatalf("expected owner url from file, got %q", cfg.OwnerServiceURL)
	}
}

func TestConfigFilePath(t *testing.T) {
	t.Setenv(configFileEnv, "/etc/account.toml")
	tests := []struct {
		args []string
		want string
	}{
		{args: nil, want: "/etc/account.toml"},
		{args: []string{"-config", "a.toml"}, want: "a.toml"},
		{args: []string{"--config=b.toml", "-port", "1"}, want: "b.toml"},
		{args: []string{"-port", "1"}, want: "/etc/account.toml"},
	}
	for _, tt := range tests {
		if got := configFilePath(tt.args); got != tt.want {
			t.Fatalf("configFilePath(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestListenAddr(t *testing.T) {
	if got := listenAddr("", 8080); got != ":8080" {
		t.Fatalf("listenAddr = %q, want :8080", got)
	}
	if got := listenAddr("127.0.0.1:1", 8080); got != "127.0.0.1:1" {
		t.Fatalf("listenAddr = %q, want 127.0.0.1:1", got)
	}
}

func TestRunRequiresHMACKey(t *testing.T) {
	t.Setenv("ACCOUNT_EVENT_HMAC_KEY", "")
	t.Setenv("ACCOUNT_EVENT_HMAC_KEYS", "")
	if err := Run(t.Context(), Config{}); err == nil {
		t.Fatal("expected missing key error")
	}
}
