package otel_test

import (
	"context"
	"os"
	"testing"

	"github.com/louisbranch/ledger/internal/platform/otel"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"ACCOUNT_OTEL_ENDPOINT", "ACCOUNT_OTEL_ENABLED", "ACCOUNT_OTEL_SAMPLE_RATIO"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := otel.LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Enabled || cfg.SampleRatio != 1 {
		t.Fatalf("config = %+v, want enabled with ratio 1", cfg)
	}
	if cfg.Active() {
		t.Fatal("expected inactive config without endpoint")
	}
}

func TestLoadConfigRejectsSampleRatio(t *testing.T) {
	t.Setenv("ACCOUNT_OTEL_SAMPLE_RATIO", "1.5")
	if _, err := otel.LoadConfig(); err == nil {
		t.Fatal("expected sample ratio error")
	}
}

func TestConfigActive(t *testing.T) {
	tests := []struct {
		name string
		cfg  otel.Config
		want bool
	}{
		{name: "no endpoint", cfg: otel.Config{Enabled: true}, want: false},
		{name: "disabled", cfg: otel.Config{Enabled: false, Endpoint: "http://localhost:4318"}, want: false},
		{name: "active", cfg: otel.Config{Enabled: true, Endpoint: "http://localhost:4318"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Active(); got != tt.want {
				t.Fatalf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("ACCOUNT_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("ACCOUNT_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "account")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should ignore cancelled context: %v", err)
	}
}

func TestSetupWithConfigCreatesProvider(t *testing.T) {
	// Non-routable address; nothing is exported before shutdown.
	cfg := otel.Config{Enabled: true, Endpoint: "http://192.0.2.1:4318", SampleRatio: 0.5}

	shutdown, err := otel.SetupWithConfig(context.Background(), "account", cfg)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
