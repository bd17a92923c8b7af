// Package cmd holds the startup helpers shared by the account binaries:
// layered config loading and a telemetry-wrapped run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/ledger/internal/platform/config"
	"github.com/louisbranch/ledger/internal/platform/otel"
	"github.com/louisbranch/ledger/internal/platform/timeouts"
)

// ServiceAccount names the account service in traces and logs.
const ServiceAccount = "account"

// ParseConfigFile loads env-tagged fields into cfg. Keys of the optional TOML
// file at path fill variables the environment leaves unset.
func ParseConfigFile[T any](cfg *T, path string) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnvWithFile(cfg, path)
}

// ParseArgs applies command-line flags over the loaded config.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for service, runs run and flushes spans
// once it returns.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
