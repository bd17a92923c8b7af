// Package account parses account command flags and starts the service runtime.
package account

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/ledger/internal/platform/cmd"
	server "github.com/louisbranch/ledger/internal/services/account/app"
	"github.com/louisbranch/ledger/internal/services/account/storage/integrity"
)

const configFileEnv = "ACCOUNT_CONFIG_FILE"

// Config holds account command configuration.
type Config struct {
	Port              int           `env:"ACCOUNT_HTTP_PORT" envDefault:"8080"`
	Addr              string        `env:"ACCOUNT_HTTP_ADDR"`
	HealthPort        int           `env:"ACCOUNT_HEALTH_PORT" envDefault:"8090"`
	EventsDBPath      string        `env:"ACCOUNT_EVENTS_DB_PATH" envDefault:"data/account-events.db"`
	ProjectionsDBPath string        `env:"ACCOUNT_PROJECTIONS_DB_PATH" envDefault:"data/account-projections.db"`
	SnapshotsPath     string        `env:"ACCOUNT_SNAPSHOTS_PATH" envDefault:"data/account-snapshots.db"`
	OwnerServiceURL   string        `env:"ACCOUNT_OWNER_SERVICE_URL" envDefault:"http://localhost:8081"`
	OwnerTimeout      time.Duration `env:"ACCOUNT_OWNER_TIMEOUT" envDefault:"5s"`
	CounterBackend    string        `env:"ACCOUNT_COUNTER_BACKEND" envDefault:"sqlite"`
	PostgresDSN       string        `env:"ACCOUNT_POSTGRES_DSN"`
	OutboxInterval    time.Duration `env:"ACCOUNT_OUTBOX_INTERVAL" envDefault:"2s"`
	OutboxBatch       int           `env:"ACCOUNT_OUTBOX_BATCH" envDefault:"64"`
	HMACKeys          string        `env:"ACCOUNT_EVENT_HMAC_KEYS"`
	HMACKey           string        `env:"ACCOUNT_EVENT_HMAC_KEY"`
	HMACKeyID         string        `env:"ACCOUNT_EVENT_HMAC_KEY_ID"`
}

// ParseConfig parses the optional config file, environment and flags into a
// Config. Flags win over environment, environment wins over the file.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfigFile(&cfg, configFilePath(args)); err != nil {
		return Config{}, err
	}
	fs.String("config", "", "Optional TOML file with ACCOUNT_* defaults")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The HTTP API port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP API listen address (overrides -port)")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The gRPC health port")
	fs.StringVar(&cfg.EventsDBPath, "events-db", cfg.EventsDBPath, "Path to the event journal database")
	fs.StringVar(&cfg.ProjectionsDBPath, "projections-db", cfg.ProjectionsDBPath, "Path to the read model database")
	fs.StringVar(&cfg.SnapshotsPath, "snapshots-db", cfg.SnapshotsPath, "Path to the snapshot database (empty keeps snapshots in memory)")
	fs.StringVar(&cfg.OwnerServiceURL, "owner-url", cfg.OwnerServiceURL, "Base URL of the customer service")
	fs.StringVar(&cfg.CounterBackend, "counter-backend", cfg.CounterBackend, "Account id counter backend (sqlite or postgres)")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "Postgres DSN for the postgres counter backend")
	fs.DurationVar(&cfg.OutboxInterval, "outbox-interval", cfg.OutboxInterval, "Projection outbox poll interval")
	fs.IntVar(&cfg.OutboxBatch, "outbox-batch", cfg.OutboxBatch, "Projection outbox rows per pass")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the account service.
func Run(ctx context.Context, cfg Config) error {
	keyring, err := integrity.KeyringFromSpec(cfg.HMACKeys, cfg.HMACKey, cfg.HMACKeyID)
	if err != nil {
		return fmt.Errorf("load event hmac keys: %w", err)
	}
	runtime := server.Config{
		HTTPAddr:          listenAddr(cfg.Addr, cfg.Port),
		HealthAddr:        listenAddr("", cfg.HealthPort),
		EventsDBPath:      cfg.EventsDBPath,
		ProjectionsDBPath: cfg.ProjectionsDBPath,
		SnapshotsPath:     cfg.SnapshotsPath,
		OwnerServiceURL:   cfg.OwnerServiceURL,
		OwnerTimeout:      cfg.OwnerTimeout,
		CounterBackend:    cfg.CounterBackend,
		PostgresDSN:       cfg.PostgresDSN,
		Outbox: server.OutboxWorkerConfig{
			Interval: cfg.OutboxInterval,
			Batch:    cfg.OutboxBatch,
		},
		Keyring: keyring,
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAccount, func(ctx context.Context) error {
		return server.Run(ctx, runtime)
	})
}

func listenAddr(addr string, port int) string {
	if strings.TrimSpace(addr) != "" {
		return addr
	}
	return fmt.Sprintf(":%d", port)
}

// configFilePath finds -config in args before flags are parsed, falling back
// to ACCOUNT_CONFIG_FILE.
func configFilePath(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv(configFileEnv)
}
