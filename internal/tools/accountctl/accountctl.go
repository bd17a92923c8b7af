// Package accountctl implements maintenance commands for the account service
// stores: projection replay, outbox inspection, journal integrity checks and
// id counter reports.
package accountctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/louisbranch/ledger/internal/platform/config"
	"github.com/louisbranch/ledger/internal/services/account/service"
	"github.com/louisbranch/ledger/internal/services/account/storage/integrity"
	storagesqlite "github.com/louisbranch/ledger/internal/services/account/storage/sqlite"
	"github.com/spf13/cobra"
)

// Options holds flags shared by every subcommand.
type Options struct {
	EventsDBPath      string        `env:"ACCOUNT_EVENTS_DB_PATH" envDefault:"data/account-events.db"`
	ProjectionsDBPath string        `env:"ACCOUNT_PROJECTIONS_DB_PATH" envDefault:"data/account-projections.db"`
	SnapshotsPath     string        `env:"ACCOUNT_SNAPSHOTS_PATH" envDefault:"data/account-snapshots.db"`
	CounterBackend    string        `env:"ACCOUNT_COUNTER_BACKEND" envDefault:"sqlite"`
	PostgresDSN       string        `env:"ACCOUNT_POSTGRES_DSN"`
	HMACKeys          string        `env:"ACCOUNT_EVENT_HMAC_KEYS"`
	HMACKey           string        `env:"ACCOUNT_EVENT_HMAC_KEY"`
	HMACKeyID         string        `env:"ACCOUNT_EVENT_HMAC_KEY_ID"`
	Timeout           time.Duration `env:"ACCOUNT_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	JSONOutput        bool
}

// NewRootCommand builds the accountctl command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) (*cobra.Command, error) {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	var opts Options
	if err := config.ParseEnv(&opts); err != nil {
		return nil, err
	}

	root := &cobra.Command{
		Use:           "accountctl",
		Short:         "Maintain account service storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.EventsDBPath, "events-db", opts.EventsDBPath, "path to the event journal database")
	flags.StringVar(&opts.ProjectionsDBPath, "projections-db", opts.ProjectionsDBPath, "path to the read model database")
	flags.StringVar(&opts.SnapshotsPath, "snapshots-db", opts.SnapshotsPath, "path to the snapshot database")
	flags.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "overall timeout")
	flags.BoolVar(&opts.JSONOutput, "json", false, "output JSON reports")

	root.AddCommand(
		newReplayCommand(&opts),
		newOutboxCommand(&opts),
		newVerifyCommand(&opts),
		newLagCommand(&opts),
		newCounterCommand(&opts),
		newMigrationsCommand(&opts),
		newHealthCommand(&opts),
	)
	return root, nil
}

// Execute runs the command tree against args.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	root, err := NewRootCommand(out, errOut)
	if err != nil {
		return err
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func commandContext(cmd *cobra.Command, opts *Options) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opts.Timeout)
}

func (o *Options) keyring() (*integrity.Keyring, error) {
	keyring, err := integrity.KeyringFromSpec(o.HMACKeys, o.HMACKey, o.HMACKeyID)
	if err != nil {
		return nil, fmt.Errorf("load event hmac keys: %w", err)
	}
	return keyring, nil
}

func (o *Options) openEventStore() (*storagesqlite.Store, error) {
	if err := ensureStorageDir(o.EventsDBPath, "events"); err != nil {
		return nil, err
	}
	keyring, err := o.keyring()
	if err != nil {
		return nil, err
	}
	_, registry, err := service.Registries()
	if err != nil {
		return nil, fmt.Errorf("build registries: %w", err)
	}
	store, err := storagesqlite.OpenEvents(o.EventsDBPath, keyring, registry)
	if err != nil {
		return nil, fmt.Errorf("open events store: %w", err)
	}
	return store, nil
}

func (o *Options) openProjectionStore() (*storagesqlite.Store, error) {
	if err := ensureStorageDir(o.ProjectionsDBPath, "projections"); err != nil {
		return nil, err
	}
	store, err := storagesqlite.OpenProjections(o.ProjectionsDBPath)
	if err != nil {
		return nil, fmt.Errorf("open projections store: %w", err)
	}
	return store, nil
}

func ensureStorageDir(path, name string) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return fmt.Errorf("%s db path is required", name)
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}

func closeStore(errOut io.Writer, name string, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		fmt.Fprintf(errOut, "Error: close %s store: %v\n", name, err)
	}
}

func writeJSONLine(out io.Writer, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = fmt.Fprintln(out, string(encoded))
	return err
}
