package accountctl

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/louisbranch/ledger/internal/platform/storage/sqlitemigrate"
	"github.com/spf13/cobra"
)

type migrationReporter interface {
	MigrationStatus(ctx context.Context, root string) ([]sqlitemigrate.Migration, error)
}

type migrationSet struct {
	Name       string                    `json:"name"`
	Migrations []sqlitemigrate.Migration `json:"migrations"`
}

func newMigrationsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrations",
		Short: "Inspect embedded schema migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether each was applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd, opts)
			defer cancel()
			events, err := opts.openEventStore()
			if err != nil {
				return err
			}
			defer closeStore(cmd.ErrOrStderr(), "event", events)
			projections, err := opts.openProjectionStore()
			if err != nil {
				return err
			}
			defer closeStore(cmd.ErrOrStderr(), "projection", projections)
			return runMigrationStatus(ctx, map[string]migrationReporter{
				"events":      events,
				"projections": projections,
			}, opts.JSONOutput, cmd.OutOrStdout())
		},
	})
	return cmd
}

func runMigrationStatus(ctx context.Context, stores map[string]migrationReporter, jsonOutput bool, out io.Writer) error {
	sets := make([]migrationSet, 0, len(stores))
	for _, name := range []string{"events", "projections"} {
		store, ok := stores[name]
		if !ok || store == nil {
			continue
		}
		migrations, err := store.MigrationStatus(ctx, name)
		if err != nil {
			return fmt.Errorf("%s migration status: %w", name, err)
		}
		sets = append(sets, migrationSet{Name: name, Migrations: migrations})
	}
	if jsonOutput {
		return writeJSONLine(out, sets)
	}
	for _, set := range sets {
		fmt.Fprintf(out, "%s:\n", set.Name)
		for _, m := range set.Migrations {
			if m.Applied {
				fmt.Fprintf(out, "  [x] %s applied_at=%s\n", m.Name, m.AppliedAt.Format(time.RFC3339))
			} else {
				fmt.Fprintf(out, "  [ ] %s\n", m.Name)
			}
		}
	}
	return nil
}
