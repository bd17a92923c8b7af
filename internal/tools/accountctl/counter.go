package accountctl

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/sequence"
	storagepostgres "github.com/louisbranch/ledger/internal/services/account/storage/postgres"
	"github.com/spf13/cobra"
)

type dayCounter interface {
	Count(ctx context.Context, day string) (int64, error)
}

type counterReport struct {
	Mode      string `json:"mode"`
	Backend   string `json:"backend"`
	Day       string `json:"day"`
	Issued    int64  `json:"issued"`
	Remaining int64  `json:"remaining"`
	LastID    string `json:"last_id,omitempty"`
}

func newCounterCommand(opts *Options) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Show how many account ids were issued for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd, opts)
			defer cancel()
			if strings.TrimSpace(day) == "" {
				day = time.Now().UTC().Format(sequence.DayLayout)
			}

			backend := strings.ToLower(strings.TrimSpace(opts.CounterBackend))
			switch backend {
			case "", "sqlite":
				store, err := opts.openEventStore()
				if err != nil {
					return err
				}
				defer closeStore(cmd.ErrOrStderr(), "event", store)
				return runCounter(ctx, store, "sqlite", day, opts.JSONOutput, cmd.OutOrStdout())
			case "postgres":
				store, err := storagepostgres.Open(ctx, opts.PostgresDSN)
				if err != nil {
					return fmt.Errorf("open postgres counter: %w", err)
				}
				defer closeStore(cmd.ErrOrStderr(), "counter", store)
				return runCounter(ctx, store, backend, day, opts.JSONOutput, cmd.OutOrStdout())
			default:
				return fmt.Errorf("unknown counter backend %q", opts.CounterBackend)
			}
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day in YYYYMMDD form (default: today, UTC)")
	cmd.Flags().StringVar(&opts.CounterBackend, "backend", opts.CounterBackend, "counter backend (sqlite or postgres)")
	cmd.Flags().StringVar(&opts.PostgresDSN, "postgres-dsn", opts.PostgresDSN, "Postgres DSN for the postgres backend")
	return cmd
}

func runCounter(ctx context.Context, counter dayCounter, backend, day string, jsonOutput bool, out io.Writer) error {
	if counter == nil {
		return fmt.Errorf("counter store is not configured")
	}
	if _, err := time.Parse(sequence.DayLayout, day); err != nil {
		return fmt.Errorf("day must be YYYYMMDD: %w", err)
	}
	issued, err := counter.Count(ctx, day)
	if err != nil {
		return fmt.Errorf("read counter for %s: %w", day, err)
	}
	report := counterReport{
		Mode:      "counter",
		Backend:   backend,
		Day:       day,
		Issued:    issued,
		Remaining: sequence.DefaultCeiling - issued,
	}
	if issued > 0 {
		report.LastID = sequence.Format(day, issued)
	}
	if jsonOutput {
		return writeJSONLine(out, report)
	}
	fmt.Fprintf(out, "Counter %s (%s): issued=%d remaining=%d\n", day, backend, report.Issued, report.Remaining)
	if report.LastID != "" {
		fmt.Fprintf(out, "Last issued id: %s\n", report.LastID)
	}
	return nil
}
