package accountctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/ledger/internal/services/account/projection"
	storagebbolt "github.com/louisbranch/ledger/internal/services/account/storage/bbolt"
	"github.com/spf13/cobra"
)

type rebuilder interface {
	Rebuild(ctx context.Context, accountID string, reset bool) (projection.RebuildResult, error)
}

type accountLister interface {
	ListAccountIDs(ctx context.Context) ([]string, error)
}

type snapshotDeleter interface {
	DeleteState(ctx context.Context, accountID string) error
}

type replayOptions struct {
	reset          bool
	dropSnapshots  bool
	continueOnFail bool
}

type replayReport struct {
	Mode     string                     `json:"mode"`
	Accounts []projection.RebuildResult `json:"accounts"`
	Failures map[string]string          `json:"failures,omitempty"`
}

func newReplayCommand(opts *Options) *cobra.Command {
	var (
		all     bool
		options replayOptions
	)
	cmd := &cobra.Command{
		Use:   "replay [account-id...]",
		Short: "Rebuild read-model rows from the event journal",
		Long: `Replay journal events into the read model. Without --reset only events
the projection has not applied yet are replayed; with --reset the account's
rows are cleared and every event is applied again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all cannot be combined with account ids")
			}
			if !all && len(args) == 0 {
				return errors.New("account id or --all is required")
			}

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

			var snapshots snapshotDeleter
			if options.dropSnapshots {
				store, err := storagebbolt.Open(opts.SnapshotsPath)
				if err != nil {
					return fmt.Errorf("open snapshot store: %w", err)
				}
				defer closeStore(cmd.ErrOrStderr(), "snapshot", store)
				snapshots = store
			}

			ids := args
			if all {
				ids, err = events.ListAccountIDs(ctx)
				if err != nil {
					return err
				}
			}
			r := projection.Rebuilder{
				Events: events,
				Apply:  projection.ExactlyOnce{Store: projections},
			}
			return runReplay(ctx, r, snapshots, ids, options, opts.JSONOutput, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "replay every account in the journal")
	cmd.Flags().BoolVar(&options.reset, "reset", false, "clear the account's read-model rows before replaying")
	cmd.Flags().BoolVar(&options.dropSnapshots, "drop-snapshots", false, "delete aggregate snapshots so the next command replays the journal")
	cmd.Flags().BoolVar(&options.continueOnFail, "continue-on-error", false, "keep replaying other accounts after a failure")
	return cmd
}

func runReplay(ctx context.Context, r rebuilder, snapshots snapshotDeleter, accountIDs []string, options replayOptions, jsonOutput bool, out, errOut io.Writer) error {
	if r == nil {
		return fmt.Errorf("rebuilder is not configured")
	}
	report := replayReport{Mode: "replay"}
	var failed error
	for _, accountID := range accountIDs {
		accountID = strings.TrimSpace(accountID)
		if accountID == "" {
			continue
		}
		if snapshots != nil {
			if err := snapshots.DeleteState(ctx, accountID); err != nil {
				return fmt.Errorf("drop snapshot %s: %w", accountID, err)
			}
		}
		result, err := r.Rebuild(ctx, accountID, options.reset)
		if err != nil {
			err = fmt.Errorf("replay %s: %w", accountID, err)
			if !options.continueOnFail {
				return err
			}
			if report.Failures == nil {
				report.Failures = make(map[string]string)
			}
			report.Failures[accountID] = err.Error()
			fmt.Fprintf(errOut, "Error: %v\n", err)
			failed = errors.Join(failed, err)
			continue
		}
		report.Accounts = append(report.Accounts, result)
		if !jsonOutput {
			fmt.Fprintf(out, "Replayed %s: last_seq=%d applied=%d skipped=%d\n", result.AccountID, result.LastSeq, result.Applied, result.Skipped)
			if len(result.Rejected) > 0 {
				fmt.Fprintf(out, "  rejected seqs: %v\n", result.Rejected)
			}
		}
	}
	if jsonOutput {
		if err := writeJSONLine(out, report); err != nil {
			return err
		}
	}
	return failed
}
