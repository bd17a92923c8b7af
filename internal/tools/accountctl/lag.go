package accountctl

import (
	"context"
	"fmt"
	"io"

	"github.com/louisbranch/ledger/internal/services/account/storage"
	"github.com/spf13/cobra"
)

type journalHead interface {
	accountLister
	LatestSeq(ctx context.Context, accountID string) (uint64, error)
}

type watermarkLister interface {
	ListProjectionWatermarks(ctx context.Context) ([]storage.ProjectionWatermark, error)
}

type lagEntry struct {
	AccountID  string `json:"account_id"`
	JournalSeq uint64 `json:"journal_seq"`
	AppliedSeq uint64 `json:"applied_seq"`
	Lag        uint64 `json:"lag"`
}

type lagReport struct {
	Mode     string     `json:"mode"`
	Accounts []lagEntry `json:"accounts"`
	Behind   int        `json:"behind"`
}

func newLagCommand(opts *Options) *cobra.Command {
	var onlyBehind bool
	cmd := &cobra.Command{
		Use:   "lag",
		Short: "Compare journal heads with projection watermarks",
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
			return runLag(ctx, events, projections, onlyBehind, opts.JSONOutput, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&onlyBehind, "behind", false, "only list accounts whose read model lags the journal")
	return cmd
}

func runLag(ctx context.Context, journal journalHead, watermarks watermarkLister, onlyBehind, jsonOutput bool, out io.Writer) error {
	if journal == nil || watermarks == nil {
		return fmt.Errorf("event and projection stores are required")
	}
	marks, err := watermarks.ListProjectionWatermarks(ctx)
	if err != nil {
		return fmt.Errorf("list watermarks: %w", err)
	}
	applied := make(map[string]uint64, len(marks))
	for _, wm := range marks {
		applied[wm.AccountID] = wm.AppliedSeq
	}
	ids, err := journal.ListAccountIDs(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	report := lagReport{Mode: "lag", Accounts: make([]lagEntry, 0, len(ids))}
	for _, accountID := range ids {
		head, err := journal.LatestSeq(ctx, accountID)
		if err != nil {
			return fmt.Errorf("latest seq for %s: %w", accountID, err)
		}
		entry := lagEntry{AccountID: accountID, JournalSeq: head, AppliedSeq: applied[accountID]}
		if head > entry.AppliedSeq {
			entry.Lag = head - entry.AppliedSeq
			report.Behind++
		}
		if onlyBehind && entry.Lag == 0 {
			continue
		}
		report.Accounts = append(report.Accounts, entry)
	}

	if jsonOutput {
		return writeJSONLine(out, report)
	}
	for _, entry := range report.Accounts {
		fmt.Fprintf(out, "%s journal=%d applied=%d lag=%d\n", entry.AccountID, entry.JournalSeq, entry.AppliedSeq, entry.Lag)
	}
	fmt.Fprintf(out, "%d of %d accounts behind\n", report.Behind, len(ids))
	return nil
}
