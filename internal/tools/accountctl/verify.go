package accountctl

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type eventVerifier interface {
	accountLister
	VerifyAccountEvents(ctx context.Context, accountID string) (uint64, error)
}

type verifyReport struct {
	Mode     string            `json:"mode"`
	Verified map[string]uint64 `json:"verified"`
	Failed   map[string]string `json:"failed,omitempty"`
}

func newVerifyCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [account-id...]",
		Short: "Verify event hash chains and signatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, opts)
			defer cancel()
			store, err := opts.openEventStore()
			if err != nil {
				return err
			}
			defer closeStore(cmd.ErrOrStderr(), "event", store)
			return runVerify(ctx, store, args, opts.JSONOutput, cmd.OutOrStdout())
		},
	}
}

// runVerify checks every listed account, or the whole journal when none is
// given, and fails when any chain does not verify.
func runVerify(ctx context.Context, verifier eventVerifier, accountIDs []string, jsonOutput bool, out io.Writer) error {
	if verifier == nil {
		return fmt.Errorf("event verifier is not configured")
	}
	if len(accountIDs) == 0 {
		ids, err := verifier.ListAccountIDs(ctx)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		accountIDs = ids
	}

	report := verifyReport{Mode: "verify", Verified: make(map[string]uint64)}
	for _, accountID := range accountIDs {
		count, err := verifier.VerifyAccountEvents(ctx, accountID)
		if err != nil {
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}
			report.Failed[accountID] = err.Error()
			if !jsonOutput {
				fmt.Fprintf(out, "FAIL %s after seq %d: %v\n", accountID, count, err)
			}
			continue
		}
		report.Verified[accountID] = count
		if !jsonOutput {
			fmt.Fprintf(out, "ok   %s events=%d\n", accountID, count)
		}
	}
	if jsonOutput {
		if err := writeJSONLine(out, report); err != nil {
			return err
		}
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d accounts failed verification", len(report.Failed), len(accountIDs))
	}
	return nil
}
