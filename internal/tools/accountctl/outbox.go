package accountctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	storagesqlite "github.com/louisbranch/ledger/internal/services/account/storage/sqlite"
	"github.com/spf13/cobra"
)

type outboxInspector interface {
	GetProjectionApplyOutboxSummary(ctx context.Context) (storagesqlite.ProjectionApplyOutboxSummary, error)
	ListProjectionApplyOutboxRows(ctx context.Context, status string, limit int) ([]storagesqlite.ProjectionApplyOutboxEntry, error)
}

type outboxRequeuer interface {
	RequeueProjectionApplyOutboxRow(ctx context.Context, accountID string, seq uint64, now time.Time) (bool, error)
	RequeueProjectionApplyOutboxDeadRows(ctx context.Context, limit int, now time.Time) (int, error)
}

type outboxReport struct {
	Mode    string                                     `json:"mode"`
	Status  string                                     `json:"status,omitempty"`
	Limit   int                                        `json:"limit"`
	Summary storagesqlite.ProjectionApplyOutboxSummary `json:"summary"`
	Rows    []storagesqlite.ProjectionApplyOutboxEntry `json:"rows"`
}

type outboxRequeueResult struct {
	Mode      string `json:"mode"`
	AccountID string `json:"account_id,omitempty"`
	Seq       uint64 `json:"seq,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Requeued  int    `json:"requeued"`
}

func newOutboxCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and requeue projection outbox rows",
	}
	cmd.AddCommand(newOutboxReportCommand(opts), newOutboxRequeueCommand(opts))
	return cmd
}

func newOutboxReportCommand(opts *Options) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report outbox depth and rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd, opts)
			defer cancel()
			store, err := opts.openEventStore()
			if err != nil {
				return err
			}
			defer closeStore(cmd.ErrOrStderr(), "event", store)
			return runOutboxReport(ctx, store, status, limit, opts.JSONOutput, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "optional status filter (pending|processing|failed|dead)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows to list")
	return cmd
}

func newOutboxRequeueCommand(opts *Options) *cobra.Command {
	var (
		accountID string
		seq       uint64
		dead      bool
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Requeue dead outbox rows",
		Long: `Requeue one dead row with --account-id and --seq, or a bounded batch
of dead rows with --dead --limit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dead {
				if strings.TrimSpace(accountID) != "" || seq > 0 {
					return errors.New("--dead cannot be combined with --account-id or --seq")
				}
				if limit <= 0 {
					return errors.New("--limit must be > 0 with --dead")
				}
			} else {
				if strings.TrimSpace(accountID) == "" {
					return errors.New("--account-id is required")
				}
				if seq == 0 {
					return errors.New("--seq must be > 0")
				}
			}

			ctx, cancel := commandContext(cmd, opts)
			defer cancel()
			store, err := opts.openEventStore()
			if err != nil {
				return err
			}
			defer closeStore(cmd.ErrOrStderr(), "event", store)
			now := time.Now().UTC()
			if dead {
				return runOutboxRequeueDeadRows(ctx, store, limit, now, opts.JSONOutput, cmd.OutOrStdout())
			}
			return runOutboxRequeue(ctx, store, accountID, seq, now, opts.JSONOutput, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&accountID, "account-id", "", "account id of the row to requeue")
	cmd.Flags().Uint64Var(&seq, "seq", 0, "event sequence of the row to requeue")
	cmd.Flags().BoolVar(&dead, "dead", false, "requeue a batch of dead rows")
	cmd.Flags().IntVar(&limit, "limit", 0, "max dead rows to requeue")
	return cmd
}

func runOutboxReport(ctx context.Context, inspector outboxInspector, status string, limit int, jsonOutput bool, out io.Writer) error {
	if inspector == nil {
		return fmt.Errorf("outbox inspector is not configured")
	}
	if limit <= 0 {
		return fmt.Errorf("outbox limit must be > 0")
	}

	summary, err := inspector.GetProjectionApplyOutboxSummary(ctx)
	if err != nil {
		return fmt.Errorf("read outbox summary: %w", err)
	}
	rows, err := inspector.ListProjectionApplyOutboxRows(ctx, status, limit)
	if err != nil {
		return fmt.Errorf("list outbox rows: %w", err)
	}

	if jsonOutput {
		return writeJSONLine(out, outboxReport{
			Mode:    "outbox",
			Status:  strings.TrimSpace(status),
			Limit:   limit,
			Summary: summary,
			Rows:    rows,
		})
	}

	fmt.Fprintf(out, "Outbox summary: pending=%d processing=%d failed=%d dead=%d\n",
		summary.PendingCount, summary.ProcessingCount, summary.FailedCount, summary.DeadCount)
	if summary.OldestPendingAccountID == "" || summary.OldestPendingSeq == 0 || summary.OldestPendingAt.IsZero() {
		fmt.Fprintln(out, "Oldest pending/failed row: none")
	} else {
		fmt.Fprintf(out, "Oldest pending/failed row: %s/%d next_attempt_at=%s\n",
			summary.OldestPendingAccountID, summary.OldestPendingSeq, summary.OldestPendingAt.Format(time.RFC3339))
	}
	if filter := strings.TrimSpace(status); filter == "" {
		fmt.Fprintf(out, "Rows (all statuses, limit=%d):\n", limit)
	} else {
		fmt.Fprintf(out, "Rows (status=%s, limit=%d):\n", filter, limit)
	}
	for _, row := range rows {
		fmt.Fprintf(out, "- %s/%d status=%s attempts=%d next_attempt_at=%s type=%s\n",
			row.AccountID, row.Seq, row.Status, row.AttemptCount, row.NextAttemptAt.Format(time.RFC3339), row.EventType)
		if strings.TrimSpace(row.LastError) != "" {
			fmt.Fprintf(out, "  last_error=%s\n", row.LastError)
		}
	}
	return nil
}

func runOutboxRequeue(ctx context.Context, requeuer outboxRequeuer, accountID string, seq uint64, now time.Time, jsonOutput bool, out io.Writer) error {
	if requeuer == nil {
		return fmt.Errorf("outbox requeuer is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	if seq == 0 {
		return fmt.Errorf("event sequence must be greater than zero")
	}

	requeued, err := requeuer.RequeueProjectionApplyOutboxRow(ctx, accountID, seq, now)
	if err != nil {
		return fmt.Errorf("requeue outbox row: %w", err)
	}
	if !requeued {
		return fmt.Errorf("dead outbox row not found for %s/%d", accountID, seq)
	}
	if jsonOutput {
		return writeJSONLine(out, outboxRequeueResult{Mode: "outbox-requeue", AccountID: accountID, Seq: seq, Requeued: 1})
	}
	fmt.Fprintf(out, "Requeued outbox row: %s/%d\n", accountID, seq)
	return nil
}

func runOutboxRequeueDeadRows(ctx context.Context, requeuer outboxRequeuer, limit int, now time.Time, jsonOutput bool, out io.Writer) error {
	if requeuer == nil {
		return fmt.Errorf("outbox requeuer is not configured")
	}
	if limit <= 0 {
		return fmt.Errorf("outbox requeue limit must be > 0")
	}

	requeued, err := requeuer.RequeueProjectionApplyOutboxDeadRows(ctx, limit, now)
	if err != nil {
		return fmt.Errorf("requeue dead outbox rows: %w", err)
	}
	if jsonOutput {
		return writeJSONLine(out, outboxRequeueResult{Mode: "outbox-requeue-dead", Limit: limit, Requeued: requeued})
	}
	fmt.Fprintf(out, "Requeued dead outbox rows: %d (limit=%d)\n", requeued, limit)
	return nil
}
