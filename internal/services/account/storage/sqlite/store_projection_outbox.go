package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/engine"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

const (
	outboxDeadLetterThreshold = 8
	outboxProcessingLease     = 2 * time.Minute
)

func (s *Store) enqueueProjectionApplyOutbox(ctx context.Context, tx *sql.Tx, evt event.Event) error {
	if !s.outboxEnabled {
		return nil
	}
	enqueuedAt := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projection_apply_outbox (
		     account_id, seq, event_type, status, attempt_count, next_attempt_at, last_error, updated_at
		 ) VALUES (?, ?, ?, 'pending', 0, ?, '', ?)
		 ON CONFLICT(account_id, seq) DO NOTHING`,
		evt.AccountID,
		int64(evt.Seq),
		string(evt.Type),
		toMillis(enqueuedAt),
		toMillis(enqueuedAt),
	); err != nil {
		return fmt.Errorf("enqueue projection apply outbox: %w", err)
	}
	return nil
}

type projectionApplyOutboxRow struct {
	AccountID    string
	Seq          uint64
	EventType    string
	AttemptCount int
}

// ProjectionApplyOutboxSummary reports outbox depth and the oldest
// retry-eligible row.
type ProjectionApplyOutboxSummary struct {
	PendingCount           int
	ProcessingCount        int
	FailedCount            int
	DeadCount              int
	OldestPendingAccountID string
	OldestPendingSeq       uint64
	OldestPendingAt        time.Time
}

// ProjectionApplyOutboxEntry describes one outbox row for inspection tooling.
type ProjectionApplyOutboxEntry struct {
	AccountID     string
	Seq           uint64
	EventType     event.Type
	Status        string
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	UpdatedAt     time.Time
}

// GetProjectionApplyOutboxSummary returns queue depth by status and the oldest
// pending or failed row.
func (s *Store) GetProjectionApplyOutboxSummary(ctx context.Context) (ProjectionApplyOutboxSummary, error) {
	if err := s.ready(ctx); err != nil {
		return ProjectionApplyOutboxSummary{}, err
	}

	summary := ProjectionApplyOutboxSummary{}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM projection_apply_outbox GROUP BY status`,
	)
	if err != nil {
		return ProjectionApplyOutboxSummary{}, fmt.Errorf("query outbox summary counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return ProjectionApplyOutboxSummary{}, fmt.Errorf("scan outbox summary count: %w", err)
		}
		switch status {
		case "pending":
			summary.PendingCount = count
		case "processing":
			summary.ProcessingCount = count
		case "failed":
			summary.FailedCount = count
		case "dead":
			summary.DeadCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return ProjectionApplyOutboxSummary{}, fmt.Errorf("iterate outbox summary counts: %w", err)
	}

	var (
		accountID   string
		seq         int64
		nextAttempt int64
	)
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT account_id, seq, next_attempt_at
		 FROM projection_apply_outbox
		 WHERE status IN ('pending', 'failed')
		 ORDER BY next_attempt_at ASC, seq ASC
		 LIMIT 1`,
	).Scan(&accountID, &seq, &nextAttempt)
	if errors.Is(err, sql.ErrNoRows) {
		return summary, nil
	}
	if err != nil {
		return ProjectionApplyOutboxSummary{}, fmt.Errorf("query oldest pending outbox row: %w", err)
	}
	summary.OldestPendingAccountID = accountID
	summary.OldestPendingSeq = uint64(seq)
	summary.OldestPendingAt = fromMillis(nextAttempt)
	return summary, nil
}

// ListProjectionApplyOutboxRows lists outbox rows optionally filtered by status.
func (s *Store) ListProjectionApplyOutboxRows(ctx context.Context, status string, limit int) ([]ProjectionApplyOutboxEntry, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []ProjectionApplyOutboxEntry{}, nil
	}
	normalizedStatus, err := normalizeProjectionApplyOutboxStatus(status)
	if err != nil {
		return nil, err
	}

	query := `SELECT account_id, seq, event_type, status, attempt_count, next_attempt_at, last_error, updated_at
		FROM projection_apply_outbox`
	args := []any{}
	if normalizedStatus != "" {
		query += ` WHERE status = ?`
		args = append(args, normalizedStatus)
	}
	query += ` ORDER BY next_attempt_at ASC, seq ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outbox rows: %w", err)
	}
	defer rows.Close()

	entries := make([]ProjectionApplyOutboxEntry, 0, limit)
	for rows.Next() {
		var (
			entry       ProjectionApplyOutboxEntry
			seq         int64
			eventType   string
			nextAttempt int64
			updatedAt   int64
		)
		if err := rows.Scan(
			&entry.AccountID,
			&seq,
			&eventType,
			&entry.Status,
			&entry.AttemptCount,
			&nextAttempt,
			&entry.LastError,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		entry.Seq = uint64(seq)
		entry.EventType = event.Type(eventType)
		entry.NextAttemptAt = fromMillis(nextAttempt)
		entry.UpdatedAt = fromMillis(updatedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return entries, nil
}

func normalizeProjectionApplyOutboxStatus(status string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(status))
	switch normalized {
	case "", "pending", "processing", "failed", "dead":
		return normalized, nil
	default:
		return "", fmt.Errorf("invalid outbox status %q", status)
	}
}

// CompleteProjectionApplyOutbox removes a pending outbox row whose event was
// already applied inline. Rows claimed by a worker are left for the worker.
func (s *Store) CompleteProjectionApplyOutbox(ctx context.Context, accountID string, seq uint64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM projection_apply_outbox
		 WHERE account_id = ? AND seq = ? AND status = 'pending' AND attempt_count = 0`,
		accountID, int64(seq),
	); err != nil {
		return fmt.Errorf("complete outbox row %s/%d: %w", accountID, seq, err)
	}
	return nil
}

// ProcessProjectionApplyOutbox claims due outbox rows and applies projections
// through apply. Successful rows are removed from the outbox.
//
// Rows run in seq order per account. Once a row of an account fails, the
// account's later rows in the batch are released untouched so they cannot
// overtake it. Errors marked non-retryable are dead-lettered immediately, and
// so is every later row of an account whose first event (seq 1) is dead: the
// read model row those events target will never exist.
func (s *Store) ProcessProjectionApplyOutbox(
	ctx context.Context,
	now time.Time,
	limit int,
	apply func(context.Context, event.Event) error,
) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if apply == nil {
		return 0, fmt.Errorf("projection apply callback is required")
	}
	if limit <= 0 {
		return 0, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rows, err := s.claimProjectionApplyOutboxDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AccountID != rows[j].AccountID {
			return rows[i].AccountID < rows[j].AccountID
		}
		return rows[i].Seq < rows[j].Seq
	})

	blocked := make(map[string]time.Time)
	deadRoots := make(map[string]string)
	processed := 0
	for _, row := range rows {
		if retryAt, ok := blocked[row.AccountID]; ok {
			if cause, dead := deadRoots[row.AccountID]; dead {
				if err := s.markProjectionApplyOutboxRetry(ctx, row, now, outboxDeadLetterThreshold, retryAt, deadRootError(cause)); err != nil {
					return processed, err
				}
				processed++
				continue
			}
			if err := s.releaseProjectionApplyOutboxRow(ctx, row, now, retryAt); err != nil {
				return processed, err
			}
			continue
		}

		storedEvent, err := s.GetEventBySeq(ctx, row.AccountID, row.Seq)
		if err == nil {
			err = apply(ctx, storedEvent)
			if err != nil {
				err = fmt.Errorf("apply projection: %w", err)
			}
		} else {
			err = fmt.Errorf("load event: %w", err)
		}
		if err != nil {
			attempt := row.AttemptCount + 1
			lastError := err.Error()
			if engine.IsNonRetryable(err) {
				attempt = outboxDeadLetterThreshold
			} else if row.Seq > 1 {
				cause, dead, rootErr := s.deadRootCause(ctx, row.AccountID)
				if rootErr != nil {
					return processed, rootErr
				}
				if dead {
					attempt = outboxDeadLetterThreshold
					lastError = deadRootError(cause) + ": " + lastError
					deadRoots[row.AccountID] = cause
				}
			}
			if row.Seq == 1 && attempt >= outboxDeadLetterThreshold {
				deadRoots[row.AccountID] = lastError
			}
			nextAttempt := now.Add(outboxRetryBackoff(attempt))
			if markErr := s.markProjectionApplyOutboxRetry(ctx, row, now, attempt, nextAttempt, lastError); markErr != nil {
				return processed, markErr
			}
			blocked[row.AccountID] = nextAttempt
			processed++
			continue
		}

		if err := s.completeProjectionApplyOutboxRow(ctx, row); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

// deadRootCause reports whether the seq 1 outbox row of accountID is
// dead-lettered, with its last error.
func (s *Store) deadRootCause(ctx context.Context, accountID string) (string, bool, error) {
	var lastError sql.NullString
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT last_error FROM projection_apply_outbox
		 WHERE account_id = ? AND seq = 1 AND status = 'dead'`,
		accountID,
	).Scan(&lastError)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("check dead first row of %s: %w", accountID, err)
	}
	return lastError.String, true, nil
}

func deadRootError(cause string) string {
	return "seq 1 is dead-lettered (" + cause + ")"
}

func (s *Store) claimProjectionApplyOutboxDue(ctx context.Context, now time.Time, limit int) ([]projectionApplyOutboxRow, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin outbox claim tx: %w", err)
	}
	defer tx.Rollback()

	staleBefore := now.Add(-outboxProcessingLease)
	// A row waits while an earlier non-dead row of its account is not yet due.
	rows, err := tx.QueryContext(ctx,
		`SELECT o.account_id, o.seq, o.event_type, o.attempt_count
		 FROM projection_apply_outbox o
		 WHERE ((o.status IN ('pending', 'failed') AND o.next_attempt_at <= ?)
		        OR (o.status = 'processing' AND o.updated_at <= ?))
		   AND NOT EXISTS (
		       SELECT 1 FROM projection_apply_outbox earlier
		       WHERE earlier.account_id = o.account_id
		         AND earlier.seq < o.seq
		         AND ((earlier.status IN ('pending', 'failed') AND earlier.next_attempt_at > ?)
		              OR (earlier.status = 'processing' AND earlier.updated_at > ?))
		   )
		 ORDER BY o.next_attempt_at, o.seq
		 LIMIT ?`,
		toMillis(now),
		toMillis(staleBefore),
		toMillis(now),
		toMillis(staleBefore),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due outbox rows: %w", err)
	}
	candidates := make([]projectionApplyOutboxRow, 0, limit)
	for rows.Next() {
		var (
			row projectionApplyOutboxRow
			seq int64
		)
		if err := rows.Scan(&row.AccountID, &seq, &row.EventType, &row.AttemptCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan due outbox row: %w", err)
		}
		row.Seq = uint64(seq)
		candidates = append(candidates, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate due outbox rows: %w", err)
	}
	rows.Close()

	claimed := make([]projectionApplyOutboxRow, 0, len(candidates))
	for _, candidate := range candidates {
		result, err := tx.ExecContext(ctx,
			`UPDATE projection_apply_outbox
			 SET status = 'processing', updated_at = ?
			 WHERE account_id = ? AND seq = ?
			   AND ((status IN ('pending', 'failed') AND next_attempt_at <= ?)
			        OR (status = 'processing' AND updated_at <= ?))`,
			toMillis(now),
			candidate.AccountID,
			int64(candidate.Seq),
			toMillis(now),
			toMillis(staleBefore),
		)
		if err != nil {
			return nil, fmt.Errorf("claim outbox row %s/%d: %w", candidate.AccountID, candidate.Seq, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim outbox row rows affected %s/%d: %w", candidate.AccountID, candidate.Seq, err)
		}
		if affected == 1 {
			claimed = append(claimed, candidate)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit outbox claim tx: %w", err)
	}
	return claimed, nil
}

func (s *Store) markProjectionApplyOutboxRetry(ctx context.Context, row projectionApplyOutboxRow, now time.Time, attempt int, nextAttempt time.Time, lastError string) error {
	status := "failed"
	if attempt >= outboxDeadLetterThreshold {
		status = "dead"
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE projection_apply_outbox
		 SET status = ?, attempt_count = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
		 WHERE account_id = ? AND seq = ? AND status = 'processing'`,
		status,
		attempt,
		toMillis(nextAttempt),
		lastError,
		toMillis(now),
		row.AccountID,
		int64(row.Seq),
	)
	if err != nil {
		return fmt.Errorf("mark outbox retry for row %s/%d: %w", row.AccountID, row.Seq, err)
	}
	return ensureProjectionApplyOutboxSingleRow(result, row, "mark outbox retry for row", "updated")
}

// releaseProjectionApplyOutboxRow returns a claimed row to pending without
// counting an attempt.
func (s *Store) releaseProjectionApplyOutboxRow(ctx context.Context, row projectionApplyOutboxRow, now, nextAttempt time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE projection_apply_outbox
		 SET status = 'pending', next_attempt_at = ?, updated_at = ?
		 WHERE account_id = ? AND seq = ? AND status = 'processing'`,
		toMillis(nextAttempt),
		toMillis(now),
		row.AccountID,
		int64(row.Seq),
	)
	if err != nil {
		return fmt.Errorf("release outbox row %s/%d: %w", row.AccountID, row.Seq, err)
	}
	return ensureProjectionApplyOutboxSingleRow(result, row, "release outbox row", "updated")
}

func (s *Store) completeProjectionApplyOutboxRow(ctx context.Context, row projectionApplyOutboxRow) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM projection_apply_outbox
		 WHERE account_id = ? AND seq = ? AND status = 'processing'`,
		row.AccountID,
		int64(row.Seq),
	)
	if err != nil {
		return fmt.Errorf("complete outbox row %s/%d: %w", row.AccountID, row.Seq, err)
	}
	return ensureProjectionApplyOutboxSingleRow(result, row, "complete outbox row", "deleted")
}

func ensureProjectionApplyOutboxSingleRow(result sql.Result, row projectionApplyOutboxRow, operation, verb string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected %s/%d: %w", operation, row.AccountID, row.Seq, err)
	}
	if affected != 1 {
		return fmt.Errorf("%s %s/%d: expected 1 row %s, got %d", operation, row.AccountID, row.Seq, verb, affected)
	}
	return nil
}

// RequeueProjectionApplyOutboxRow moves one dead outbox row back to pending
// so workers retry it after a fix.
func (s *Store) RequeueProjectionApplyOutboxRow(ctx context.Context, accountID string, seq uint64, now time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return false, fmt.Errorf("account id is required")
	}
	if seq == 0 {
		return false, fmt.Errorf("event sequence must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE projection_apply_outbox
		 SET status = 'pending', attempt_count = 0, next_attempt_at = ?, last_error = '', updated_at = ?
		 WHERE account_id = ? AND seq = ? AND status = 'dead'`,
		toMillis(now),
		toMillis(now),
		accountID,
		int64(seq),
	)
	if err != nil {
		return false, fmt.Errorf("requeue dead outbox row %s/%d: %w", accountID, seq, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("requeue dead outbox row rows affected %s/%d: %w", accountID, seq, err)
	}
	return affected == 1, nil
}

// RequeueProjectionApplyOutboxDeadRows moves up to limit dead outbox rows back
// to pending in retry order.
func (s *Store) RequeueProjectionApplyOutboxDeadRows(ctx context.Context, limit int, now time.Time) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, fmt.Errorf("outbox requeue limit must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`WITH to_requeue AS (
		     SELECT account_id, seq FROM projection_apply_outbox
		     WHERE status = 'dead'
		     ORDER BY next_attempt_at ASC, seq ASC
		     LIMIT ?
		 )
		 UPDATE projection_apply_outbox
		 SET status = 'pending', attempt_count = 0, next_attempt_at = ?, last_error = '', updated_at = ?
		 WHERE status = 'dead'
		   AND EXISTS (
		       SELECT 1 FROM to_requeue
		       WHERE to_requeue.account_id = projection_apply_outbox.account_id
		         AND to_requeue.seq = projection_apply_outbox.seq
		   )`,
		limit,
		toMillis(now),
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox rows: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue dead outbox rows affected: %w", err)
	}
	return int(affected), nil
}

func outboxRetryBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	backoff := time.Second << (attempt - 1)
	if backoff > 5*time.Minute {
		return 5 * time.Minute
	}
	return backoff
}
