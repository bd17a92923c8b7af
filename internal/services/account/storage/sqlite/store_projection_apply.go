package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

const (
	maxBusyRetries = 8
	retryBaseDelay = 10 * time.Millisecond
)

// ApplyProjectionEventExactlyOnce applies one projection event inside a
// projection-db transaction and records a per-(account, seq) checkpoint to
// dedupe redelivery. It reports false when the event was already applied.
//
// The watermark of the account advances in the same transaction.
func (s *Store) ApplyProjectionEventExactlyOnce(
	ctx context.Context,
	evt event.Event,
	apply func(context.Context, event.Event, *Store) error,
) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	if apply == nil {
		return false, fmt.Errorf("projection apply callback is required")
	}
	if strings.TrimSpace(evt.AccountID) == "" {
		return false, fmt.Errorf("account id is required")
	}
	if evt.Seq == 0 {
		return false, fmt.Errorf("event sequence must be greater than zero")
	}

	waitForRetry := func(attempt int) error {
		timer := time.NewTimer(time.Duration(attempt+1) * retryBaseDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	var lastBusyErr error
	for attempt := 0; ; attempt++ {
		applied, retry, err := s.applyProjectionEventOnce(ctx, evt, apply)
		if retry != nil {
			lastBusyErr = retry
			if attempt < maxBusyRetries {
				if waitErr := waitForRetry(attempt); waitErr != nil {
					return false, waitErr
				}
				continue
			}
			return false, fmt.Errorf("projection apply checkpoint %s/%d remained busy: %w", evt.AccountID, evt.Seq, lastBusyErr)
		}
		return applied, err
	}
}

// applyProjectionEventOnce runs one transaction attempt. A non-nil busy error
// asks the caller to retry.
func (s *Store) applyProjectionEventOnce(
	ctx context.Context,
	evt event.Event,
	apply func(context.Context, event.Event, *Store) error,
) (applied bool, busy error, err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		if isSQLiteBusyError(err) {
			return false, err, nil
		}
		return false, nil, fmt.Errorf("begin projection apply tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO projection_apply_checkpoints (account_id, seq, event_type, applied_at)
		 VALUES (?, ?, ?, ?)`,
		evt.AccountID,
		int64(evt.Seq),
		string(evt.Type),
		toMillis(now),
	)
	if err != nil {
		if isSQLiteBusyError(err) {
			return false, err, nil
		}
		return false, nil, fmt.Errorf("reserve projection apply checkpoint %s/%d: %w", evt.AccountID, evt.Seq, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("inspect projection apply checkpoint %s/%d: %w", evt.AccountID, evt.Seq, err)
	}
	if rowsAffected == 0 {
		return false, nil, nil
	}

	txStore := s.withTx(tx)
	if err := apply(ctx, evt, txStore); err != nil {
		return false, nil, err
	}
	if err := txStore.advanceWatermark(ctx, evt.AccountID, evt.Seq, now); err != nil {
		return false, nil, err
	}
	if err := tx.Commit(); err != nil {
		if isSQLiteBusyError(err) {
			return false, err, nil
		}
		return false, nil, fmt.Errorf("commit projection apply tx: %w", err)
	}
	return true, nil, nil
}

// IsProjectionEventApplied reports whether a checkpoint exists for the event.
func (s *Store) IsProjectionEventApplied(ctx context.Context, accountID string, seq uint64) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var count int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projection_apply_checkpoints WHERE account_id = ? AND seq = ?`,
		accountID, int64(seq),
	).Scan(&count); err != nil {
		return false, fmt.Errorf("check projection checkpoint %s/%d: %w", accountID, seq, err)
	}
	return count > 0, nil
}
