package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/storage"
)

// GetProjectionWatermark returns the watermark for an account.
// Returns storage.ErrNotFound if no watermark exists.
func (s *Store) GetProjectionWatermark(ctx context.Context, accountID string) (storage.ProjectionWatermark, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ProjectionWatermark{}, err
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return storage.ProjectionWatermark{}, fmt.Errorf("account id is required")
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT account_id, applied_seq, expected_next_seq, updated_at FROM projection_watermarks WHERE account_id = ?`,
		accountID,
	)
	var (
		wm              storage.ProjectionWatermark
		appliedSeq      int64
		expectedNextSeq int64
		updatedAtMillis int64
	)
	err := row.Scan(&wm.AccountID, &appliedSeq, &expectedNextSeq, &updatedAtMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ProjectionWatermark{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ProjectionWatermark{}, fmt.Errorf("get projection watermark: %w", err)
	}
	wm.AppliedSeq = uint64(appliedSeq)
	wm.ExpectedNextSeq = uint64(expectedNextSeq)
	wm.UpdatedAt = fromMillis(updatedAtMillis)
	return wm, nil
}

// SaveProjectionWatermark upserts the watermark for an account.
func (s *Store) SaveProjectionWatermark(ctx context.Context, wm storage.ProjectionWatermark) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	wm.AccountID = strings.TrimSpace(wm.AccountID)
	if wm.AccountID == "" {
		return fmt.Errorf("account id is required")
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO projection_watermarks (account_id, applied_seq, expected_next_seq, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
		     applied_seq = excluded.applied_seq,
		     expected_next_seq = excluded.expected_next_seq,
		     updated_at = excluded.updated_at`,
		wm.AccountID,
		int64(wm.AppliedSeq),
		int64(wm.ExpectedNextSeq),
		toMillis(wm.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save projection watermark: %w", err)
	}
	return nil
}

// ListProjectionWatermarks returns all watermarks ordered by account id.
func (s *Store) ListProjectionWatermarks(ctx context.Context) ([]storage.ProjectionWatermark, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT account_id, applied_seq, expected_next_seq, updated_at FROM projection_watermarks ORDER BY account_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list projection watermarks: %w", err)
	}
	defer rows.Close()
	var watermarks []storage.ProjectionWatermark
	for rows.Next() {
		var (
			wm              storage.ProjectionWatermark
			appliedSeq      int64
			expectedNextSeq int64
			updatedAtMillis int64
		)
		if err := rows.Scan(&wm.AccountID, &appliedSeq, &expectedNextSeq, &updatedAtMillis); err != nil {
			return nil, fmt.Errorf("scan projection watermark: %w", err)
		}
		wm.AppliedSeq = uint64(appliedSeq)
		wm.ExpectedNextSeq = uint64(expectedNextSeq)
		wm.UpdatedAt = fromMillis(updatedAtMillis)
		watermarks = append(watermarks, wm)
	}
	return watermarks, rows.Err()
}

// advanceWatermark moves the applied watermark over every contiguous
// checkpoint after it and records seq as seen.
func (s *Store) advanceWatermark(ctx context.Context, accountID string, seq uint64, now time.Time) error {
	wm, err := s.GetProjectionWatermark(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) {
		wm = storage.ProjectionWatermark{AccountID: accountID, ExpectedNextSeq: 1}
	} else if err != nil {
		return err
	}
	for {
		var exists int
		err := s.q.QueryRowContext(ctx,
			`SELECT 1 FROM projection_apply_checkpoints WHERE account_id = ? AND seq = ?`,
			accountID, int64(wm.AppliedSeq+1),
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return fmt.Errorf("check projection checkpoint %s/%d: %w", accountID, wm.AppliedSeq+1, err)
		}
		wm.AppliedSeq++
	}
	if seq+1 > wm.ExpectedNextSeq {
		wm.ExpectedNextSeq = seq + 1
	}
	if wm.AppliedSeq+1 > wm.ExpectedNextSeq {
		wm.ExpectedNextSeq = wm.AppliedSeq + 1
	}
	wm.UpdatedAt = now
	return s.SaveProjectionWatermark(ctx, wm)
}
