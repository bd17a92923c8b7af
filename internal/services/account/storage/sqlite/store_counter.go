package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/ledger/internal/services/account/domain/sequence"
)

// Increment bumps the identifier counter for day in one conditional upsert.
// A counter already at ceiling is left untouched and reports
// sequence.ErrCapacityExceeded.
func (s *Store) Increment(ctx context.Context, day string, ceiling int64) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	day = strings.TrimSpace(day)
	if day == "" {
		return 0, fmt.Errorf("counter day is required")
	}
	if ceiling <= 0 {
		return 0, sequence.ErrCapacityExceeded
	}
	var count int64
	err := s.q.QueryRowContext(ctx,
		`INSERT INTO account_day_counters (day, count) VALUES (?, 1)
		 ON CONFLICT(day) DO UPDATE SET count = count + 1 WHERE count < ?
		 RETURNING count`,
		day, ceiling,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sequence.ErrCapacityExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("increment day counter %s: %w", day, err)
	}
	return count, nil
}

// Count returns the number of identifiers issued for day.
func (s *Store) Count(ctx context.Context, day string) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int64
	err := s.q.QueryRowContext(ctx, `SELECT count FROM account_day_counters WHERE day = ?`, day).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get day counter %s: %w", day, err)
	}
	return count, nil
}
