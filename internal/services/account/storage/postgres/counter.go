// Package postgres provides a PostgreSQL day counter for account identifiers,
// for deployments where several service instances must share one sequence.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/louisbranch/ledger/internal/services/account/domain/sequence"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS account_day_counters (
    day TEXT PRIMARY KEY,
    issued BIGINT NOT NULL CHECK (issued >= 0)
)`

// CounterStore implements sequence.CounterStore on PostgreSQL.
type CounterStore struct {
	db *sql.DB
}

// Open connects to dsn and ensures the counter table exists.
func Open(ctx context.Context, dsn string) (*CounterStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure counter table: %w", describe(err))
	}
	return &CounterStore{db: db}, nil
}

// Close closes the connection pool. Close is nil-safe.
func (s *CounterStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Increment bumps the counter for day unless it already reached ceiling.
func (s *CounterStore) Increment(ctx context.Context, day string, ceiling int64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if ceiling <= 0 {
		return 0, sequence.ErrCapacityExceeded
	}
	var issued int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO account_day_counters (day, issued) VALUES ($1, 1)
		 ON CONFLICT (day) DO UPDATE SET issued = account_day_counters.issued + 1
		 WHERE account_day_counters.issued < $2
		 RETURNING issued`,
		day, ceiling,
	).Scan(&issued)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sequence.ErrCapacityExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("increment day counter %s: %w", day, describe(err))
	}
	return issued, nil
}

// Count returns the number of identifiers issued for day.
func (s *CounterStore) Count(ctx context.Context, day string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var issued int64
	err := s.db.QueryRowContext(ctx, `SELECT issued FROM account_day_counters WHERE day = $1`, day).Scan(&issued)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get day counter %s: %w", day, describe(err))
	}
	return issued, nil
}

// describe adds the SQLSTATE name to PostgreSQL errors.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (%s): %w", pqErr.Code.Name(), pqErr.Code, err)
	}
	return err
}
