package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/storage"
	"github.com/shopspring/decimal"
)

// PutAccount inserts or replaces an account row.
func (s *Store) PutAccount(ctx context.Context, record storage.AccountRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO accounts (id, owner_id, currency, balance, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     owner_id = excluded.owner_id,
		     currency = excluded.currency,
		     balance = excluded.balance,
		     status = excluded.status,
		     updated_at = excluded.updated_at`,
		record.ID,
		record.OwnerID,
		record.Currency,
		record.Balance.String(),
		string(record.Status),
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrOwnerAlreadyHasAccount
		}
		return fmt.Errorf("put account %s: %w", record.ID, err)
	}
	return nil
}

// GetAccount returns an account row by id.
func (s *Store) GetAccount(ctx context.Context, id string) (storage.AccountRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.AccountRecord{}, err
	}
	return scanAccount(s.q.QueryRowContext(ctx,
		`SELECT id, owner_id, currency, balance, status, created_at, updated_at FROM accounts WHERE id = ?`, id,
	))
}

// GetAccountByOwner returns the account row of an owner.
func (s *Store) GetAccountByOwner(ctx context.Context, ownerID string) (storage.AccountRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.AccountRecord{}, err
	}
	return scanAccount(s.q.QueryRowContext(ctx,
		`SELECT id, owner_id, currency, balance, status, created_at, updated_at FROM accounts WHERE owner_id = ?`, ownerID,
	))
}

// DeleteAccount removes an account row. Deleting a missing row is not an error.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	return nil
}

func scanAccount(row rowScanner) (storage.AccountRecord, error) {
	var (
		record    storage.AccountRecord
		balance   string
		status    string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&record.ID, &record.OwnerID, &record.Currency, &balance, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.AccountRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.AccountRecord{}, fmt.Errorf("scan account: %w", err)
	}
	record.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return storage.AccountRecord{}, fmt.Errorf("parse balance of %s: %w", record.ID, err)
	}
	record.Status = account.Status(status)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// PutOperation inserts an operation row. A second operation for the same
// account and seq is rejected.
func (s *Store) PutOperation(ctx context.Context, record storage.OperationRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("operation id is required")
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO operations (id, account_id, type, amount, description, occurred_at, seq, event_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.AccountID,
		string(record.Type),
		record.Amount.String(),
		record.Description,
		toMillis(record.OccurredAt),
		int64(record.Seq),
		record.EventHash,
	)
	if err != nil {
		return fmt.Errorf("put operation %s/%d: %w", record.AccountID, record.Seq, err)
	}
	return nil
}

const operationColumns = `id, account_id, type, amount, description, occurred_at, seq, event_hash`

// GetOperation returns an operation row by id.
func (s *Store) GetOperation(ctx context.Context, id string) (storage.OperationRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OperationRecord{}, err
	}
	record, err := scanOperation(s.q.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.OperationRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.OperationRecord{}, fmt.Errorf("get operation %s: %w", id, err)
	}
	return record, nil
}

// ListOperations returns up to limit operations of an account after offset,
// ordered by occurrence time then seq, with the total count.
func (s *Store) ListOperations(ctx context.Context, accountID string, offset, limit int) ([]storage.OperationRecord, int, error) {
	if err := s.ready(ctx); err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operations WHERE account_id = ?`, accountID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count operations: %w", err)
	}
	records := []storage.OperationRecord{}
	if limit <= 0 || offset >= total {
		return records, total, nil
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operations
		 WHERE account_id = ?
		 ORDER BY occurred_at, seq, rowid
		 LIMIT ? OFFSET ?`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		record, err := scanOperation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan operation: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate operations: %w", err)
	}
	return records, total, nil
}

func scanOperation(row rowScanner) (storage.OperationRecord, error) {
	var (
		record     storage.OperationRecord
		opType     string
		amount     string
		occurredAt int64
		seq        int64
	)
	if err := row.Scan(&record.ID, &record.AccountID, &opType, &amount, &record.Description, &occurredAt, &seq, &record.EventHash); err != nil {
		return storage.OperationRecord{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return storage.OperationRecord{}, fmt.Errorf("parse amount of %s: %w", record.ID, err)
	}
	record.Amount = parsed
	record.Type = storage.OperationType(opType)
	record.OccurredAt = fromMillis(occurredAt)
	record.Seq = uint64(seq)
	return record, nil
}

// ResetAccountProjection removes every read-model row derived from an
// account's events so the projection can be rebuilt from seq 1.
func (s *Store) ResetAccountProjection(ctx context.Context, accountID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM operations WHERE account_id = ?`,
		`DELETE FROM accounts WHERE id = ?`,
		`DELETE FROM projection_apply_checkpoints WHERE account_id = ?`,
		`DELETE FROM projection_watermarks WHERE account_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, accountID); err != nil {
			return fmt.Errorf("reset projection %s: %w", accountID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset tx: %w", err)
	}
	return nil
}
