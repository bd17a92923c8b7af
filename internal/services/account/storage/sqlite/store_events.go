package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/storage"
	"github.com/louisbranch/ledger/internal/services/account/storage/integrity"
)

const eventColumns = `account_id, seq, event_hash, prev_event_hash, chain_hash, signature_key_id,
event_signature, timestamp, event_type, request_id, actor_type, actor_id, entity_type, entity_id, payload_json`

// AppendEvents atomically appends the events of one decision.
//
// All events must belong to the same account. Sequence numbers are allocated
// contiguously and chain hashes link each event to its predecessor, including
// the last previously stored event for the first item of the batch. One
// projection-apply outbox row per event commits in the same transaction.
func (s *Store) AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if s.keyring == nil {
		return nil, fmt.Errorf("event integrity keyring is required")
	}

	validated := make([]event.Event, len(events))
	for i, evt := range events {
		if s.eventRegistry != nil {
			checked, err := s.eventRegistry.ValidateForAppend(evt)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", i, err)
			}
			evt = checked
		}
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}
		// Stored with millisecond precision; hash what will be read back.
		evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
		validated[i] = evt
	}
	accountID := validated[0].AccountID
	for i, evt := range validated {
		if evt.AccountID != accountID {
			return nil, fmt.Errorf("event %d: batch spans accounts %s and %s", i, accountID, evt.AccountID)
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO event_seq (account_id, next_seq) VALUES (?, 1) ON CONFLICT(account_id) DO NOTHING`,
		accountID,
	); err != nil {
		return nil, fmt.Errorf("init event seq: %w", err)
	}
	var baseSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT next_seq FROM event_seq WHERE account_id = ?`, accountID).Scan(&baseSeq); err != nil {
		return nil, fmt.Errorf("get event seq: %w", err)
	}

	prevChainHash := ""
	if baseSeq > 1 {
		if err := tx.QueryRowContext(ctx,
			`SELECT chain_hash FROM events WHERE account_id = ? AND seq = ?`,
			accountID, baseSeq-1,
		).Scan(&prevChainHash); err != nil {
			return nil, fmt.Errorf("load previous event: %w", err)
		}
	}

	stored := make([]event.Event, len(validated))
	for i, evt := range validated {
		evt.Seq = uint64(baseSeq) + uint64(i)
		sealed, err := integrity.Seal(s.keyring, evt, prevChainHash)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sealed.AccountID,
			int64(sealed.Seq),
			sealed.Hash,
			sealed.PrevHash,
			sealed.ChainHash,
			sealed.SignatureKeyID,
			sealed.Signature,
			toMillis(sealed.Timestamp),
			string(sealed.Type),
			sealed.RequestID,
			string(sealed.ActorType),
			sealed.ActorID,
			sealed.EntityType,
			sealed.EntityID,
			sealed.PayloadJSON,
		); err != nil {
			return nil, fmt.Errorf("append event %s/%d: %w", sealed.AccountID, sealed.Seq, err)
		}
		if err := s.enqueueProjectionApplyOutbox(ctx, tx, sealed); err != nil {
			return nil, err
		}
		prevChainHash = sealed.ChainHash
		stored[i] = sealed
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE event_seq SET next_seq = ? WHERE account_id = ?`,
		baseSeq+int64(len(stored)), accountID,
	); err != nil {
		return nil, fmt.Errorf("advance event seq: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// GetEventBySeq retrieves a specific event by sequence number.
func (s *Store) GetEventBySeq(ctx context.Context, accountID string, seq uint64) (event.Event, error) {
	if err := s.ready(ctx); err != nil {
		return event.Event{}, err
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE account_id = ? AND seq = ?`,
		accountID, int64(seq),
	)
	evt, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, storage.ErrNotFound
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("get event %s/%d: %w", accountID, seq, err)
	}
	return evt, nil
}

// ListEvents returns events after afterSeq ordered by sequence ascending.
func (s *Store) ListEvents(ctx context.Context, accountID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []event.Event{}, nil
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE account_id = ? AND seq > ? ORDER BY seq LIMIT ?`,
		accountID, int64(afterSeq), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0, limit)
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LatestSeq returns the latest event sequence for an account, 0 if none.
func (s *Store) LatestSeq(ctx context.Context, accountID string) (uint64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var seq sql.NullInt64
	if err := s.q.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM events WHERE account_id = ?`, accountID,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get latest event seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// ListAccountIDs returns every account id present in the journal.
func (s *Store) ListAccountIDs(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `SELECT DISTINCT account_id FROM events ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account ids: %w", err)
	}
	return ids, nil
}

// VerifyEventIntegrity validates the event chain and signatures of every account.
func (s *Store) VerifyEventIntegrity(ctx context.Context) error {
	ids, err := s.ListAccountIDs(ctx)
	if err != nil {
		return err
	}
	for _, accountID := range ids {
		if _, err := s.VerifyAccountEvents(ctx, accountID); err != nil {
			return err
		}
	}
	return nil
}

// VerifyAccountEvents validates one account's chain and returns the number
// of events checked.
func (s *Store) VerifyAccountEvents(ctx context.Context, accountID string) (uint64, error) {
	if s == nil || s.keyring == nil {
		return 0, fmt.Errorf("event integrity keyring is required")
	}
	accountID = strings.TrimSpace(accountID)
	verifier := integrity.NewVerifier(s.keyring, accountID)
	for {
		events, err := s.ListEvents(ctx, accountID, verifier.LastSeq(), 200)
		if err != nil {
			return verifier.LastSeq(), fmt.Errorf("list events account_id=%s: %w", accountID, err)
		}
		if len(events) == 0 {
			return verifier.LastSeq(), nil
		}
		for _, evt := range events {
			if err := verifier.Next(evt); err != nil {
				return verifier.LastSeq(), fmt.Errorf("account_id=%s: %w", accountID, err)
			}
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.Event, error) {
	var (
		evt        event.Event
		seq        int64
		timestamp  int64
		eventType  string
		actorType  string
		payloadRaw []byte
	)
	if err := row.Scan(
		&evt.AccountID,
		&seq,
		&evt.Hash,
		&evt.PrevHash,
		&evt.ChainHash,
		&evt.SignatureKeyID,
		&evt.Signature,
		&timestamp,
		&eventType,
		&evt.RequestID,
		&actorType,
		&evt.ActorID,
		&evt.EntityType,
		&evt.EntityID,
		&payloadRaw,
	); err != nil {
		return event.Event{}, err
	}
	evt.Seq = uint64(seq)
	evt.Timestamp = fromMillis(timestamp)
	evt.Type = event.Type(eventType)
	evt.ActorType = event.ActorType(actorType)
	evt.PayloadJSON = payloadRaw
	return evt, nil
}
