// Package bbolt stores account replay snapshots in a BoltDB file so command
// handling can fold only the tail of an account's journal.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/aggregate"
	"github.com/louisbranch/ledger/internal/services/account/domain/replay"
	"go.etcd.io/bbolt"
)

const snapshotBucket = "account_snapshots"

type snapshotRecord struct {
	LastSeq   uint64        `json:"last_seq"`
	State     account.State `json:"state"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SnapshotStore provides a BoltDB-backed engine.StateSnapshotStore.
type SnapshotStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens a BoltDB snapshot store at the provided path.
func Open(path string) (*SnapshotStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	store := &SnapshotStore{db: db, now: time.Now}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *SnapshotStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveState persists the state of an account as of lastSeq. An older
// snapshot never replaces a newer one.
func (s *SnapshotStore) SaveState(ctx context.Context, accountID string, lastSeq uint64, state any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return replay.ErrAccountIDRequired
	}
	current, err := aggregate.AssertState[account.State](state)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snapshotRecord{LastSeq: lastSeq, State: current, UpdatedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		if existing := bucket.Get([]byte(accountID)); existing != nil {
			var prior snapshotRecord
			if err := json.Unmarshal(existing, &prior); err == nil && prior.LastSeq > lastSeq {
				return nil
			}
		}
		return bucket.Put([]byte(accountID), payload)
	})
}

// GetState returns the latest snapshot of an account, or
// replay.ErrCheckpointNotFound when there is none.
func (s *SnapshotStore) GetState(ctx context.Context, accountID string) (any, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, 0, replay.ErrAccountIDRequired
	}

	var record snapshotRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		payload := bucket.Get([]byte(accountID))
		if payload == nil {
			return replay.ErrCheckpointNotFound
		}
		if err := json.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return record.State, record.LastSeq, nil
}

// DeleteState drops the snapshot of an account.
func (s *SnapshotStore) DeleteState(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		return bucket.Delete([]byte(accountID))
	})
}

func (s *SnapshotStore) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket)); err != nil {
			return fmt.Errorf("create snapshot bucket: %w", err)
		}
		return nil
	})
}
