// Package checkpoint provides in-process replay checkpoint and snapshot stores.
package checkpoint

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/replay"
)

var (
	// ErrAccountIDRequired indicates a missing account id.
	ErrAccountIDRequired = errors.New("account id is required")
)

// Memory stores checkpoints and state snapshots in memory.
type Memory struct {
	mu          sync.Mutex
	checkpoints map[string]replay.Checkpoint
	states      map[string]any
	now         func() time.Time
}

// NewMemory creates a new in-memory checkpoint store.
func NewMemory() *Memory {
	return &Memory{
		checkpoints: make(map[string]replay.Checkpoint),
		states:      make(map[string]any),
		now:         time.Now,
	}
}

// Get retrieves a checkpoint by account id.
func (m *Memory) Get(ctx context.Context, accountID string) (replay.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return replay.Checkpoint{}, err
	}
	if m == nil {
		return replay.Checkpoint{}, errors.New("checkpoint store is required")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return replay.Checkpoint{}, ErrAccountIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint, ok := m.checkpoints[accountID]
	if !ok {
		return replay.Checkpoint{}, replay.ErrCheckpointNotFound
	}
	return checkpoint, nil
}

// Save persists a checkpoint.
func (m *Memory) Save(ctx context.Context, checkpoint replay.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		return errors.New("checkpoint store is required")
	}
	accountID := strings.TrimSpace(checkpoint.AccountID)
	if accountID == "" {
		return ErrAccountIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint.AccountID = accountID
	m.checkpoints[accountID] = checkpoint
	return nil
}

// GetState retrieves a state snapshot and the sequence it covers.
func (m *Memory) GetState(ctx context.Context, accountID string) (any, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if m == nil {
		return nil, 0, errors.New("checkpoint store is required")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, 0, ErrAccountIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.states[accountID]
	if !ok {
		return nil, 0, replay.ErrCheckpointNotFound
	}
	checkpoint, ok := m.checkpoints[accountID]
	if !ok {
		return nil, 0, replay.ErrCheckpointNotFound
	}
	return snapshot, checkpoint.LastSeq, nil
}

// SaveState persists a state snapshot. Account state is a value type, so the
// stored copy cannot be mutated by the caller.
func (m *Memory) SaveState(ctx context.Context, accountID string, lastSeq uint64, state any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		return errors.New("checkpoint store is required")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ErrAccountIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[accountID] = state
	m.checkpoints[accountID] = replay.Checkpoint{
		AccountID: accountID,
		LastSeq:   lastSeq,
		UpdatedAt: m.now().UTC(),
	}
	return nil
}
