// Package replay folds an account's ordered event history into state, page by
// page, and refuses to continue past a gap in the sequence.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

const defaultPageSize = 200

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrCheckpointStoreRequired indicates a missing checkpoint store.
	ErrCheckpointStoreRequired = errors.New("checkpoint store is required")
	// ErrFolderRequired indicates a missing folder.
	ErrFolderRequired = errors.New("folder is required")
	// ErrAccountIDRequired indicates a missing account id.
	ErrAccountIDRequired = errors.New("account id is required")
	// ErrCheckpointNotFound indicates no checkpoint exists yet.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrSequenceGap indicates the event log skipped a sequence number.
	ErrSequenceGap = errors.New("event sequence gap")
)

// EventStore lists events for replay.
type EventStore interface {
	ListEvents(ctx context.Context, accountID string, afterSeq uint64, limit int) ([]event.Event, error)
}

// CheckpointStore manages replay checkpoints.
type CheckpointStore interface {
	Get(ctx context.Context, accountID string) (Checkpoint, error)
	Save(ctx context.Context, checkpoint Checkpoint) error
}

// Folder applies a domain event to replay state.
type Folder interface {
	Fold(state any, evt event.Event) (any, error)
}

// FolderFunc adapts a function to Folder.
type FolderFunc func(state any, evt event.Event) (any, error)

// Fold calls f(state, evt).
func (f FolderFunc) Fold(state any, evt event.Event) (any, error) {
	return f(state, evt)
}

// Checkpoint captures the last applied sequence for an account.
type Checkpoint struct {
	AccountID string
	LastSeq   uint64
	UpdatedAt time.Time
}

// Options configures replay behavior.
type Options struct {
	AfterSeq uint64
	UntilSeq uint64
	PageSize int
}

// Result captures replay outcomes.
type Result struct {
	State   any
	LastSeq uint64
	Applied int
}

// Replay folds events in sequence order and saves a checkpoint after each one.
// Replay resumes after the later of Options.AfterSeq and the stored checkpoint.
func Replay(ctx context.Context, store EventStore, checkpoints CheckpointStore, folder Folder, accountID string, state any, options Options) (Result, error) {
	if store == nil {
		return Result{}, ErrEventStoreRequired
	}
	if checkpoints == nil {
		return Result{}, ErrCheckpointStoreRequired
	}
	if folder == nil {
		return Result{}, ErrFolderRequired
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Result{}, ErrAccountIDRequired
	}

	lastSeq := options.AfterSeq
	checkpoint, err := checkpoints.Get(ctx, accountID)
	if err != nil {
		if !errors.Is(err, ErrCheckpointNotFound) {
			return Result{}, err
		}
	} else if checkpoint.LastSeq > lastSeq {
		lastSeq = checkpoint.LastSeq
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{State: state, LastSeq: lastSeq}
	for {
		events, err := store.ListEvents(ctx, accountID, result.LastSeq, pageSize)
		if err != nil {
			return result, err
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return result, nil
			}
			expectedSeq := result.LastSeq + 1
			if evt.Seq != expectedSeq {
				return result, fmt.Errorf("%w: expected %d got %d", ErrSequenceGap, expectedSeq, evt.Seq)
			}
			nextState, err := folder.Fold(result.State, evt)
			if err != nil {
				return result, fmt.Errorf("fold seq %d: %w", evt.Seq, err)
			}
			result.State = nextState
			result.LastSeq = evt.Seq
			result.Applied++
			if err := checkpoints.Save(ctx, Checkpoint{AccountID: accountID, LastSeq: result.LastSeq, UpdatedAt: time.Now().UTC()}); err != nil {
				return result, err
			}
		}
		if len(events) < pageSize {
			return result, nil
		}
	}
}
