package engine

import (
	"context"
	"errors"
	"log"

	"github.com/louisbranch/ledger/internal/services/account/domain/checkpoint"
	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/replay"
)

// StateSnapshotStore loads and saves replay state snapshots keyed by account.
// GetState reports replay.ErrCheckpointNotFound when no snapshot exists.
type StateSnapshotStore interface {
	GetState(ctx context.Context, accountID string) (state any, lastSeq uint64, err error)
	SaveState(ctx context.Context, accountID string, lastSeq uint64, state any) error
}

// headReader is implemented by event stores that can report the latest
// sequence of an account.
type headReader interface {
	LatestSeq(ctx context.Context, accountID string) (uint64, error)
}

// ReplayStateLoader replays events to build state for command handling,
// starting from a snapshot when one is available.
type ReplayStateLoader struct {
	Events       replay.EventStore
	Snapshots    StateSnapshotStore
	Folder       replay.Folder
	StateFactory func() any
	Options      replay.Options
}

// Load replays events to reconstruct state for an account.
func (l ReplayStateLoader) Load(ctx context.Context, cmd command.Command) (any, error) {
	if l.Events == nil {
		return nil, replay.ErrEventStoreRequired
	}
	if l.Folder == nil {
		return nil, replay.ErrFolderRequired
	}
	var state any
	options := l.Options
	if l.Snapshots != nil {
		snapshotState, snapshotSeq, err := l.Snapshots.GetState(ctx, cmd.AccountID)
		switch {
		case errors.Is(err, replay.ErrCheckpointNotFound):
		case err != nil:
			return nil, err
		case l.snapshotAheadOfJournal(ctx, cmd.AccountID, snapshotSeq):
			log.Printf("discard snapshot %s@%d: journal is behind", cmd.AccountID, snapshotSeq)
		default:
			state = snapshotState
			if snapshotSeq > options.AfterSeq {
				options.AfterSeq = snapshotSeq
			}
		}
	}
	if state == nil && l.StateFactory != nil {
		state = l.StateFactory()
	}
	result, err := replay.Replay(ctx, l.Events, checkpoint.NewNoop(), l.Folder, cmd.AccountID, state, options)
	if err != nil {
		return nil, err
	}
	return result.State, nil
}

// snapshotAheadOfJournal reports whether a snapshot covers events the journal
// does not have, which happens after restoring an older events database.
func (l ReplayStateLoader) snapshotAheadOfJournal(ctx context.Context, accountID string, snapshotSeq uint64) bool {
	heads, ok := l.Events.(headReader)
	if !ok {
		return false
	}
	head, err := heads.LatestSeq(ctx, accountID)
	if err != nil {
		return true
	}
	return snapshotSeq > head
}
