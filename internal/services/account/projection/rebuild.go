package projection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/ledger/internal/services/account/domain/engine"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/domain/replay"
	"github.com/louisbranch/ledger/internal/services/account/storage"
)

// Rebuilder replays journal events into the projection store.
type Rebuilder struct {
	Events replay.EventStore
	Apply  ExactlyOnce
	// PageSize bounds each journal read. Zero uses the replay default.
	PageSize int
}

// RebuildResult reports the outcome of a rebuild.
type RebuildResult struct {
	AccountID string
	LastSeq   uint64
	Applied   int
	Skipped   int
	// Rejected lists seqs whose apply failed with a terminal error. Replay
	// continues past them, as the outbox worker does once it dead-letters.
	Rejected []uint64
}

// Rebuild replays the events of accountID that the projection has not applied
// yet. With reset set the account's read model is cleared first and every
// event is applied again from seq 1.
func (r Rebuilder) Rebuild(ctx context.Context, accountID string, reset bool) (RebuildResult, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return RebuildResult{}, fmt.Errorf("account id is required")
	}
	if r.Events == nil {
		return RebuildResult{}, replay.ErrEventStoreRequired
	}
	if r.Apply.Store == nil {
		return RebuildResult{}, fmt.Errorf("projection store is not configured")
	}
	if reset {
		if err := r.Apply.Store.ResetAccountProjection(ctx, accountID); err != nil {
			return RebuildResult{}, err
		}
	}

	out := RebuildResult{AccountID: accountID}
	folder := replay.FolderFunc(func(state any, evt event.Event) (any, error) {
		applied, err := r.Apply.Apply(ctx, evt)
		if err != nil {
			if engine.IsNonRetryable(err) {
				out.Rejected = append(out.Rejected, evt.Seq)
				return state, nil
			}
			return state, err
		}
		if applied {
			out.Applied++
		} else {
			out.Skipped++
		}
		return state, nil
	})
	result, err := replay.Replay(ctx, r.Events, watermarkCheckpoints{store: r.Apply.Store}, folder, accountID, nil, replay.Options{PageSize: r.PageSize})
	out.LastSeq = result.LastSeq
	if err != nil {
		return out, fmt.Errorf("rebuild projection %s: %w", accountID, err)
	}
	return out, nil
}

// watermarkCheckpoints exposes the projection watermark as a replay
// checkpoint. The watermark advances inside each apply transaction, so Save
// has nothing to record.
type watermarkCheckpoints struct {
	store storage.ProjectionWatermarkStore
}

func (w watermarkCheckpoints) Get(ctx context.Context, accountID string) (replay.Checkpoint, error) {
	wm, err := w.store.GetProjectionWatermark(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) {
		return replay.Checkpoint{}, replay.ErrCheckpointNotFound
	}
	if err != nil {
		return replay.Checkpoint{}, err
	}
	return replay.Checkpoint{AccountID: wm.AccountID, LastSeq: wm.AppliedSeq, UpdatedAt: wm.UpdatedAt}, nil
}

func (w watermarkCheckpoints) Save(ctx context.Context, _ replay.Checkpoint) error {
	return ctx.Err()
}
