package projection

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/storage/integrity"
	storagesqlite "github.com/louisbranch/ledger/internal/services/account/storage/sqlite"
	"github.com/shopspring/decimal"
)

func openProjectionStore(t *testing.T) *storagesqlite.Store {
	t.Helper()
	store, err := storagesqlite.OpenProjections(filepath.Join(t.TempDir(), "projections.db"))
	if err != nil {
		t.Fatalf("open projections: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func openEventStore(t *testing.T) *storagesqlite.Store {
	t.Helper()
	ring, err := integrity.NewKeyring(map[string][]byte{"v1": []byte("projection-test")}, "v1")
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	registry := event.NewRegistry()
	if err := account.RegisterEvents(registry); err != nil {
		t.Fatalf("register events: %v", err)
	}
	store, err := storagesqlite.OpenEvents(filepath.Join(t.TempDir(), "events.db"), ring, registry)
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestExactlyOnceSkipsRedelivery(t *testing.T) {
	store := openProjectionStore(t)
	ctx := context.Background()
	apply := ExactlyOnce{Store: store, NewID: sequentialIDs()}

	events := append(openAccount(t, "A1", "C1"), movementEvent(t, "A1", 3, account.EventTypeCredited, "100", "salary"))
	for _, evt := range events {
		applied, err := apply.Apply(ctx, evt)
		if err != nil {
			t.Fatalf("apply seq %d: %v", evt.Seq, err)
		}
		if !applied {
			t.Fatalf("seq %d applied = false, want true", evt.Seq)
		}
	}
	applied, err := apply.Apply(ctx, events[2])
	if err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if applied {
		t.Fatal("redelivered event applied = true, want false")
	}

	record, err := store.GetAccount(ctx, "A1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !record.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance = %s, want 100", record.Balance)
	}
	_, total, err := store.ListOperations(ctx, "A1", 0, 10)
	if err != nil {
		t.Fatalf("list operations: %v", err)
	}
	if total != 1 {
		t.Fatalf("operations = %d, want 1", total)
	}
	wm, err := store.GetProjectionWatermark(ctx, "A1")
	if err != nil {
		t.Fatalf("get watermark: %v", err)
	}
	if wm.AppliedSeq != 3 {
		t.Fatalf("applied seq = %d, want 3", wm.AppliedSeq)
	}
}

func TestExactlyOnceFailureLeavesNoCheckpoint(t *testing.T) {
	store := openProjectionStore(t)
	ctx := context.Background()
	apply := ExactlyOnce{Store: store}

	evt := statusEvent(t, "A1", 2, account.EventTypeActivated, account.StatusActivated)
	if _, err := apply.Apply(ctx, evt); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrAccountNotFound)
	}
	done, err := store.IsProjectionEventApplied(ctx, "A1", 2)
	if err != nil {
		t.Fatalf("is applied: %v", err)
	}
	if done {
		t.Fatal("failed apply left a checkpoint")
	}
}

func TestExactlyOnceApplyFuncRequiresStore(t *testing.T) {
	fn := ExactlyOnce{}.ApplyFunc()
	if err := fn(context.Background(), createdEvent(t, "A1", "C1", 1)); err == nil {
		t.Fatal("expected error without store")
	}
}
