package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/louisbranch/ledger/internal/platform/errors"
	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/storage"
	storagesqlite "github.com/louisbranch/ledger/internal/services/account/storage/sqlite"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *storagesqlite.Store) {
	t.Helper()
	store, err := storagesqlite.OpenProjections(filepath.Join(t.TempDir(), "projections.db"))
	if err != nil {
		t.Fatalf("open projections: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store), store
}

func seedAccount(t *testing.T, store *storagesqlite.Store, id, ownerID string, operations int) {
	t.Helper()
	ctx := context.Background()
	if err := store.PutAccount(ctx, storage.AccountRecord{
		ID:        id,
		OwnerID:   ownerID,
		Currency:  "TND",
		Balance:   decimal.NewFromInt(int64(operations)),
		Status:    account.StatusActivated,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	for i := 1; i <= operations; i++ {
		if err := store.PutOperation(ctx, storage.OperationRecord{
			ID:         fmt.Sprintf("%s-op-%02d", id, i),
			AccountID:  id,
			Type:       storage.OperationCredit,
			Amount:     decimal.NewFromInt(1),
			OccurredAt: testNow.Add(time.Duration(i) * time.Minute),
			Seq:        uint64(i + 2),
		}); err != nil {
			t.Fatalf("put operation: %v", err)
		}
	}
}

func TestGetAccount(t *testing.T) {
	svc, store := newTestService(t)
	seedAccount(t, store, "2025010100000001", "C1", 0)

	record, err := svc.GetAccount(context.Background(), "2025010100000001")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if record.OwnerID != "C1" || record.Status != account.StatusActivated {
		t.Fatalf("record = %+v", record)
	}

	_, err = svc.GetAccount(context.Background(), "missing")
	if got := apperrors.CodeOf(err); got != apperrors.CodeAccountNotFound {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeAccountNotFound)
	}
}

func TestGetAccountByOwner(t *testing.T) {
	svc, store := newTestService(t)
	seedAccount(t, store, "A1", "C1", 0)

	record, err := svc.GetAccountByOwner(context.Background(), "C1")
	if err != nil {
		t.Fatalf("get by owner: %v", err)
	}
	if record.ID != "A1" {
		t.Fatalf("id = %s, want A1", record.ID)
	}
	_, err = svc.GetAccountByOwner(context.Background(), "C2")
	if !errors.Is(err, apperrors.New(apperrors.CodeAccountNotFound, "")) {
		t.Fatalf("err = %v, want account not found", err)
	}
}

func TestGetOperation(t *testing.T) {
	svc, store := newTestService(t)
	seedAccount(t, store, "A1", "C1", 1)

	record, err := svc.GetOperation(context.Background(), "A1-op-01")
	if err != nil {
		t.Fatalf("get operation: %v", err)
	}
	if record.AccountID != "A1" || record.Type != storage.OperationCredit {
		t.Fatalf("record = %+v", record)
	}
	_, err = svc.GetOperation(context.Background(), "nope")
	if got := apperrors.CodeOf(err); got != apperrors.CodeOperationNotFound {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeOperationNotFound)
	}
}

func TestListOperationsPages(t *testing.T) {
	svc, store := newTestService(t)
	seedAccount(t, store, "A1", "C1", 12)

	first, err := svc.ListOperations(context.Background(), "A1", 0, 0)
	if err != nil {
		t.Fatalf("list page 0: %v", err)
	}
	if first.Size != defaultPageSize || len(first.Operations) != 10 || first.TotalElements != 12 {
		t.Fatalf("page 0 = size %d, len %d, total %d", first.Size, len(first.Operations), first.TotalElements)
	}
	if first.Operations[0].ID != "A1-op-01" {
		t.Fatalf("first op = %s, want A1-op-01", first.Operations[0].ID)
	}

	second, err := svc.ListOperations(context.Background(), "A1", 1, 10)
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(second.Operations) != 2 || second.Operations[1].ID != "A1-op-12" {
		t.Fatalf("page 1 = %+v", second.Operations)
	}

	beyond, err := svc.ListOperations(context.Background(), "A1", 5, 10)
	if err != nil {
		t.Fatalf("list page 5: %v", err)
	}
	if beyond.Operations == nil || len(beyond.Operations) != 0 {
		t.Fatalf("page 5 = %v, want empty slice", beyond.Operations)
	}
}

func TestListOperationsClampsAndValidates(t *testing.T) {
	svc, _ := newTestService(t)

	page, err := svc.ListOperations(context.Background(), "A1", 0, 1000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Size != maxPageSize {
		t.Fatalf("size = %d, want %d", page.Size, maxPageSize)
	}
	if _, err := svc.ListOperations(context.Background(), "A1", -1, 10); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("negative page err = %v, want invalid argument", err)
	}
	if _, err := svc.ListOperations(context.Background(), "", 0, 10); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("empty account err = %v, want invalid argument", err)
	}
	if _, err := svc.ListOperations(context.Background(), "A1", math.MaxInt/10+1, 10); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("overflowing page err = %v, want invalid argument", err)
	}
}
