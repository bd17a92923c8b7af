package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/storage"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

type fakeStore struct {
	accounts   map[string]storage.AccountRecord
	operations map[string]storage.OperationRecord
	putErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:   map[string]storage.AccountRecord{},
		operations: map[string]storage.OperationRecord{},
	}
}

func (f *fakeStore) PutAccount(_ context.Context, record storage.AccountRecord) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.accounts[record.ID] = record
	return nil
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (storage.AccountRecord, error) {
	record, ok := f.accounts[id]
	if !ok {
		return storage.AccountRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) GetAccountByOwner(_ context.Context, ownerID string) (storage.AccountRecord, error) {
	for _, record := range f.accounts {
		if record.OwnerID == ownerID {
			return record, nil
		}
	}
	return storage.AccountRecord{}, storage.ErrNotFound
}

func (f *fakeStore) DeleteAccount(_ context.Context, id string) error {
	delete(f.accounts, id)
	return nil
}

func (f *fakeStore) PutOperation(_ context.Context, record storage.OperationRecord) error {
	f.operations[record.ID] = record
	return nil
}

func (f *fakeStore) GetOperation(_ context.Context, id string) (storage.OperationRecord, error) {
	record, ok := f.operations[id]
	if !ok {
		return storage.OperationRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeStore) ListOperations(_ context.Context, accountID string, offset, limit int) ([]storage.OperationRecord, int, error) {
	var all []storage.OperationRecord
	for _, record := range f.operations {
		if record.AccountID == accountID {
			all = append(all, record)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	total := len(all)
	if offset >= total {
		return []storage.OperationRecord{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("op-%d", n), nil
	}
}

func mustJSON(t *testing.T, value any) []byte {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func testEvent(t *testing.T, accountID string, seq uint64, eventType event.Type, payload any) event.Event {
	t.Helper()
	return event.Event{
		AccountID:   accountID,
		Seq:         seq,
		Hash:        fmt.Sprintf("hash-%d", seq),
		Type:        eventType,
		Timestamp:   testNow.Add(time.Duration(seq) * time.Second),
		ActorType:   event.ActorTypeSystem,
		EntityType:  "account",
		EntityID:    accountID,
		PayloadJSON: mustJSON(t, payload),
	}
}

func createdEvent(t *testing.T, accountID, ownerID string, seq uint64) event.Event {
	t.Helper()
	return testEvent(t, accountID, seq, account.EventTypeCreated, account.CreatedPayload{
		AccountID: accountID,
		OwnerID:   ownerID,
		Currency:  "TND",
		Balance:   decimal.Zero,
		Status:    account.StatusCreated,
	})
}

func statusEvent(t *testing.T, accountID string, seq uint64, eventType event.Type, status account.Status) event.Event {
	t.Helper()
	return testEvent(t, accountID, seq, eventType, account.StatusPayload{AccountID: accountID, Status: status})
}

func movementEvent(t *testing.T, accountID string, seq uint64, eventType event.Type, amount, description string) event.Event {
	t.Helper()
	return testEvent(t, accountID, seq, eventType, account.MovementPayload{
		AccountID:   accountID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "TND",
		Description: description,
	})
}

func openAccount(t *testing.T, accountID, ownerID string) []event.Event {
	t.Helper()
	return []event.Event{
		createdEvent(t, accountID, ownerID, 1),
		statusEvent(t, accountID, 2, account.EventTypeActivated, account.StatusActivated),
	}
}
