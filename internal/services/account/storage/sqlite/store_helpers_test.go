package sqlite

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/storage/integrity"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)

func testKeyring(t *testing.T) *integrity.Keyring {
	t.Helper()
	ring, err := integrity.NewKeyring(map[string][]byte{"v1": []byte("test-secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	return ring
}

func testEventRegistry(t *testing.T) *event.Registry {
	t.Helper()
	registry := event.NewRegistry()
	if err := account.RegisterEvents(registry); err != nil {
		t.Fatalf("register events: %v", err)
	}
	return registry
}

func openTestEventsStore(t *testing.T, opts ...OpenEventsOption) *Store {
	t.Helper()
	store, err := OpenEvents(filepath.Join(t.TempDir(), "events.db"), testKeyring(t), testEventRegistry(t), opts...)
	if err != nil {
		t.Fatalf("open events store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func openTestProjectionsStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenProjections(filepath.Join(t.TempDir(), "projections.db"))
	if err != nil {
		t.Fatalf("open projections store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustJSON(t *testing.T, value any) []byte {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func accountEvent(t *testing.T, accountID string, eventType event.Type, at time.Time, payload any) event.Event {
	t.Helper()
	return event.Event{
		AccountID:   accountID,
		Type:        eventType,
		Timestamp:   at,
		ActorType:   event.ActorTypeSystem,
		EntityType:  "account",
		EntityID:    accountID,
		PayloadJSON: mustJSON(t, payload),
	}
}

func createdEvents(t *testing.T, accountID, ownerID string) []event.Event {
	t.Helper()
	return []event.Event{
		accountEvent(t, accountID, account.EventTypeCreated, testNow, account.CreatedPayload{
			AccountID: accountID,
			OwnerID:   ownerID,
			Currency:  "TND",
			Balance:   decimal.Zero,
			Status:    account.StatusCreated,
		}),
		accountEvent(t, accountID, account.EventTypeActivated, testNow, account.StatusPayload{
			AccountID: accountID,
			Status:    account.StatusActivated,
		}),
	}
}

func creditedEvent(t *testing.T, accountID, amount string, at time.Time) event.Event {
	t.Helper()
	return accountEvent(t, accountID, account.EventTypeCredited, at, account.MovementPayload{
		AccountID: accountID,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "TND",
	})
}
