package aggregate

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

func TestFolderDispatchesEveryFoldHandledType(t *testing.T) {
	folder := &Folder{}
	got := folder.FoldDispatchedTypes()
	want := account.FoldHandledTypes()
	if len(got) != len(want) {
		t.Fatalf("dispatched = %d, want %d", len(got), len(want))
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("dispatched[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFolderAndDeciderRoundTrip(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC) }
	payload, _ := json.Marshal(account.CreatePayload{OwnerID: "C1", Currency: "TND"})
	decision := Decider{}.Decide(NewState(), command.Command{AccountID: "acc-1", Type: account.CommandTypeCreate, PayloadJSON: payload}, now)
	if len(decision.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(decision.Events))
	}

	folder := &Folder{}
	var state any
	for _, evt := range decision.Events {
		next, err := folder.Fold(state, evt)
		if err != nil {
			t.Fatalf("fold: %v", err)
		}
		state = next
	}
	current, err := AssertState[account.State](state)
	if err != nil {
		t.Fatalf("assert: %v", err)
	}
	if current.Status != account.StatusActivated {
		t.Fatalf("status = %s, want %s", current.Status, account.StatusActivated)
	}
}

func TestFolderIgnoresUnknownEvent(t *testing.T) {
	folder := &Folder{}
	state := account.State{Created: true, AccountID: "acc-1"}
	next, err := folder.Fold(&state, event.Event{Type: "ledger.noted"})
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if next.(account.State).AccountID != "acc-1" {
		t.Fatalf("state = %+v", next)
	}
}

func TestAssertStateRejectsForeignType(t *testing.T) {
	if _, err := AssertState[account.State]("nope"); err == nil {
		t.Fatal("expected unsupported type error")
	}
	if _, err := (&Folder{}).Fold(42, event.Event{}); err == nil {
		t.Fatal("expected fold error for foreign state")
	}
	decision := Decider{}.Decide(42, command.Command{Type: account.CommandTypeCredit}, nil)
	if len(decision.Rejections) != 1 {
		t.Fatalf("rejections = %d, want 1", len(decision.Rejections))
	}
}
