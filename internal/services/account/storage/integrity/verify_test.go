package integrity

import (
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

func testKeyring(t *testing.T) *Keyring {
	t.Helper()
	ring, err := NewKeyring(map[string][]byte{"v1": []byte("secret")}, "v1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	return ring
}

func sealedChain(t *testing.T, ring *Keyring, n int) []event.Event {
	t.Helper()
	var (
		out  []event.Event
		prev string
	)
	for i := 1; i <= n; i++ {
		evt := event.Event{
			AccountID:   "2026021400000001",
			Seq:         uint64(i),
			Type:        "account.credited",
			Timestamp:   time.Date(2026, 2, 14, 9, i, 0, 0, time.UTC),
			ActorType:   event.ActorTypeSystem,
			EntityType:  "account",
			EntityID:    "2026021400000001",
			PayloadJSON: []byte(`{"amount":"10"}`),
		}
		sealed, err := Seal(ring, evt, prev)
		if err != nil {
			t.Fatalf("seal %d: %v", i, err)
		}
		prev = sealed.ChainHash
		out = append(out, sealed)
	}
	return out
}

func TestVerifierAcceptsSealedChain(t *testing.T) {
	ring := testKeyring(t)
	v := NewVerifier(ring, "2026021400000001")
	for _, evt := range sealedChain(t, ring, 3) {
		if err := v.Next(evt); err != nil {
			t.Fatalf("verify seq %d: %v", evt.Seq, err)
		}
	}
	if v.LastSeq() != 3 {
		t.Fatalf("last seq = %d, want 3", v.LastSeq())
	}
}

func TestVerifierDetectsTampering(t *testing.T) {
	ring := testKeyring(t)
	tests := map[string]func([]event.Event){
		"payload":   func(events []event.Event) { events[1].PayloadJSON = []byte(`{"amount":"1000"}`) },
		"prev hash": func(events []event.Event) { events[1].PrevHash = "x" },
		"signature": func(events []event.Event) { events[1].Signature = "00" },
		"gap":       func(events []event.Event) { events[1].Seq = 5 },
	}
	for name, tamper := range tests {
		t.Run(name, func(t *testing.T) {
			events := sealedChain(t, ring, 3)
			tamper(events)
			v := NewVerifier(ring, "2026021400000001")
			var err error
			for _, evt := range events {
				if err = v.Next(evt); err != nil {
					break
				}
			}
			if !errors.Is(err, ErrChainBroken) {
				t.Fatalf("err = %v, want %v", err, ErrChainBroken)
			}
		})
	}
}
