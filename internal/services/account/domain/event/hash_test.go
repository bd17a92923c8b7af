package event

import "testing"

func TestEventHashIgnoresPayloadKeyOrder(t *testing.T) {
	first := validEvent()
	first.PayloadJSON = []byte(`{"amount":"10","description":"deposit"}`)
	second := validEvent()
	second.PayloadJSON = []byte(`{"description": "deposit", "amount": "10"}`)

	a, err := EventHash(first)
	if err != nil {
		t.Fatalf("hash first: %v", err)
	}
	b, err := EventHash(second)
	if err != nil {
		t.Fatalf("hash second: %v", err)
	}
	if a != b {
		t.Fatalf("hashes differ: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64", len(a))
	}
}

func TestEventHashChangesWithPayload(t *testing.T) {
	first := validEvent()
	second := validEvent()
	second.PayloadJSON = []byte(`{"amount":"11"}`)

	a, _ := EventHash(first)
	b, _ := EventHash(second)
	if a == b {
		t.Fatal("expected different hashes for different payloads")
	}
}

func TestChainHashLinksPredecessor(t *testing.T) {
	evt := validEvent()
	evt.Seq = 2
	hash, err := EventHash(evt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	evt.Hash = hash

	a, err := ChainHash(evt, "prev-a")
	if err != nil {
		t.Fatalf("chain a: %v", err)
	}
	b, err := ChainHash(evt, "prev-b")
	if err != nil {
		t.Fatalf("chain b: %v", err)
	}
	if a == b {
		t.Fatal("expected chain hash to depend on previous hash")
	}
}

func TestChainHashRequiresSeqAndHash(t *testing.T) {
	evt := validEvent()
	if _, err := ChainHash(evt, ""); err == nil {
		t.Fatal("expected missing seq error")
	}
	evt.Seq = 1
	if _, err := ChainHash(evt, ""); err == nil {
		t.Fatal("expected missing hash error")
	}
}

func TestDecodePayload(t *testing.T) {
	type payload struct {
		Amount string `json:"amount"`
	}
	got, err := DecodePayload[payload](validEvent())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Amount != "10" {
		t.Fatalf("amount = %q, want 10", got.Amount)
	}
}
