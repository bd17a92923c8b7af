package account

import (
	"errors"
	"testing"

	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

func TestRegisterCommandsAndEvents(t *testing.T) {
	commands := command.NewRegistry()
	if err := RegisterCommands(commands); err != nil {
		t.Fatalf("register commands: %v", err)
	}
	if len(commands.ListDefinitions()) != 6 {
		t.Fatalf("commands = %d, want 6", len(commands.ListDefinitions()))
	}
	events := event.NewRegistry()
	if err := RegisterEvents(events); err != nil {
		t.Fatalf("register events: %v", err)
	}
	for _, typ := range EmittableEventTypes() {
		if _, ok := events.Definition(typ); !ok {
			t.Fatalf("event %s not registered", typ)
		}
	}
	if err := RegisterCommands(nil); err == nil {
		t.Fatal("expected nil registry error")
	}
}

func TestCommandRegistryValidatesCreatePayload(t *testing.T) {
	commands := command.NewRegistry()
	if err := RegisterCommands(commands); err != nil {
		t.Fatalf("register commands: %v", err)
	}

	if _, err := commands.ValidateForDecision(createCommand(t, "acc", "C1", "TND")); err != nil {
		t.Fatalf("valid create rejected: %v", err)
	}
	if _, err := commands.ValidateForDecision(createCommand(t, "acc", "", "TND")); err == nil {
		t.Fatal("expected missing owner error")
	}
	if _, err := commands.ValidateForDecision(createCommand(t, "acc", "C1", "NOPE")); err == nil {
		t.Fatal("expected invalid currency error")
	}
	_, err := commands.ValidateForDecision(command.Command{AccountID: "acc", Type: CommandTypeCredit, PayloadJSON: []byte(`{"amount":"x"}`)})
	if err == nil {
		t.Fatal("expected malformed amount error")
	}
}

func TestEventRegistryAcceptsDecidedEvents(t *testing.T) {
	events := event.NewRegistry()
	if err := RegisterEvents(events); err != nil {
		t.Fatalf("register events: %v", err)
	}
	emitted := history(t,
		createCommand(t, "acc", "C1", "TND"),
		amountCommand(t, CommandTypeCredit, "acc", "10", "deposit"),
		amountCommand(t, CommandTypeDebit, "acc", "3", "fee"),
		command.Command{AccountID: "acc", Type: CommandTypeSuspend},
		command.Command{AccountID: "acc", Type: CommandTypeDelete},
	)
	for _, evt := range emitted {
		if _, err := events.ValidateForAppend(evt); err != nil {
			t.Fatalf("validate %s: %v", evt.Type, err)
		}
	}

	bad := emitted[0]
	bad.PayloadJSON = []byte(`{"account_id":"acc","owner_id":"C1","currency":"TND","balance":"5","status":"CREATED"}`)
	if _, err := events.ValidateForAppend(bad); err == nil || errors.Is(err, event.ErrPayloadInvalid) {
		t.Fatalf("expected validator error for non-zero created balance, got %v", err)
	}
}

func TestEventRegistryMovementAmounts(t *testing.T) {
	events := event.NewRegistry()
	if err := RegisterEvents(events); err != nil {
		t.Fatalf("register events: %v", err)
	}
	emitted := history(t,
		createCommand(t, "acc", "C1", "TND"),
		amountCommand(t, CommandTypeDebit, "acc", "-5", "reversal"),
	)
	debited := emitted[len(emitted)-1]
	if debited.Type != EventTypeDebited {
		t.Fatalf("last event = %s, want %s", debited.Type, EventTypeDebited)
	}
	if _, err := events.ValidateForAppend(debited); err != nil {
		t.Fatalf("validate negative debit: %v", err)
	}

	credited := debited
	credited.Type = EventTypeCredited
	if _, err := events.ValidateForAppend(credited); err == nil {
		t.Fatal("expected non-positive credited amount to be rejected")
	}
}

func TestNormalizeCurrency(t *testing.T) {
	got, err := NormalizeCurrency(" tnd ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "TND" {
		t.Fatalf("currency = %q, want TND", got)
	}
	if _, err := NormalizeCurrency(""); err == nil {
		t.Fatal("expected empty currency error")
	}
}
