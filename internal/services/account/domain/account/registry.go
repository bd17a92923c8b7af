package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

// RegisterCommands registers account commands with the shared registry.
func RegisterCommands(registry *command.Registry) error {
	if registry == nil {
		return errors.New("command registry is required")
	}
	definitions := []command.Definition{
		{Type: CommandTypeCreate, ValidatePayload: validateCreatePayload},
		{Type: CommandTypeActivate},
		{Type: CommandTypeSuspend},
		{Type: CommandTypeCredit, ValidatePayload: validateAmountPayload},
		{Type: CommandTypeDebit, ValidatePayload: validateAmountPayload},
		{Type: CommandTypeDelete},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers account events with the shared registry.
func RegisterEvents(registry *event.Registry) error {
	if registry == nil {
		return errors.New("event registry is required")
	}
	definitions := []event.Definition{
		{Type: EventTypeCreated, ValidatePayload: validateCreatedPayload},
		{Type: EventTypeActivated, ValidatePayload: validateStatusPayload(StatusActivated)},
		{Type: EventTypeSuspended, ValidatePayload: validateStatusPayload(StatusSuspended)},
		{Type: EventTypeCredited, ValidatePayload: validateMovementPayload(true)},
		{Type: EventTypeDebited, ValidatePayload: validateMovementPayload(false)},
		{Type: EventTypeDeleted, ValidatePayload: validateDeletedPayload},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// EmittableEventTypes returns all event types the account decider can emit.
func EmittableEventTypes() []event.Type {
	return FoldHandledTypes()
}

func validateCreatePayload(raw json.RawMessage) error {
	var payload CreatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode create payload: %w", err)
	}
	if strings.TrimSpace(payload.OwnerID) == "" {
		return errors.New("owner_id is required")
	}
	if _, err := NormalizeCurrency(payload.Currency); err != nil {
		return err
	}
	return nil
}

func validateAmountPayload(raw json.RawMessage) error {
	var payload AmountPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode amount payload: %w", err)
	}
	return nil
}

func validateCreatedPayload(raw json.RawMessage) error {
	var payload CreatedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode created payload: %w", err)
	}
	if strings.TrimSpace(payload.AccountID) == "" {
		return errors.New("account_id is required")
	}
	if strings.TrimSpace(payload.OwnerID) == "" {
		return errors.New("owner_id is required")
	}
	if !payload.Balance.IsZero() {
		return errors.New("created balance must be zero")
	}
	if payload.Status != StatusCreated {
		return fmt.Errorf("created status must be %s", StatusCreated)
	}
	return nil
}

func validateStatusPayload(want Status) event.PayloadValidator {
	return func(raw json.RawMessage) error {
		var payload StatusPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("decode status payload: %w", err)
		}
		if strings.TrimSpace(payload.AccountID) == "" {
			return errors.New("account_id is required")
		}
		if payload.Status != want {
			return fmt.Errorf("status must be %s", want)
		}
		return nil
	}
}

// validateMovementPayload checks credited and debited payloads. Only credits
// require a positive amount; debit amounts are recorded as decided.
func validateMovementPayload(positiveAmount bool) event.PayloadValidator {
	return func(raw json.RawMessage) error {
		var payload MovementPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("decode movement payload: %w", err)
		}
		if strings.TrimSpace(payload.AccountID) == "" {
			return errors.New("account_id is required")
		}
		if positiveAmount && !payload.Amount.IsPositive() {
			return errors.New("amount must be greater than zero")
		}
		return nil
	}
}

func validateDeletedPayload(raw json.RawMessage) error {
	var payload DeletedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode deleted payload: %w", err)
	}
	if strings.TrimSpace(payload.AccountID) == "" {
		return errors.New("account_id is required")
	}
	return nil
}
