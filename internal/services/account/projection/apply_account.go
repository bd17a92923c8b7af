package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/engine"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/storage"
)

type movement struct {
	operation storage.OperationType
	name      string
}

var (
	movementCredit = movement{operation: storage.OperationCredit, name: "account.credited"}
	movementDebit  = movement{operation: storage.OperationDebit, name: "account.debited"}
)

func (a Applier) applyAccountCreated(ctx context.Context, evt event.Event) error {
	var payload account.CreatedPayload
	if err := decodePayload(evt.PayloadJSON, &payload, "account.created"); err != nil {
		return err
	}
	existing, err := a.Accounts.GetAccountByOwner(ctx, payload.OwnerID)
	switch {
	case err == nil && existing.ID != evt.AccountID:
		return engine.MarkNonRetryable(fmt.Errorf("owner %s: %w", payload.OwnerID, ErrOwnerAlreadyHasAccount))
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("lookup owner account: %w", err)
	}
	createdAt := ensureTimestamp(evt.Timestamp)
	err = a.Accounts.PutAccount(ctx, storage.AccountRecord{
		ID:        evt.AccountID,
		OwnerID:   payload.OwnerID,
		Currency:  payload.Currency,
		Balance:   payload.Balance,
		Status:    payload.Status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
	if errors.Is(err, storage.ErrOwnerAlreadyHasAccount) {
		return engine.MarkNonRetryable(fmt.Errorf("owner %s: %w", payload.OwnerID, ErrOwnerAlreadyHasAccount))
	}
	return err
}

func (a Applier) applyAccountStatus(ctx context.Context, evt event.Event, status account.Status) error {
	var payload account.StatusPayload
	if err := decodePayload(evt.PayloadJSON, &payload, string(evt.Type)); err != nil {
		return err
	}
	record, err := a.loadAccount(ctx, evt.AccountID)
	if err != nil {
		return err
	}
	record.Status = status
	record.UpdatedAt = ensureTimestamp(evt.Timestamp)
	return a.Accounts.PutAccount(ctx, record)
}

func (a Applier) applyAccountDeleted(ctx context.Context, evt event.Event) error {
	var payload account.DeletedPayload
	if err := decodePayload(evt.PayloadJSON, &payload, "account.deleted"); err != nil {
		return err
	}
	return a.Accounts.DeleteAccount(ctx, evt.AccountID)
}

func (a Applier) applyMovement(ctx context.Context, evt event.Event, m movement) error {
	var payload account.MovementPayload
	if err := decodePayload(evt.PayloadJSON, &payload, m.name); err != nil {
		return err
	}
	record, err := a.loadAccount(ctx, evt.AccountID)
	if err != nil {
		return err
	}
	if record.Status != account.StatusActivated {
		return engine.MarkNonRetryable(fmt.Errorf("account %s is %s: %w", record.ID, record.Status, ErrAccountNotActivated))
	}
	occurredAt := ensureTimestamp(evt.Timestamp)
	if m.operation == storage.OperationCredit {
		record.Balance = record.Balance.Add(payload.Amount)
	} else {
		record.Balance = record.Balance.Sub(payload.Amount)
	}
	record.UpdatedAt = occurredAt
	if err := a.Accounts.PutAccount(ctx, record); err != nil {
		return err
	}
	operationID, err := a.newID()
	if err != nil {
		return fmt.Errorf("generate operation id: %w", err)
	}
	return a.Operations.PutOperation(ctx, storage.OperationRecord{
		ID:          operationID,
		AccountID:   record.ID,
		Type:        m.operation,
		Amount:      payload.Amount,
		Description: payload.Description,
		OccurredAt:  occurredAt,
		Seq:         evt.Seq,
		EventHash:   evt.Hash,
	})
}

func (a Applier) loadAccount(ctx context.Context, accountID string) (storage.AccountRecord, error) {
	record, err := a.Accounts.GetAccount(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.AccountRecord{}, fmt.Errorf("account %s: %w", accountID, ErrAccountNotFound)
	}
	if err != nil {
		return storage.AccountRecord{}, fmt.Errorf("get account %s: %w", accountID, err)
	}
	return record, nil
}
