package account

import (
	"fmt"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

// FoldHandledTypes returns the event types Fold applies to state.
func FoldHandledTypes() []event.Type {
	return []event.Type{
		EventTypeCreated,
		EventTypeActivated,
		EventTypeSuspended,
		EventTypeCredited,
		EventTypeDebited,
		EventTypeDeleted,
	}
}

// Fold applies an event to account state.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case EventTypeCreated:
		payload, err := event.DecodePayload[CreatedPayload](evt)
		if err != nil {
			return state, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		state.Created = true
		state.Deleted = false
		state.AccountID = payload.AccountID
		state.OwnerID = payload.OwnerID
		state.Currency = payload.Currency
		state.Balance = payload.Balance
		state.Status = payload.Status
		state.CreatedAt = evt.Timestamp
		state.UpdatedAt = evt.Timestamp
		return state, nil
	case EventTypeActivated:
		state.Status = StatusActivated
	case EventTypeSuspended:
		state.Status = StatusSuspended
	case EventTypeCredited, EventTypeDebited:
		payload, err := event.DecodePayload[MovementPayload](evt)
		if err != nil {
			return state, fmt.Errorf("decode %s payload: %w", evt.Type, err)
		}
		if evt.Type == EventTypeCredited {
			state.Balance = state.Balance.Add(payload.Amount)
		} else {
			state.Balance = state.Balance.Sub(payload.Amount)
		}
	case EventTypeDeleted:
		state.Deleted = true
		state.Status = StatusDeleted
	default:
		return state, nil
	}
	if evt.Timestamp.After(state.UpdatedAt) {
		state.UpdatedAt = evt.Timestamp
	}
	return state, nil
}
