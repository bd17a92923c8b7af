package account

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

const (
	CommandTypeCreate   command.Type = "account.create"
	CommandTypeActivate command.Type = "account.activate"
	CommandTypeSuspend  command.Type = "account.suspend"
	CommandTypeCredit   command.Type = "account.credit"
	CommandTypeDebit    command.Type = "account.debit"
	CommandTypeDelete   command.Type = "account.delete"

	EventTypeCreated   event.Type = "account.created"
	EventTypeActivated event.Type = "account.activated"
	EventTypeSuspended event.Type = "account.suspended"
	EventTypeCredited  event.Type = "account.credited"
	EventTypeDebited   event.Type = "account.debited"
	EventTypeDeleted   event.Type = "account.deleted"

	entityTypeAccount = "account"
)

// Rejection codes share their values with the platform error codes so the
// command service can surface them without a translation table.
const (
	RejectionCodeAccountAlreadyExists = "ACCOUNT_ALREADY_EXISTS"
	RejectionCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	RejectionCodeAccountDeleted       = "ACCOUNT_DELETED"
	RejectionCodeOwnerRequired        = "INVALID_ARGUMENT"
	RejectionCodeInvalidCurrency      = "INVALID_CURRENCY"
	RejectionCodeInvalidAmount        = "INVALID_AMOUNT"
	RejectionCodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
)

// Decide returns the decision for an account command against current state.
func Decide(state State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	if cmd.Type == CommandTypeCreate {
		return decideCreate(state, cmd, now().UTC())
	}
	if !state.Created {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeAccountNotFound,
			Message: "account not found",
		})
	}
	if state.Deleted {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeAccountDeleted,
			Message: "account is deleted",
		})
	}

	switch cmd.Type {
	case CommandTypeActivate:
		return acceptStatus(state, cmd, EventTypeActivated, StatusActivated, now().UTC())
	case CommandTypeSuspend:
		return acceptStatus(state, cmd, EventTypeSuspended, StatusSuspended, now().UTC())
	case CommandTypeCredit:
		return decideCredit(state, cmd, now().UTC())
	case CommandTypeDebit:
		return decideDebit(state, cmd, now().UTC())
	case CommandTypeDelete:
		payloadJSON, _ := json.Marshal(DeletedPayload{AccountID: state.AccountID})
		return command.Accept(command.NewEvent(cmd, EventTypeDeleted, entityTypeAccount, state.AccountID, payloadJSON, now().UTC()))
	default:
		return command.Reject(command.Rejection{
			Code:    command.RejectionCodeCommandTypeUnsupported,
			Message: "command type " + string(cmd.Type) + " is not supported by account decider",
		})
	}
}

// decideCreate emits created followed by activated: accounts never rest in
// CREATED once the command returns.
func decideCreate(state State, cmd command.Command, at time.Time) command.Decision {
	if state.Created {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeAccountAlreadyExists,
			Message: "account already exists",
		})
	}
	var payload CreatePayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return payloadDecodeRejection(err)
	}
	ownerID := strings.TrimSpace(payload.OwnerID)
	if ownerID == "" {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeOwnerRequired,
			Message: "owner id is required",
		})
	}
	currency, err := NormalizeCurrency(payload.Currency)
	if err != nil {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeInvalidCurrency,
			Message: err.Error(),
		})
	}

	createdJSON, _ := json.Marshal(CreatedPayload{
		AccountID: cmd.AccountID,
		OwnerID:   ownerID,
		Currency:  currency,
		Balance:   zero,
		Status:    StatusCreated,
	})
	activatedJSON, _ := json.Marshal(StatusPayload{AccountID: cmd.AccountID, Status: StatusActivated})

	return command.Accept(
		command.NewEvent(cmd, EventTypeCreated, entityTypeAccount, cmd.AccountID, createdJSON, at),
		command.NewEvent(cmd, EventTypeActivated, entityTypeAccount, cmd.AccountID, activatedJSON, at),
	)
}

func acceptStatus(state State, cmd command.Command, eventType event.Type, status Status, at time.Time) command.Decision {
	payloadJSON, _ := json.Marshal(StatusPayload{AccountID: state.AccountID, Status: status})
	return command.Accept(command.NewEvent(cmd, eventType, entityTypeAccount, state.AccountID, payloadJSON, at))
}

func decideCredit(state State, cmd command.Command, at time.Time) command.Decision {
	var payload AmountPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return payloadDecodeRejection(err)
	}
	if !payload.Amount.IsPositive() {
		return invalidAmountRejection()
	}
	return acceptMovement(state, cmd, EventTypeCredited, payload, at)
}

// decideDebit only blocks a debit when the balance is positive and smaller
// than the amount. A zero or negative balance does not block, and the amount
// itself is not range checked.
func decideDebit(state State, cmd command.Command, at time.Time) command.Decision {
	var payload AmountPayload
	if err := json.Unmarshal(cmd.PayloadJSON, &payload); err != nil {
		return payloadDecodeRejection(err)
	}
	if state.Balance.IsPositive() && state.Balance.LessThan(payload.Amount) {
		return command.Reject(command.Rejection{
			Code:    RejectionCodeInsufficientBalance,
			Message: "insufficient balance: " + state.Balance.String() + " < " + payload.Amount.String(),
		})
	}
	return acceptMovement(state, cmd, EventTypeDebited, payload, at)
}

func acceptMovement(state State, cmd command.Command, eventType event.Type, payload AmountPayload, at time.Time) command.Decision {
	payloadJSON, _ := json.Marshal(MovementPayload{
		AccountID:   state.AccountID,
		Amount:      payload.Amount,
		Currency:    state.Currency,
		Description: strings.TrimSpace(payload.Description),
	})
	return command.Accept(command.NewEvent(cmd, eventType, entityTypeAccount, state.AccountID, payloadJSON, at))
}

func invalidAmountRejection() command.Decision {
	return command.Reject(command.Rejection{
		Code:    RejectionCodeInvalidAmount,
		Message: "amount must be greater than zero",
	})
}

func payloadDecodeRejection(err error) command.Decision {
	return command.Reject(command.Rejection{
		Code:    command.RejectionCodePayloadDecodeFailed,
		Message: "decode payload: " + err.Error(),
	})
}
