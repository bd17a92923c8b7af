package account

import "github.com/shopspring/decimal"

// CreatePayload captures the payload for account.create commands.
type CreatePayload struct {
	OwnerID  string `json:"owner_id"`
	Currency string `json:"currency"`
}

// CreatedPayload captures the payload for account.created events.
type CreatedPayload struct {
	AccountID string          `json:"account_id"`
	OwnerID   string          `json:"owner_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Status    Status          `json:"status"`
}

// StatusPayload captures the payload for account.activated and account.suspended events.
type StatusPayload struct {
	AccountID string `json:"account_id"`
	Status    Status `json:"status"`
}

// AmountPayload captures the payload for account.credit and account.debit commands.
type AmountPayload struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// MovementPayload captures the payload for account.credited and account.debited events.
type MovementPayload struct {
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
}

// DeletedPayload captures the payload for account.deleted events.
type DeletedPayload struct {
	AccountID string `json:"account_id"`
}
