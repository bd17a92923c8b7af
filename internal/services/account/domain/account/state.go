package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle status of an account.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusActivated Status = "ACTIVATED"
	StatusSuspended Status = "SUSPENDED"
	StatusDeleted   Status = "DELETED"
)

// State captures account facts derived from domain events.
type State struct {
	Created   bool            `json:"created"`
	Deleted   bool            `json:"deleted"`
	AccountID string          `json:"account_id"`
	OwnerID   string          `json:"owner_id"`
	Currency  string          `json:"currency"`
	Status    Status          `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Equal reports whether two states describe the same account facts.
func (s State) Equal(other State) bool {
	return s.Created == other.Created &&
		s.Deleted == other.Deleted &&
		s.AccountID == other.AccountID &&
		s.OwnerID == other.OwnerID &&
		s.Currency == other.Currency &&
		s.Status == other.Status &&
		s.Balance.Equal(other.Balance) &&
		s.CreatedAt.Equal(other.CreatedAt) &&
		s.UpdatedAt.Equal(other.UpdatedAt)
}
