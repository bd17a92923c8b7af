package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/ledger/internal/platform/errors"
	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrOwnerAlreadyHasAccount indicates an account row already exists for the owner.
var ErrOwnerAlreadyHasAccount = apperrors.New(apperrors.CodeOwnerAlreadyHasAccount, "owner already has an account")

// OperationType tags a balance movement in the read model.
type OperationType string

const (
	OperationCredit OperationType = "CREDIT"
	OperationDebit  OperationType = "DEBIT"
)

// AccountRecord is the read-model view of an account.
type AccountRecord struct {
	ID        string
	OwnerID   string
	Currency  string
	Balance   decimal.Decimal
	Status    account.Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OperationRecord is one credit or debit in the read model.
type OperationRecord struct {
	ID          string
	AccountID   string
	Type        OperationType
	Amount      decimal.Decimal
	Description string
	OccurredAt  time.Time
	Seq         uint64
	EventHash   string
}

// OperationPage is one page of an account's operations.
type OperationPage struct {
	Page          int
	Size          int
	TotalElements int
	Operations    []OperationRecord
}

// ProjectionWatermark tracks the highest contiguous applied seq per account.
type ProjectionWatermark struct {
	AccountID       string
	AppliedSeq      uint64
	ExpectedNextSeq uint64
	UpdatedAt       time.Time
}

// EventStore is the append-only journal that drives replay.
type EventStore interface {
	// AppendEvents atomically appends the events of one decision and returns
	// them with sequence and integrity fields set.
	AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error)
	// GetEventBySeq retrieves a specific event by sequence number.
	GetEventBySeq(ctx context.Context, accountID string, seq uint64) (event.Event, error)
	// ListEvents returns events ordered by sequence ascending.
	ListEvents(ctx context.Context, accountID string, afterSeq uint64, limit int) ([]event.Event, error)
	// LatestSeq returns the latest sequence of an account, 0 when it has none.
	LatestSeq(ctx context.Context, accountID string) (uint64, error)
}

// CounterStore increments the per-day identifier counter.
type CounterStore interface {
	Increment(ctx context.Context, day string, ceiling int64) (int64, error)
	Count(ctx context.Context, day string) (int64, error)
}

// AccountStore owns account rows of the read model.
type AccountStore interface {
	PutAccount(ctx context.Context, record AccountRecord) error
	GetAccount(ctx context.Context, id string) (AccountRecord, error)
	GetAccountByOwner(ctx context.Context, ownerID string) (AccountRecord, error)
	DeleteAccount(ctx context.Context, id string) error
}

// OperationStore owns operation rows of the read model.
type OperationStore interface {
	PutOperation(ctx context.Context, record OperationRecord) error
	GetOperation(ctx context.Context, id string) (OperationRecord, error)
	// ListOperations returns a page ordered by occurrence, then seq.
	ListOperations(ctx context.Context, accountID string, offset, limit int) ([]OperationRecord, int, error)
}

// ProjectionWatermarkStore persists apply progress per account.
type ProjectionWatermarkStore interface {
	GetProjectionWatermark(ctx context.Context, accountID string) (ProjectionWatermark, error)
	SaveProjectionWatermark(ctx context.Context, wm ProjectionWatermark) error
	ListProjectionWatermarks(ctx context.Context) ([]ProjectionWatermark, error)
}

// ProjectionStore groups the read-model stores written by the projection.
type ProjectionStore interface {
	AccountStore
	OperationStore
}
