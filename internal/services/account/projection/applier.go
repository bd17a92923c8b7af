package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/ledger/internal/platform/id"
	"github.com/louisbranch/ledger/internal/services/account/domain/engine"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/storage"
)

// Applier applies journal events to the read-model stores.
type Applier struct {
	// Accounts writes account rows.
	Accounts storage.AccountStore
	// Operations writes credit and debit rows.
	Operations storage.OperationStore
	// NewID issues operation ids. Defaults to id.NewID.
	NewID func() (string, error)
}

// Apply routes one event to its projection handler.
func (a Applier) Apply(ctx context.Context, evt event.Event) error {
	h, ok := handlers[evt.Type]
	if !ok {
		return engine.MarkNonRetryable(fmt.Errorf("unhandled projection event type: %s", evt.Type))
	}
	if err := a.validatePreconditions(h, evt); err != nil {
		return err
	}
	return h.apply(a, ctx, evt)
}

func (a Applier) newID() (string, error) {
	if a.NewID != nil {
		return a.NewID()
	}
	return id.NewID()
}

// ensureTimestamp normalizes timestamps so projections always persist UTC.
func ensureTimestamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}

// decodePayload decodes a payload and marks decode failures as terminal.
func decodePayload(raw []byte, target any, name string) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return engine.MarkNonRetryable(fmt.Errorf("decode %s payload: %w", name, err))
	}
	return nil
}
