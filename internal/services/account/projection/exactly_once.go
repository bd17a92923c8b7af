package projection

import (
	"context"
	"fmt"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	storagesqlite "github.com/louisbranch/ledger/internal/services/account/storage/sqlite"
)

// ExactlyOnce applies events through the projection store's per-(account, seq)
// checkpoint so redelivered events are skipped.
type ExactlyOnce struct {
	Store *storagesqlite.Store
	// NewID issues operation ids. Defaults to id.NewID.
	NewID func() (string, error)
}

// Apply applies evt unless it was already applied. It reports whether the
// projection changed.
func (e ExactlyOnce) Apply(ctx context.Context, evt event.Event) (bool, error) {
	if e.Store == nil {
		return false, fmt.Errorf("projection store is not configured")
	}
	return e.Store.ApplyProjectionEventExactlyOnce(
		ctx,
		evt,
		func(applyCtx context.Context, applyEvt event.Event, txStore *storagesqlite.Store) error {
			txApplier := Applier{
				Accounts:   txStore,
				Operations: txStore,
				NewID:      e.NewID,
			}
			return txApplier.Apply(applyCtx, applyEvt)
		},
	)
}

// ApplyFunc adapts Apply to the outbox worker callback shape.
func (e ExactlyOnce) ApplyFunc() func(context.Context, event.Event) error {
	return func(ctx context.Context, evt event.Event) error {
		_, err := e.Apply(ctx, evt)
		return err
	}
}
