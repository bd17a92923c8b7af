package projection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

// storeRequirement specifies which stores a handler depends on.
type storeRequirement uint8

const (
	needAccounts storeRequirement = 1 << iota
	needOperations
)

// handlerEntry declares the preconditions and apply function for one event type.
type handlerEntry struct {
	stores storeRequirement
	apply  func(Applier, context.Context, event.Event) error
}

// handlers maps each account event type to its handler entry.
var handlers = map[event.Type]handlerEntry{
	account.EventTypeCreated: {
		stores: needAccounts,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyAccountCreated(ctx, evt) },
	},
	account.EventTypeActivated: {
		stores: needAccounts,
		apply: func(a Applier, ctx context.Context, evt event.Event) error {
			return a.applyAccountStatus(ctx, evt, account.StatusActivated)
		},
	},
	account.EventTypeSuspended: {
		stores: needAccounts,
		apply: func(a Applier, ctx context.Context, evt event.Event) error {
			return a.applyAccountStatus(ctx, evt, account.StatusSuspended)
		},
	},
	account.EventTypeDeleted: {
		stores: needAccounts,
		apply:  func(a Applier, ctx context.Context, evt event.Event) error { return a.applyAccountDeleted(ctx, evt) },
	},
	account.EventTypeCredited: {
		stores: needAccounts | needOperations,
		apply: func(a Applier, ctx context.Context, evt event.Event) error {
			return a.applyMovement(ctx, evt, movementCredit)
		},
	},
	account.EventTypeDebited: {
		stores: needAccounts | needOperations,
		apply: func(a Applier, ctx context.Context, evt event.Event) error {
			return a.applyMovement(ctx, evt, movementDebit)
		},
	},
}

// ProjectionHandledTypes returns the sorted event types the applier handles.
func ProjectionHandledTypes() []event.Type {
	types := make([]event.Type, 0, len(handlers))
	for t := range handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return string(types[i]) < string(types[j])
	})
	return types
}

// validatePreconditions checks that the applier's stores and event envelope
// satisfy the handler's declared requirements.
func (a Applier) validatePreconditions(h handlerEntry, evt event.Event) error {
	if h.stores&needAccounts != 0 && a.Accounts == nil {
		return fmt.Errorf("account store is not configured")
	}
	if h.stores&needOperations != 0 && a.Operations == nil {
		return fmt.Errorf("operation store is not configured")
	}
	if strings.TrimSpace(evt.AccountID) == "" {
		return fmt.Errorf("account id is required")
	}
	return nil
}
