package aggregate

import (
	"sync"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

// foldEntry maps a set of event types to the fold function that handles them.
type foldEntry struct {
	types func() []event.Type
	fold  func(state account.State, evt event.Event) (account.State, error)
}

// foldEntries returns the declarative fold dispatch table.
func foldEntries() []foldEntry {
	return []foldEntry{
		{types: account.FoldHandledTypes, fold: account.Fold},
	}
}

// Folder folds events into account state.
//
// Named "Folder" to keep pure state folds apart from projection.Applier, which
// writes to the read model.
type Folder struct {
	foldOnce  sync.Once
	foldIndex map[event.Type]func(account.State, event.Event) (account.State, error)
}

func (f *Folder) initFoldIndex() {
	f.foldOnce.Do(func() {
		f.foldIndex = make(map[event.Type]func(account.State, event.Event) (account.State, error))
		for _, entry := range foldEntries() {
			for _, t := range entry.types() {
				f.foldIndex[t] = entry.fold
			}
		}
	})
}

// FoldDispatchedTypes returns the event types wired into the fold index.
func (f *Folder) FoldDispatchedTypes() []event.Type {
	f.initFoldIndex()
	types := make([]event.Type, 0, len(f.foldIndex))
	for t := range f.foldIndex {
		types = append(types, t)
	}
	return types
}

// Fold applies a single event to aggregate state. Unknown event types leave
// state unchanged.
func (f *Folder) Fold(state any, evt event.Event) (any, error) {
	f.initFoldIndex()
	current, err := AssertState[account.State](state)
	if err != nil {
		return account.State{}, err
	}
	fn, ok := f.foldIndex[evt.Type]
	if !ok {
		return current, nil
	}
	return fn(current, evt)
}

// Decider routes commands to the account decider.
type Decider struct{}

// Decide returns the decision for a command against replayed state.
func (Decider) Decide(state any, cmd command.Command, now func() time.Time) command.Decision {
	current, err := AssertState[account.State](state)
	if err != nil {
		return command.Reject(command.Rejection{
			Code:    command.RejectionCodeCommandTypeUnsupported,
			Message: err.Error(),
		})
	}
	return account.Decide(current, cmd, now)
}
