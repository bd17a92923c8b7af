package service

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/aggregate"
	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/engine"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

// Journal is the event store the engine reads and appends through.
type Journal interface {
	AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error)
	ListEvents(ctx context.Context, accountID string, afterSeq uint64, limit int) ([]event.Event, error)
	LatestSeq(ctx context.Context, accountID string) (uint64, error)
}

// Registries builds the command and event registries of the account domain.
func Registries() (*command.Registry, *event.Registry, error) {
	commands := command.NewRegistry()
	if err := account.RegisterCommands(commands); err != nil {
		return nil, nil, fmt.Errorf("register account commands: %w", err)
	}
	events := event.NewRegistry()
	if err := account.RegisterEvents(events); err != nil {
		return nil, nil, fmt.Errorf("register account events: %w", err)
	}
	return commands, events, nil
}

// NewHandler wires an engine handler over journal. snapshots may be nil.
func NewHandler(journal Journal, snapshots engine.StateSnapshotStore, now func() time.Time) (engine.Handler, error) {
	if journal == nil {
		return engine.Handler{}, fmt.Errorf("event journal is required")
	}
	commands, events, err := Registries()
	if err != nil {
		return engine.Handler{}, err
	}
	folder := &aggregate.Folder{}
	return engine.Handler{
		Commands:  commands,
		Events:    events,
		Journal:   journal,
		Snapshots: snapshots,
		StateLoader: engine.ReplayStateLoader{
			Events:       journal,
			Snapshots:    snapshots,
			Folder:       folder,
			StateFactory: aggregate.NewState,
		},
		Decider: aggregate.Decider{},
		Folder:  folder,
		Now:     now,
	}, nil
}
