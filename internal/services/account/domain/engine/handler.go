package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/domain/replay"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/louisbranch/ledger/internal/services/account/domain/engine"

var (
	// ErrCommandRegistryRequired indicates a missing command registry.
	ErrCommandRegistryRequired = errors.New("command registry is required")
	// ErrDeciderRequired indicates a missing decider.
	ErrDeciderRequired = errors.New("decider is required")
	// ErrStateLoaderRequired indicates a missing state loader.
	ErrStateLoaderRequired = errors.New("state loader is required")
)

// StateLoader loads domain state for deciders.
type StateLoader interface {
	Load(ctx context.Context, cmd command.Command) (any, error)
}

// EventJournal appends events to the journal. All events of one decision are
// appended atomically: either every event gets a sequence number or none does.
type EventJournal interface {
	AppendEvents(ctx context.Context, events []event.Event) ([]event.Event, error)
}

// Decider returns a decision for a command.
type Decider interface {
	Decide(state any, cmd command.Command, now func() time.Time) command.Decision
}

// Handler validates, decides and persists commands.
type Handler struct {
	Commands    *command.Registry
	Events      *event.Registry
	Journal     EventJournal
	Snapshots   StateSnapshotStore
	StateLoader StateLoader
	Decider     Decider
	Folder      replay.Folder
	Now         func() time.Time
}

// Result captures execution outcomes.
type Result struct {
	Decision command.Decision
	State    any
}

// Execute handles a command and folds the emitted events into state.
//
// Callers must serialize Execute per account id; see KeyedLocker.
func (h Handler) Execute(ctx context.Context, cmd command.Command) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "account.command")
	defer span.End()

	result, err := h.execute(ctx, cmd)
	span.SetAttributes(
		attribute.String("account.id", cmd.AccountID),
		attribute.String("command.type", string(cmd.Type)),
		attribute.Int("decision.events", len(result.Decision.Events)),
		attribute.Int("decision.rejections", len(result.Decision.Rejections)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (h Handler) execute(ctx context.Context, cmd command.Command) (Result, error) {
	if h.Commands == nil {
		return Result{}, ErrCommandRegistryRequired
	}
	if h.Decider == nil {
		return Result{}, ErrDeciderRequired
	}
	if h.StateLoader == nil {
		return Result{}, ErrStateLoaderRequired
	}
	validated, err := h.Commands.ValidateForDecision(cmd)
	if err != nil {
		return Result{}, err
	}
	cmd = validated

	state, err := h.StateLoader.Load(ctx, cmd)
	if err != nil {
		return Result{}, fmt.Errorf("load state: %w", err)
	}

	now := h.Now
	if now == nil {
		now = time.Now
	}
	decision := h.Decider.Decide(state, cmd, now)
	if err := decision.Validate(); err != nil {
		return Result{}, fmt.Errorf("decide %s: %w", cmd.Type, err)
	}
	if len(decision.Rejections) > 0 {
		return Result{Decision: decision, State: state}, nil
	}

	if h.Events != nil {
		vetted := make([]event.Event, 0, len(decision.Events))
		for _, evt := range decision.Events {
			checked, err := h.Events.ValidateForAppend(evt)
			if err != nil {
				return Result{}, fmt.Errorf("validate %s: %w", evt.Type, err)
			}
			vetted = append(vetted, checked)
		}
		decision.Events = vetted
	}
	if h.Journal != nil {
		stored, err := h.Journal.AppendEvents(ctx, decision.Events)
		if err != nil {
			return Result{}, fmt.Errorf("append events: %w", err)
		}
		decision.Events = stored
	}

	// Events are durable from here on: failures must not invite a retry that
	// would append them twice.
	if h.Folder != nil {
		for _, evt := range decision.Events {
			state, err = h.Folder.Fold(state, evt)
			if err != nil {
				return Result{Decision: decision}, MarkNonRetryable(fmt.Errorf("fold %s: %w", evt.Type, err))
			}
		}
	}
	if h.Snapshots != nil {
		last := decision.Events[len(decision.Events)-1]
		if last.Seq > 0 {
			if err := h.Snapshots.SaveState(ctx, cmd.AccountID, last.Seq, state); err != nil {
				log.Printf("save snapshot %s@%d: %v", cmd.AccountID, last.Seq, err)
			}
		}
	}
	return Result{Decision: decision, State: state}, nil
}
