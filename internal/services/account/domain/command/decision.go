package command

import (
	"errors"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

// Shared rejection codes used by every decider.
const (
	RejectionCodePayloadDecodeFailed    = "PAYLOAD_DECODE_FAILED"
	RejectionCodeCommandTypeUnsupported = "COMMAND_TYPE_UNSUPPORTED"
)

// Decision represents the pure outcome of handling a command.
type Decision struct {
	Events     []event.Event
	Rejections []Rejection
}

// Rejection captures a domain-level reason a command was declined.
type Rejection struct {
	Code    string
	Message string
}

// Accept returns a decision that emits the provided events.
func Accept(events ...event.Event) Decision {
	return Decision{Events: append([]event.Event(nil), events...)}
}

// Reject returns a decision that carries the provided rejections.
func Reject(rejections ...Rejection) Decision {
	return Decision{Rejections: append([]Rejection(nil), rejections...)}
}

// Validate reports whether the decision is either an acceptance or a rejection.
func (d Decision) Validate() error {
	switch {
	case len(d.Events) == 0 && len(d.Rejections) == 0:
		return errors.New("decision must emit events or rejections")
	case len(d.Events) > 0 && len(d.Rejections) > 0:
		return errors.New("decision cannot emit both events and rejections")
	default:
		return nil
	}
}

// NewEvent builds an event by copying the shared envelope fields from a
// command. Callers supply the event type, entity addressing, payload and time.
func NewEvent(cmd Command, eventType event.Type, entityType, entityID string, payloadJSON []byte, now time.Time) event.Event {
	return event.Event{
		AccountID:   cmd.AccountID,
		Type:        eventType,
		Timestamp:   now,
		ActorType:   event.ActorType(cmd.ActorType),
		ActorID:     cmd.ActorID,
		RequestID:   cmd.RequestID,
		EntityType:  entityType,
		EntityID:    entityID,
		PayloadJSON: payloadJSON,
	}
}
