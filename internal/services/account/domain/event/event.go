package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event type string such as "account.credited".
type Type string

// ActorType identifies who caused the event.
type ActorType string

const (
	// ActorTypeSystem indicates an event emitted by the service itself.
	ActorTypeSystem ActorType = "system"
	// ActorTypeUser indicates an event caused by an API caller.
	ActorTypeUser ActorType = "user"
	// ActorTypeOperator indicates an event caused by a maintenance operator.
	ActorTypeOperator ActorType = "operator"
)

// Event is the canonical, append-only event envelope.
//
// Seq and the integrity fields are assigned by the journal at append time and
// are empty on events produced by a decider.
type Event struct {
	AccountID      string
	Seq            uint64
	Hash           string
	PrevHash       string
	ChainHash      string
	Signature      string
	SignatureKeyID string
	Type           Type
	Timestamp      time.Time
	ActorType      ActorType
	ActorID        string
	RequestID      string
	EntityType     string
	EntityID       string
	PayloadJSON    []byte
}

// DecodePayload unmarshals the event payload into target.
func DecodePayload[T any](evt Event) (T, error) {
	var payload T
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
