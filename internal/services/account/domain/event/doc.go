// Package event defines the canonical account event envelope and the event-type
// registry used by the write path.
//
// Events are immutable facts emitted by accepted decisions. They are the only
// input to aggregate replay and to the read-model projection, so the registry
// validates addressing, actor metadata and payload shape before persistence
// assigns sequence numbers and integrity fields.
package event
