// Package service exposes the account write side to transports.
//
// Commands resolves owners and identifiers, serializes work per account,
// runs the engine and applies the resulting events to the projection inline.
// Anything the inline apply leaves behind is picked up by the outbox worker.
package service
