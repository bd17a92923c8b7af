// Package command defines the command envelope, the command-type registry and
// the Decision value returned by deciders.
//
// Commands are requests to change an account. They are validated against the
// registry, decided against replayed state, and discarded; only the events a
// decision emits are durable.
package command
