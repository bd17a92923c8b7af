// Package storage defines the persistence contracts of the account service:
// the event journal that is the source of truth, the read model built from it,
// and the day counters behind account identifiers.
//
// Concrete backends live in subpackages: sqlite for events and projections,
// bbolt for replay snapshots and postgres for an optional shared counter.
package storage
