// Package sqlite implements the account service storage contracts on SQLite.
//
// Two databases are used. The events database holds the journal, the
// projection-apply outbox and the identifier day counters, so an append and its
// outbox rows commit together. The projections database holds the read model
// together with the apply checkpoints that make projection delivery idempotent.
package sqlite
