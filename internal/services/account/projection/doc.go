// Package projection builds the account read model from the event journal.
//
// Write-side decisions emit events; this package turns them into the account
// and operation rows served by the query layer. Every event is applied
// exactly once per (account, seq) through the projection store checkpoint
// table, so the inline apply and the outbox worker can both deliver the same
// event safely.
package projection
