// Package engine runs commands through the write path: validate, load state by
// replay, decide, validate emitted events, append them to the journal and fold
// them into the returned state.
//
// The engine holds no domain knowledge. The account aggregate plugs in through
// the Decider and replay.Folder interfaces, and storage plugs in through
// EventJournal and StateSnapshotStore.
package engine
