// Package aggregate adapts the account domain to the engine's state-agnostic
// interfaces: a Folder for replay and a Decider for command handling.
package aggregate
