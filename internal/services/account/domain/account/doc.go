// Package account implements the bank account aggregate: the commands it
// accepts, the events it emits and the fold that rebuilds its state.
//
// Decide and Fold are pure. Decide never mutates state; Fold is the only code
// allowed to move a balance, and it only does so for credited and debited
// events. Replaying the same ordered history always yields the same State.
package account
