// Package integrity signs and verifies the account event journal's hash
// chain. Each event's chain hash is signed with an HMAC key derived per
// account from a rotating root keyring.
package integrity
