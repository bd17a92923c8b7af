// Package id generates opaque identifiers for records that are not keyed by
// the daily account sequence, such as operations and request ids.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random UUIDv4 encoded as 26 lowercase base32 characters.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// NewRequestID returns a canonical UUID string for correlating a request
// across logs, events and traces.
func NewRequestID() string {
	return uuid.NewString()
}
