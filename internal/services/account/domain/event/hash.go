package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// hashEnvelope is the field set covered by the content hash. Sequence and
// integrity fields are excluded so the hash can be computed before append.
type hashEnvelope struct {
	AccountID  string          `json:"account_id"`
	Type       string          `json:"type"`
	Timestamp  string          `json:"timestamp"`
	ActorType  string          `json:"actor_type"`
	ActorID    string          `json:"actor_id,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
}

type chainEnvelope struct {
	AccountID string `json:"account_id"`
	Seq       uint64 `json:"seq"`
	Hash      string `json:"hash"`
	PrevHash  string `json:"prev_hash"`
}

// EventHash computes the SHA-256 content hash of an event.
func EventHash(evt Event) (string, error) {
	if strings.TrimSpace(evt.AccountID) == "" {
		return "", ErrAccountIDRequired
	}
	payload := evt.PayloadJSON
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("canonical payload: %w", err)
	}
	return sha256Hex(hashEnvelope{
		AccountID:  evt.AccountID,
		Type:       string(evt.Type),
		Timestamp:  evt.Timestamp.UTC().Format(time.RFC3339Nano),
		ActorType:  string(evt.ActorType),
		ActorID:    evt.ActorID,
		RequestID:  evt.RequestID,
		EntityType: evt.EntityType,
		EntityID:   evt.EntityID,
		Payload:    canonical,
	})
}

// ChainHash computes the hash that links an event to its predecessor.
// The first event of an account chains to an empty previous hash.
func ChainHash(evt Event, prevHash string) (string, error) {
	if evt.Seq == 0 {
		return "", errors.New("event sequence is required for chain hash")
	}
	if strings.TrimSpace(evt.Hash) == "" {
		return "", errors.New("event hash is required for chain hash")
	}
	return sha256Hex(chainEnvelope{
		AccountID: evt.AccountID,
		Seq:       evt.Seq,
		Hash:      evt.Hash,
		PrevHash:  prevHash,
	})
}

func sha256Hex(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal hash envelope: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
