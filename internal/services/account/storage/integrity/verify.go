package integrity

import (
	"errors"
	"fmt"

	"github.com/louisbranch/ledger/internal/services/account/domain/event"
)

// ErrChainBroken indicates a stored event does not match its recorded hashes
// or signature.
var ErrChainBroken = errors.New("event chain broken")

// Seal assigns hash, chain hash and signature to evt, linking it to the
// chain hash of its predecessor (empty for the first event).
func Seal(keyring *Keyring, evt event.Event, prevChainHash string) (event.Event, error) {
	hash, err := event.EventHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	evt.Hash = hash
	evt.PrevHash = prevChainHash
	chainHash, err := event.ChainHash(evt, prevChainHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	evt.ChainHash = chainHash
	signature, keyID, err := keyring.SignChainHash(evt.AccountID, chainHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("sign chain hash: %w", err)
	}
	evt.Signature = signature
	evt.SignatureKeyID = keyID
	return evt, nil
}

// Verifier checks events in sequence order, one account at a time.
type Verifier struct {
	keyring   *Keyring
	accountID string
	lastSeq   uint64
	prevChain string
}

// NewVerifier starts verifying an account chain from its first event.
func NewVerifier(keyring *Keyring, accountID string) *Verifier {
	return &Verifier{keyring: keyring, accountID: accountID}
}

// Next verifies the next event of the chain.
func (v *Verifier) Next(evt event.Event) error {
	if evt.AccountID != v.accountID {
		return fmt.Errorf("%w: seq %d belongs to account %s", ErrChainBroken, evt.Seq, evt.AccountID)
	}
	if evt.Seq != v.lastSeq+1 {
		return fmt.Errorf("%w: expected seq %d got %d", ErrChainBroken, v.lastSeq+1, evt.Seq)
	}
	hash, err := event.EventHash(evt)
	if err != nil {
		return fmt.Errorf("%w: seq %d: %v", ErrChainBroken, evt.Seq, err)
	}
	if hash != evt.Hash {
		return fmt.Errorf("%w: seq %d content hash mismatch", ErrChainBroken, evt.Seq)
	}
	if evt.PrevHash != v.prevChain {
		return fmt.Errorf("%w: seq %d prev hash mismatch", ErrChainBroken, evt.Seq)
	}
	chainHash, err := event.ChainHash(evt, v.prevChain)
	if err != nil {
		return fmt.Errorf("%w: seq %d: %v", ErrChainBroken, evt.Seq, err)
	}
	if chainHash != evt.ChainHash {
		return fmt.Errorf("%w: seq %d chain hash mismatch", ErrChainBroken, evt.Seq)
	}
	if err := v.keyring.VerifyChainHash(evt.AccountID, evt.ChainHash, evt.Signature, evt.SignatureKeyID); err != nil {
		return fmt.Errorf("%w: seq %d: %v", ErrChainBroken, evt.Seq, err)
	}
	v.lastSeq = evt.Seq
	v.prevChain = evt.ChainHash
	return nil
}

// LastSeq returns the last verified sequence number.
func (v *Verifier) LastSeq() uint64 {
	return v.lastSeq
}
