package integrity

import (
	"fmt"
	"os"
	"strings"
)

const (
	envHMACKeys  = "ACCOUNT_EVENT_HMAC_KEYS"
	envHMACKey   = "ACCOUNT_EVENT_HMAC_KEY"
	envHMACKeyID = "ACCOUNT_EVENT_HMAC_KEY_ID"
	defaultKeyID = "v1"
)

// KeyringFromEnv loads the HMAC keyring configuration from environment variables.
func KeyringFromEnv() (*Keyring, error) {
	return KeyringFromSpec(os.Getenv(envHMACKeys), os.Getenv(envHMACKey), os.Getenv(envHMACKeyID))
}

// KeyringFromSpec builds a keyring from a comma separated "id=secret" list,
// falling back to a single secret registered under keyID.
func KeyringFromSpec(keySpec, singleKey, keyID string) (*Keyring, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		keyID = defaultKeyID
	}

	keySpec = strings.TrimSpace(keySpec)
	if keySpec == "" {
		raw := strings.TrimSpace(singleKey)
		if raw == "" {
			return nil, fmt.Errorf("%s is required", envHMACKey)
		}
		return NewKeyring(map[string][]byte{keyID: []byte(raw)}, keyID)
	}

	keys := make(map[string][]byte)
	for _, entry := range strings.Split(keySpec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		value = strings.TrimSpace(value)
		if !ok || id == "" || value == "" {
			return nil, fmt.Errorf("invalid %s entry", envHMACKeys)
		}
		keys[id] = []byte(value)
	}
	return NewKeyring(keys, keyID)
}
