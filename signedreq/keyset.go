package signedreq

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"

	"filippo.io/edwards25519"
)

// base64Strict is the standard padded alphabet. Non-canonical trailing bits
// are rejected so every key and signature has exactly one textual form.
var base64Strict = base64.StdEncoding.Strict()

// KeySet is an immutable mapping from key id to Ed25519 public key.
// It is safe for concurrent use; nothing mutates it after ParseKeySet returns.
type KeySet struct {
	keys map[string]ed25519.PublicKey
}

// ParseKeySet builds a KeySet from entries in the "<keyId>:<base64-public-key>"
// format. The entry is split on the first colon and the remainder must decode
// to a 32-byte Ed25519 point. Any malformed entry fails the whole set.
func ParseKeySet(entries []string) (*KeySet, error) {
	keys := make(map[string]ed25519.PublicKey, len(entries))

	for i, entry := range entries {
		keyID, key, err := parseKeyEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		if _, ok := keys[keyID]; ok {
			return nil, fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrDuplicateKeyID, keyID)
		}

		keys[keyID] = key
	}

	return &KeySet{keys: keys}, nil
}

// NewKeySet builds a KeySet from already decoded keys. The map is copied.
func NewKeySet(keys map[string]ed25519.PublicKey) (*KeySet, error) {
	cloned := make(map[string]ed25519.PublicKey, len(keys))

	for keyID, key := range keys {
		if keyID == "" {
			return nil, fmt.Errorf("%w: %w: empty key id", ErrInvalidConfig, ErrInvalidKeyEntry)
		}

		if err := validatePublicKey(key); err != nil {
			return nil, fmt.Errorf("%w: %w: key %q: %w", ErrInvalidConfig, ErrInvalidKeyEntry, keyID, err)
		}

		cloned[keyID] = slices.Clone(key)
	}

	return &KeySet{keys: cloned}, nil
}

func parseKeyEntry(entry string) (string, ed25519.PublicKey, error) {
	keyID, encoded, ok := strings.Cut(entry, ":")
	if !ok {
		return "", nil, fmt.Errorf("%w: %w: use <id>:<base64> format", ErrInvalidConfig, ErrInvalidKeyEntry)
	}

	if keyID == "" {
		return "", nil, fmt.Errorf("%w: %w: empty key id", ErrInvalidConfig, ErrInvalidKeyEntry)
	}

	raw, err := base64Strict.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w: key %q: invalid base64: %w", ErrInvalidConfig, ErrInvalidKeyEntry, keyID, err)
	}

	key := ed25519.PublicKey(raw)
	if err := validatePublicKey(key); err != nil {
		return "", nil, fmt.Errorf("%w: %w: key %q: %w", ErrInvalidConfig, ErrInvalidKeyEntry, keyID, err)
	}

	return keyID, key, nil
}

// validatePublicKey checks the length and that the bytes decode to a point
// on the curve.
func validatePublicKey(key ed25519.PublicKey) error {
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("ed25519 public keys must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}

	if _, err := new(edwards25519.Point).SetBytes(key); err != nil {
		return fmt.Errorf("invalid ed25519 public key: %w", err)
	}

	return nil
}

// Lookup returns the public key registered under keyID.
func (s *KeySet) Lookup(keyID string) (ed25519.PublicKey, bool) {
	if s == nil {
		return nil, false
	}

	key, ok := s.keys[keyID]

	return key, ok
}

// Len returns the number of registered keys.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}

	return len(s.keys)
}

// KeyIDs returns the registered key ids in sorted order.
func (s *KeySet) KeyIDs() []string {
	if s == nil {
		return nil
	}

	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}
