// Package cryptox provides helpers for the shared webhook secret.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DefaultSecretBytes is the length of a derived webhook secret before hex
// encoding.
const DefaultSecretBytes = 32

var ErrNoKeyMaterial = errors.New("no key material")

const webhookSalt = "uploadvault webhook secret v1"

// DeriveSecret derives a hex secret from key and label with HKDF-SHA256.
// Every process holding the same key material derives the same secret for
// the same label.
func DeriveSecret(key []byte, label string) (string, error) {
	if len(key) == 0 {
		return "", ErrNoKeyMaterial
	}
	b := make([]byte, DefaultSecretBytes)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, []byte(webhookSalt), []byte(label)), b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SecretsEqual compares two secrets in constant time.
func SecretsEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
