// Package vault implements the credential vault primitives: salted
// password-based key derivation and authenticated symmetric encryption of
// stored secrets. Both are pure functions with no shared state; derived
// keys are ephemeral and must not be reused across records.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the required salt length in bytes.
	SaltSize = 16

	// KeySize matches the AES-256 key length used by the cipher.
	KeySize = 32

	// Iterations is the PBKDF2-HMAC-SHA256 round count.
	Iterations = 480_000
)

// Policy holds optional caller-enforced constraints on master secrets.
// The zero value disables all checks.
type Policy struct {
	// MinMasterSecretLen rejects master secrets shorter than this many
	// bytes. Zero disables the check.
	MinMasterSecretLen int
}

// NewSalt returns a fresh random salt of SaltSize bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a KeySize-byte symmetric key from the master secret and
// a per-record salt. It is deterministic: identical inputs always yield the
// identical key.
func DeriveKey(masterSecret, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSalt, len(salt), SaltSize)
	}
	return pbkdf2.Key(masterSecret, salt, Iterations, KeySize, sha256.New), nil
}

// DeriveKeyWithPolicy is DeriveKey with the policy checks applied first.
func DeriveKeyWithPolicy(masterSecret, salt []byte, p Policy) ([]byte, error) {
	if p.MinMasterSecretLen > 0 && len(masterSecret) < p.MinMasterSecretLen {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d",
			ErrWeakMasterSecret, len(masterSecret), p.MinMasterSecretLen)
	}
	return DeriveKey(masterSecret, salt)
}
