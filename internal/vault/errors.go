package vault

import "errors"

var (
	// ErrInvalidSalt is returned when a salt has the wrong length.
	ErrInvalidSalt = errors.New("invalid salt")

	// ErrWeakMasterSecret is returned when a minimum-length policy is
	// configured and the master secret falls short of it.
	ErrWeakMasterSecret = errors.New("master secret below minimum length")

	// ErrDecryptionFailed is returned on authentication-tag mismatch,
	// wrong key, or malformed ciphertext. It is always distinguishable
	// from a successful decrypt; corrupted plaintext is never returned.
	ErrDecryptionFailed = errors.New("decryption failed")
)
