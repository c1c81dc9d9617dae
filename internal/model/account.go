package model

import "time"

// AccountRecord is the persisted form of one mail account. The two secret
// fields hold ciphertext produced under a key derived from this record's
// own Salt; they are never stored in the clear.
type AccountRecord struct {
	// ID is the stable record key, conventionally the email address.
	ID string

	// EmailAddress is the identity used on the From header.
	EmailAddress string

	// SMTPEndpoint is the submission server as host or host:port.
	SMTPEndpoint string

	// SMTPUsername authenticates the submission session.
	SMTPUsername string

	// SMTPSecret is the encrypted SMTP password.
	SMTPSecret []byte

	// IMAPEndpoint is the retrieval server as host or host:port.
	IMAPEndpoint string

	// IMAPUsername authenticates the retrieval session.
	IMAPUsername string

	// IMAPSecret is the encrypted IMAP password.
	IMAPSecret []byte

	// Salt is random, non-secret, and unique per record. It is
	// regenerated every time the record is replaced.
	Salt []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolvedAccount is an AccountRecord with its secrets decrypted. It is
// ephemeral and never persisted.
type ResolvedAccount struct {
	ID           string
	EmailAddress string
	SMTPEndpoint string
	SMTPUsername string
	SMTPPassword string
	IMAPEndpoint string
	IMAPUsername string
	IMAPPassword string
}
