// Package overlay implements the optional OpenPGP confidentiality layer
// over message bodies. It is independent of transport encryption: a body
// can be overlay-encrypted without TLS and vice versa. Headers and
// attachments are never touched.
//
// Key material lives as armored files in a key directory, one
// <identity>.pub / <identity>.key pair per identity. Availability of the
// overlay for a given operation means the required key file is present.
package overlay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/gopenpgp/v3/crypto"
)

// ErrUnavailable is returned when the key material required for an overlay
// operation is not present on the host. Callers may degrade to plaintext
// over transport encryption only when explicitly told to accept that.
var ErrUnavailable = errors.New("encryption overlay unavailable")

const (
	publicKeyExt  = ".pub"
	privateKeyExt = ".key"
)

// Overlay encrypts and decrypts message bodies against a directory of
// armored OpenPGP keys.
type Overlay struct {
	keyDir string
}

// New creates an Overlay backed by the given key directory. The directory
// is created lazily on key generation; a missing directory simply means no
// identity is available.
func New(keyDir string) *Overlay {
	return &Overlay{keyDir: keyDir}
}

// Available probes for the public key of the given recipient identity. It
// returns nil when EncryptBody for that recipient can succeed, and an
// error wrapping ErrUnavailable otherwise.
func (o *Overlay) Available(recipient string) error {
	if _, err := os.Stat(o.keyPath(recipient, publicKeyExt)); err != nil {
		return fmt.Errorf("%w: no public key for %q", ErrUnavailable, recipient)
	}
	return nil
}

// EncryptBody encrypts a plain-text body for the named recipient and
// returns the armored ciphertext.
func (o *Overlay) EncryptBody(body, recipient string) (string, error) {
	armored, err := os.ReadFile(o.keyPath(recipient, publicKeyExt))
	if err != nil {
		return "", fmt.Errorf("%w: no public key for %q", ErrUnavailable, recipient)
	}

	pubKey, err := crypto.NewKeyFromArmored(string(armored))
	if err != nil {
		return "", fmt.Errorf("loading public key for %q: %w", recipient, err)
	}

	pgp := crypto.PGP()
	encHandle, err := pgp.Encryption().Recipient(pubKey).New()
	if err != nil {
		return "", fmt.Errorf("preparing encryption for %q: %w", recipient, err)
	}

	message, err := encHandle.Encrypt([]byte(body))
	if err != nil {
		return "", fmt.Errorf("encrypting body for %q: %w", recipient, err)
	}

	return message.Armor()
}

// DecryptBody decrypts an armored body with the named identity's private
// key, unlocked by passphrase (empty for an unlocked key).
func (o *Overlay) DecryptBody(armoredBody, identity, passphrase string) (string, error) {
	armored, err := os.ReadFile(o.keyPath(identity, privateKeyExt))
	if err != nil {
		return "", fmt.Errorf("%w: no private key for %q", ErrUnavailable, identity)
	}

	var pass []byte
	if passphrase != "" {
		pass = []byte(passphrase)
	}
	privKey, err := crypto.NewPrivateKeyFromArmored(string(armored), pass)
	if err != nil {
		return "", fmt.Errorf("loading private key for %q: %w", identity, err)
	}

	pgp := crypto.PGP()
	decHandle, err := pgp.Decryption().DecryptionKey(privKey).New()
	if err != nil {
		return "", fmt.Errorf("preparing decryption for %q: %w", identity, err)
	}
	defer decHandle.ClearPrivateParams()

	decrypted, err := decHandle.Decrypt([]byte(armoredBody), crypto.Armor)
	if err != nil {
		return "", fmt.Errorf("decrypting body for %q: %w", identity, err)
	}

	return string(decrypted.Bytes()), nil
}

// GenerateIdentity creates a new key pair for an identity and writes the
// armored pair into the key directory. An empty passphrase leaves the
// private key unlocked.
func (o *Overlay) GenerateIdentity(name, email, passphrase string) error {
	if err := os.MkdirAll(o.keyDir, 0o700); err != nil {
		return fmt.Errorf("creating key directory %s: %w", o.keyDir, err)
	}

	pgp := crypto.PGP()
	key, err := pgp.KeyGeneration().AddUserId(name, email).New().GenerateKey()
	if err != nil {
		return fmt.Errorf("generating key for %q: %w", email, err)
	}

	privKey := key
	if passphrase != "" {
		privKey, err = pgp.LockKey(key, []byte(passphrase))
		if err != nil {
			return fmt.Errorf("locking key for %q: %w", email, err)
		}
	}

	armoredPriv, err := privKey.Armor()
	if err != nil {
		return fmt.Errorf("armoring private key for %q: %w", email, err)
	}
	armoredPub, err := key.GetArmoredPublicKey()
	if err != nil {
		return fmt.Errorf("armoring public key for %q: %w", email, err)
	}

	privPath := o.keyPath(email, privateKeyExt)
	if err := os.WriteFile(privPath, []byte(armoredPriv), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", privPath, err)
	}
	pubPath := o.keyPath(email, publicKeyExt)
	if err := os.WriteFile(pubPath, []byte(armoredPub), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", pubPath, err)
	}

	return nil
}

// keyPath maps an identity to its key file, flattening path separators so
// an identity can never escape the key directory.
func (o *Overlay) keyPath(identity, ext string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, identity)
	return filepath.Join(o.keyDir, safe+ext)
}
