// Package credential optionally caches the master secret in the OS keyring
// so interactive commands do not re-prompt for it. Caching is opt-in; the
// vault itself never persists the master secret.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName     = "mailvault"
	masterSecretKey = "master-secret"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailvault/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailvault-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// GetMasterSecret retrieves the cached master secret from the system
// keyring.
func GetMasterSecret() ([]byte, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}

	item, err := ring.Get(masterSecretKey)
	if err != nil {
		return nil, fmt.Errorf("getting cached master secret: %w", err)
	}

	return item.Data, nil
}

// SetMasterSecret caches the master secret in the system keyring.
func SetMasterSecret(secret []byte) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  masterSecretKey,
		Data: secret,
	})
	if err != nil {
		return fmt.Errorf("caching master secret: %w", err)
	}

	return nil
}

// DeleteMasterSecret removes the cached master secret from the system
// keyring.
func DeleteMasterSecret() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(masterSecretKey)
	if err != nil {
		return fmt.Errorf("removing cached master secret: %w", err)
	}

	return nil
}
