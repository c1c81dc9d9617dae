// Package account implements the credential vault's account layer: records
// are written with freshly salted, individually encrypted secrets and read
// back as an all-or-nothing decrypted set.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailvault/internal/model"
	"github.com/nhle/mailvault/internal/vault"
)

var (
	// ErrNoAccountsConfigured is returned by Resolve when the store holds
	// no records at all.
	ErrNoAccountsConfigured = errors.New("no accounts configured")

	// ErrAccountNotFound is returned when a lookup by ID misses.
	ErrAccountNotFound = errors.New("account not found")
)

// RecordStore is the slice of the persistence interface the account layer
// needs. Records reach it with their secret fields already encrypted.
type RecordStore interface {
	UpsertAccount(ctx context.Context, rec model.AccountRecord) error
	GetAccounts(ctx context.Context) ([]model.AccountRecord, error)
	GetAccountByID(ctx context.Context, id string) (*model.AccountRecord, error)
}

// Fields holds the non-secret parts of an account configuration.
type Fields struct {
	EmailAddress string
	SMTPEndpoint string
	SMTPUsername string
	IMAPEndpoint string
	IMAPUsername string
}

// Secrets holds the plaintext passwords supplied at configuration time.
// They are encrypted before they reach the record store.
type Secrets struct {
	SMTPPassword string
	IMAPPassword string
}

// AccountStore manages encrypted account records.
type AccountStore struct {
	records RecordStore
	policy  vault.Policy
}

// New creates an AccountStore over the given record store.
func New(records RecordStore, policy vault.Policy) *AccountStore {
	return &AccountStore{records: records, policy: policy}
}

// Upsert creates or fully replaces the record keyed by id. A fresh salt is
// generated on every call and both secrets are re-encrypted under the key
// it derives, so a record is never partially updated.
func (s *AccountStore) Upsert(ctx context.Context, id string, fields Fields, secrets Secrets, masterSecret []byte) error {
	salt, err := vault.NewSalt()
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", id, err)
	}

	key, err := vault.DeriveKeyWithPolicy(masterSecret, salt, s.policy)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", id, err)
	}

	smtpSecret, err := vault.Encrypt(secrets.SMTPPassword, key)
	if err != nil {
		return fmt.Errorf("encrypting SMTP secret for %s: %w", id, err)
	}
	imapSecret, err := vault.Encrypt(secrets.IMAPPassword, key)
	if err != nil {
		return fmt.Errorf("encrypting IMAP secret for %s: %w", id, err)
	}

	rec := model.AccountRecord{
		ID:           id,
		EmailAddress: fields.EmailAddress,
		SMTPEndpoint: fields.SMTPEndpoint,
		SMTPUsername: fields.SMTPUsername,
		SMTPSecret:   smtpSecret,
		IMAPEndpoint: fields.IMAPEndpoint,
		IMAPUsername: fields.IMAPUsername,
		IMAPSecret:   imapSecret,
		Salt:         salt,
	}

	return s.records.UpsertAccount(ctx, rec)
}

// List returns all account records (secrets still encrypted) in the
// store's insertion order.
func (s *AccountStore) List(ctx context.Context) ([]model.AccountRecord, error) {
	return s.records.GetAccounts(ctx)
}

// Resolve decrypts every stored account's secrets under the given master
// secret and returns them in insertion order. It fails fast with
// ErrNoAccountsConfigured on an empty store, and a decryption failure for
// any record aborts the whole resolve: a wrong master secret never yields
// a partially usable account set.
func (s *AccountStore) Resolve(ctx context.Context, masterSecret []byte) ([]model.ResolvedAccount, error) {
	recs, err := s.records.GetAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNoAccountsConfigured
	}

	resolved := make([]model.ResolvedAccount, 0, len(recs))
	for _, rec := range recs {
		acct, err := decryptRecord(rec, masterSecret)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, *acct)
	}

	return resolved, nil
}

// ResolveOne decrypts a single account's secrets by record ID.
func (s *AccountStore) ResolveOne(ctx context.Context, id string, masterSecret []byte) (*model.ResolvedAccount, error) {
	rec, err := s.records.GetAccountByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, id)
	}
	return decryptRecord(*rec, masterSecret)
}

// decryptRecord derives the record's key from its own salt and decrypts
// both secrets. The derived key goes out of scope when this returns; it is
// never reused across records since their salts differ.
func decryptRecord(rec model.AccountRecord, masterSecret []byte) (*model.ResolvedAccount, error) {
	key, err := vault.DeriveKey(masterSecret, rec.Salt)
	if err != nil {
		return nil, fmt.Errorf("resolving account %s: %w", rec.ID, err)
	}

	smtpPassword, err := vault.Decrypt(rec.SMTPSecret, key)
	if err != nil {
		return nil, fmt.Errorf("resolving account %s: %w", rec.ID, err)
	}
	imapPassword, err := vault.Decrypt(rec.IMAPSecret, key)
	if err != nil {
		return nil, fmt.Errorf("resolving account %s: %w", rec.ID, err)
	}

	return &model.ResolvedAccount{
		ID:           rec.ID,
		EmailAddress: rec.EmailAddress,
		SMTPEndpoint: rec.SMTPEndpoint,
		SMTPUsername: rec.SMTPUsername,
		SMTPPassword: smtpPassword,
		IMAPEndpoint: rec.IMAPEndpoint,
		IMAPUsername: rec.IMAPUsername,
		IMAPPassword: imapPassword,
	}, nil
}
