package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/nhle/mailvault/internal/model"
)

// newTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

func testRecord(id string) model.AccountRecord {
	return model.AccountRecord{
		ID:           id,
		EmailAddress: id,
		SMTPEndpoint: "smtp.example.com:587",
		SMTPUsername: "user",
		SMTPSecret:   []byte{1, 2, 3},
		IMAPEndpoint: "imap.example.com",
		IMAPUsername: "user",
		IMAPSecret:   []byte{4, 5, 6},
		Salt:         bytes.Repeat([]byte{7}, 16),
	}
}

func TestUpsertAccount_GetAccountByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("a@x.com")
	if err := s.UpsertAccount(ctx, rec); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}

	got, err := s.GetAccountByID(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetAccountByID() error = %v", err)
	}

	if got.EmailAddress != rec.EmailAddress {
		t.Errorf("EmailAddress = %q, want %q", got.EmailAddress, rec.EmailAddress)
	}
	if !bytes.Equal(got.SMTPSecret, rec.SMTPSecret) {
		t.Errorf("SMTPSecret = %v, want %v", got.SMTPSecret, rec.SMTPSecret)
	}
	if !bytes.Equal(got.Salt, rec.Salt) {
		t.Errorf("Salt = %v, want %v", got.Salt, rec.Salt)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not populated")
	}
}

func TestGetAccountByID_Missing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetAccountByID(context.Background(), "missing@x.com")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetAccountByID() error = %v, want sql.ErrNoRows", err)
	}
}

func TestGetAccounts_InsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids := []string{"c@x.com", "a@x.com", "b@x.com"}
	for _, id := range ids {
		if err := s.UpsertAccount(ctx, testRecord(id)); err != nil {
			t.Fatalf("UpsertAccount(%s) error = %v", id, err)
		}
	}

	// Replacing the first record must not move it to the end.
	replaced := testRecord("c@x.com")
	replaced.SMTPUsername = "new-user"
	if err := s.UpsertAccount(ctx, replaced); err != nil {
		t.Fatalf("UpsertAccount() replace error = %v", err)
	}

	accounts, err := s.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("GetAccounts() error = %v", err)
	}

	if len(accounts) != len(ids) {
		t.Fatalf("GetAccounts() returned %d records, want %d", len(accounts), len(ids))
	}
	for i, id := range ids {
		if accounts[i].ID != id {
			t.Errorf("accounts[%d].ID = %q, want %q", i, accounts[i].ID, id)
		}
	}
	if accounts[0].SMTPUsername != "new-user" {
		t.Errorf("replaced record SMTPUsername = %q, want %q", accounts[0].SMTPUsername, "new-user")
	}
}

func TestUpsertAccount_ReplaceOverwritesSecrets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertAccount(ctx, testRecord("a@x.com")); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}

	replaced := testRecord("a@x.com")
	replaced.SMTPSecret = []byte{9, 9, 9}
	replaced.Salt = bytes.Repeat([]byte{8}, 16)
	if err := s.UpsertAccount(ctx, replaced); err != nil {
		t.Fatalf("UpsertAccount() replace error = %v", err)
	}

	got, err := s.GetAccountByID(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetAccountByID() error = %v", err)
	}
	if !bytes.Equal(got.SMTPSecret, replaced.SMTPSecret) {
		t.Errorf("SMTPSecret = %v, want %v", got.SMTPSecret, replaced.SMTPSecret)
	}
	if !bytes.Equal(got.Salt, replaced.Salt) {
		t.Errorf("Salt = %v, want %v", got.Salt, replaced.Salt)
	}
}

func TestDeleteAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertAccount(ctx, testRecord("a@x.com")); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	if err := s.DeleteAccount(ctx, "a@x.com"); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}

	accounts, err := s.GetAccounts(ctx)
	if err != nil {
		t.Fatalf("GetAccounts() error = %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("GetAccounts() returned %d records after delete, want 0", len(accounts))
	}
}
