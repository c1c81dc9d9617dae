package account

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/nhle/mailvault/internal/store"
	"github.com/nhle/mailvault/internal/vault"
)

func newTestAccountStore(t *testing.T) *AccountStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return New(s, vault.Policy{})
}

func testFields(addr string) Fields {
	return Fields{
		EmailAddress: addr,
		SMTPEndpoint: "smtp.x.com:587",
		SMTPUsername: addr,
		IMAPEndpoint: "imap.x.com",
		IMAPUsername: addr,
	}
}

func TestUpsertResolve_RoundTrip(t *testing.T) {
	accounts := newTestAccountStore(t)
	ctx := context.Background()
	master := []byte("master secret")

	err := accounts.Upsert(ctx, "a@x.com", testFields("a@x.com"),
		Secrets{SMTPPassword: "p1", IMAPPassword: "p2"}, master)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	resolved, err := accounts.Resolve(ctx, master)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("Resolve() returned %d accounts, want 1", len(resolved))
	}
	if resolved[0].SMTPPassword != "p1" {
		t.Errorf("SMTPPassword = %q, want %q", resolved[0].SMTPPassword, "p1")
	}
	if resolved[0].IMAPPassword != "p2" {
		t.Errorf("IMAPPassword = %q, want %q", resolved[0].IMAPPassword, "p2")
	}
}

func TestUpsert_SecretsNotStoredInClear(t *testing.T) {
	accounts := newTestAccountStore(t)
	ctx := context.Background()

	err := accounts.Upsert(ctx, "a@x.com", testFields("a@x.com"),
		Secrets{SMTPPassword: "p1", IMAPPassword: "p2"}, []byte("master"))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	recs, err := accounts.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if bytes.Contains(recs[0].SMTPSecret, []byte("p1")) {
		t.Error("SMTP secret stored in the clear")
	}
	if bytes.Contains(recs[0].IMAPSecret, []byte("p2")) {
		t.Error("IMAP secret stored in the clear")
	}
}

func TestResolve_WrongMasterSecret(t *testing.T) {
	accounts := newTestAccountStore(t)
	ctx := context.Background()

	err := accounts.Upsert(ctx, "a@x.com", testFields("a@x.com"),
		Secrets{SMTPPassword: "p1", IMAPPassword: "p1"}, []byte("right"))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	resolved, err := accounts.Resolve(ctx, []byte("wrong"))
	if !errors.Is(err, vault.ErrDecryptionFailed) {
		t.Errorf("Resolve() error = %v, want ErrDecryptionFailed", err)
	}
	if resolved != nil {
		t.Errorf("Resolve() returned %d accounts with wrong secret, want none", len(resolved))
	}
}

func TestResolve_WrongSecretAbortsWholeSet(t *testing.T) {
	accounts := newTestAccountStore(t)
	ctx := context.Background()

	// Two records encrypted under different master secrets: resolving
	// under either must fail entirely, never return the decryptable half.
	if err := accounts.Upsert(ctx, "a@x.com", testFields("a@x.com"),
		Secrets{SMTPPassword: "pa", IMAPPassword: "pa"}, []byte("first")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := accounts.Upsert(ctx, "b@x.com", testFields("b@x.com"),
		Secrets{SMTPPassword: "pb", IMAPPassword: "pb"}, []byte("second")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	for _, master := range []string{"first", "second"} {
		resolved, err := accounts.Resolve(ctx, []byte(master))
		if !errors.Is(err, vault.ErrDecryptionFailed) {
			t.Errorf("Resolve(%q) error = %v, want ErrDecryptionFailed", master, err)
		}
		if resolved != nil {
			t.Errorf("Resolve(%q) returned partial results", master)
		}
	}
}

func TestResolve_EmptyStore(t *testing.T) {
	accounts := newTestAccountStore(t)

	_, err := accounts.Resolve(context.Background(), []byte("master"))
	if !errors.Is(err, ErrNoAccountsConfigured) {
		t.Errorf("Resolve() error = %v, want ErrNoAccountsConfigured", err)
	}
}

func TestResolve_InsertionOrder(t *testing.T) {
	accounts := newTestAccountStore(t)
	ctx := context.Background()
	master := []byte("master")

	ids := []string{"c@x.com", "a@x.com", "b@x.com"}
	for _, id := range ids {
		if err := accounts.Upsert(ctx, id, testFields(id),
			Secrets{SMTPPassword: "p", IMAPPassword: "p"}, master); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	resolved, err := accounts.Resolve(ctx, master)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(resolved) != len(ids) {
		t.Fatalf("Resolve() returned %d accounts, want %d", len(resolved), len(ids))
	}
	for i, id := range ids {
		if resolved[i].ID != id {
			t.Errorf("resolved[%d].ID = %q, want %q", i, resolved[i].ID, id)
		}
	}
}

func TestUpsert_ReplaceRegeneratesSalt(t *testing.T) {
	accounts := newTestAccountStore(t)
	ctx := context.Background()
	master := []byte("master")

	if err := accounts.Upsert(ctx, "a@x.com", testFields("a@x.com"),
		Secrets{SMTPPassword: "p1", IMAPPassword: "p1"}, master); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	first, err := accounts.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if err := accounts.Upsert(ctx, "a@x.com", testFields("a@x.com"),
		Secrets{SMTPPassword: "p2", IMAPPassword: "p2"}, master); err != nil {
		t.Fatalf("Upsert() replace error = %v", err)
	}
	second, err := accounts.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if bytes.Equal(first[0].Salt, second[0].Salt) {
		t.Error("replace reused the previous salt")
	}

	acct, err := accounts.ResolveOne(ctx, "a@x.com", master)
	if err != nil {
		t.Fatalf("ResolveOne() error = %v", err)
	}
	if acct.SMTPPassword != "p2" {
		t.Errorf("SMTPPassword = %q, want %q", acct.SMTPPassword, "p2")
	}
}

func TestResolveOne_Missing(t *testing.T) {
	accounts := newTestAccountStore(t)

	_, err := accounts.ResolveOne(context.Background(), "missing@x.com", []byte("master"))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("ResolveOne() error = %v, want ErrAccountNotFound", err)
	}
}
