package store

import (
	"context"

	"github.com/nhle/mailvault/internal/model"
)

// Store defines the persistence interface for account records. It is a
// plain keyed record store: encryption happens above it, in the account
// layer, and records arrive here with their secret fields already sealed.
type Store interface {
	// UpsertAccount inserts or fully replaces the record keyed by its ID.
	// A replace keeps the record's original position in the listing order.
	UpsertAccount(ctx context.Context, rec model.AccountRecord) error

	// GetAccounts returns all records in insertion order. The order is
	// stable across calls and survives replaces.
	GetAccounts(ctx context.Context) ([]model.AccountRecord, error)

	// GetAccountByID returns the record with the given ID, or an error
	// wrapping sql.ErrNoRows if it does not exist.
	GetAccountByID(ctx context.Context, id string) (*model.AccountRecord, error)

	// DeleteAccount removes the record with the given ID.
	DeleteAccount(ctx context.Context, id string) error

	Close() error
}
