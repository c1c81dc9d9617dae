package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailvault/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertAccount inserts or replaces an account record. A new record takes
// the next free position; replacing an existing record keeps its position
// and created_at, so the listing order is stable across reconfiguration.
func (s *SQLiteStore) UpsertAccount(ctx context.Context, rec model.AccountRecord) error {
	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email_address,
			smtp_endpoint, smtp_username, smtp_secret,
			imap_endpoint, imap_username, imap_secret,
			salt, position, created_at, updated_at
		) VALUES (
			?, ?,
			?, ?, ?,
			?, ?, ?,
			?, (SELECT COALESCE(MAX(position), 0) + 1 FROM accounts), ?, ?
		)
		ON CONFLICT(id) DO UPDATE SET
			email_address = excluded.email_address,
			smtp_endpoint = excluded.smtp_endpoint,
			smtp_username = excluded.smtp_username,
			smtp_secret   = excluded.smtp_secret,
			imap_endpoint = excluded.imap_endpoint,
			imap_username = excluded.imap_username,
			imap_secret   = excluded.imap_secret,
			salt          = excluded.salt,
			updated_at    = excluded.updated_at`,
		rec.ID, rec.EmailAddress,
		rec.SMTPEndpoint, rec.SMTPUsername, rec.SMTPSecret,
		rec.IMAPEndpoint, rec.IMAPUsername, rec.IMAPSecret,
		rec.Salt, createdAt.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", rec.ID, err)
	}

	return nil
}

// GetAccounts retrieves all account records in insertion order.
func (s *SQLiteStore) GetAccounts(ctx context.Context) ([]model.AccountRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, email_address,
		       smtp_endpoint, smtp_username, smtp_secret,
		       imap_endpoint, imap_username, imap_secret,
		       salt, created_at, updated_at
		FROM accounts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.AccountRecord
	for rows.Next() {
		rec, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, rec)
	}

	return accounts, rows.Err()
}

// GetAccountByID retrieves a single account record by its ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id string) (*model.AccountRecord, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT id, email_address,
		       smtp_endpoint, smtp_username, smtp_secret,
		       imap_endpoint, imap_username, imap_secret,
		       salt, created_at, updated_at
		FROM accounts WHERE id = ?`, id)

	var (
		rec       model.AccountRecord
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.EmailAddress,
		&rec.SMTPEndpoint, &rec.SMTPUsername, &rec.SMTPSecret,
		&rec.IMAPEndpoint, &rec.IMAPUsername, &rec.IMAPSecret,
		&rec.Salt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}

	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return &rec, nil
}

// DeleteAccount removes an account record by ID.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	return nil
}

// scanAccount scans an account row from a sqlx.Rows result set.
func scanAccount(rows *sqlx.Rows) (model.AccountRecord, error) {
	var (
		rec       model.AccountRecord
		createdAt time.Time
		updatedAt time.Time
	)

	err := rows.Scan(
		&rec.ID, &rec.EmailAddress,
		&rec.SMTPEndpoint, &rec.SMTPUsername, &rec.SMTPSecret,
		&rec.IMAPEndpoint, &rec.IMAPUsername, &rec.IMAPSecret,
		&rec.Salt, &createdAt, &updatedAt,
	)
	if err != nil {
		return model.AccountRecord{}, fmt.Errorf("scanning account row: %w", err)
	}

	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return rec, nil
}
