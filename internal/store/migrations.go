package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	email_address TEXT NOT NULL,
	smtp_endpoint TEXT NOT NULL,
	smtp_username TEXT NOT NULL,
	smtp_secret   BLOB NOT NULL,
	imap_endpoint TEXT NOT NULL,
	imap_username TEXT NOT NULL,
	imap_secret   BLOB NOT NULL,
	salt          BLOB NOT NULL,
	position      INTEGER NOT NULL,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_position ON accounts(position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
