package tierstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	image         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS user_tiers (
	pk         INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	share_code TEXT NOT NULL,
	pads       TEXT NOT NULL DEFAULT '[]',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, share_code)
);

CREATE INDEX IF NOT EXISTS idx_user_tiers_user ON user_tiers(user_id, position);

CREATE TABLE IF NOT EXISTS shared_tiers (
	id         TEXT NOT NULL,
	owner_id   TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	share_code TEXT NOT NULL UNIQUE,
	pads       TEXT NOT NULL DEFAULT '[]',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	image         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS user_tiers (
	pk         BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	share_code TEXT NOT NULL,
	pads       JSONB NOT NULL DEFAULT '[]'::jsonb,
	position   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(user_id, share_code)
);

CREATE INDEX IF NOT EXISTS idx_user_tiers_user ON user_tiers(user_id, position);

CREATE TABLE IF NOT EXISTS shared_tiers (
	id         TEXT NOT NULL,
	owner_id   TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	share_code TEXT NOT NULL UNIQUE,
	pads       JSONB NOT NULL DEFAULT '[]'::jsonb,
	position   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func applySchema(ctx context.Context, conn *sql.DB, driver string) error {
	schema := sqliteSchemaSQL
	if driver == DriverPostgres {
		schema = postgresSchemaSQL
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("tierstore: apply schema: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
