package tierstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/sharecode"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DB wraps a sql.DB holding the users, user_tiers and shared_tiers tables.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open connects to the database, caps the pool at a single connection and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite3"
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
		}
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("tierstore: unsupported driver %q", driver)
	}

	conn, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("tierstore: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxIdleTime(20 * time.Second)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tierstore: ping: %w", err)
	}
	if err := applySchema(ctx, conn, driver); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn, driver: driver}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) q(query string) string {
	return rebind(db.driver, query)
}

func (db *DB) UserTiers(ctx context.Context, userID string) ([]models.Tier, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(`
		SELECT id, name, share_code, pads, position
		FROM user_tiers
		WHERE user_id = ?
		ORDER BY position ASC, pk ASC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("tierstore: user tiers: %w", err)
	}
	defer rows.Close()

	out := make([]models.Tier, 0)
	for rows.Next() {
		tier, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("tierstore: scan user tier: %w", err)
		}
		out = append(out, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tierstore: iterate user tiers: %w", err)
	}
	return out, nil
}

func (db *DB) SaveUserTiers(ctx context.Context, userID string, tiers []models.Tier) error {
	if userID == "" {
		return apperr.Invalid("userId", "user id is required")
	}
	now := time.Now().UTC()
	if _, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO users (id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`), userID, now, now); err != nil {
		return fmt.Errorf("tierstore: ensure user: %w", err)
	}

	for _, tier := range tiers {
		code := sharecode.Normalize(tier.ShareCode)
		if code == "" {
			continue
		}
		_, err := db.conn.ExecContext(ctx, db.q(`
			INSERT INTO user_tiers (id, user_id, name, share_code, pads, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, share_code) DO UPDATE SET
				id         = excluded.id,
				name       = excluded.name,
				pads       = excluded.pads,
				position   = excluded.position,
				updated_at = excluded.updated_at
			WHERE user_tiers.id <> excluded.id
				OR user_tiers.name <> excluded.name
				OR user_tiers.pads <> excluded.pads
				OR user_tiers.position <> excluded.position
		`), tier.ID, userID, tier.Name, code, EncodePads(tier.Pads), tier.Position, now, now)
		if err != nil {
			return fmt.Errorf("tierstore: upsert user tier %s: %w", code, err)
		}
	}
	return nil
}

func (db *DB) DeleteUserTier(ctx context.Context, userID, key string) error {
	_, err := db.conn.ExecContext(ctx, db.q(`
		DELETE FROM user_tiers
		WHERE user_id = ? AND (id = ? OR share_code = ?)
	`), userID, key, sharecode.Normalize(key))
	if err != nil {
		return fmt.Errorf("tierstore: delete user tier: %w", err)
	}
	return nil
}

func (db *DB) UpdateTierOrder(ctx context.Context, userID string, tierIDs []string) error {
	now := time.Now().UTC()
	for i, id := range tierIDs {
		if _, err := db.conn.ExecContext(ctx, db.q(`
			UPDATE user_tiers
			SET position = ?, updated_at = ?
			WHERE id = ? AND user_id = ?
		`), i, now, id, userID); err != nil {
			return fmt.Errorf("tierstore: update tier order: %w", err)
		}
	}
	return nil
}

func (db *DB) SharedTier(ctx context.Context, code string) (models.Tier, error) {
	row := db.conn.QueryRowContext(ctx, db.q(`
		SELECT id, name, share_code, pads, position
		FROM shared_tiers
		WHERE share_code = ?
		LIMIT 1
	`), sharecode.Normalize(code))
	tier, err := scanTier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Tier{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Tier{}, fmt.Errorf("tierstore: shared tier: %w", err)
	}
	return tier, nil
}

func (db *DB) SaveSharedTier(ctx context.Context, ownerID string, tier models.Tier) error {
	code := sharecode.Normalize(tier.ShareCode)
	if code == "" {
		return apperr.Invalid("shareCode", "share code is required")
	}

	var existingOwner string
	err := db.conn.QueryRowContext(ctx, db.q(`SELECT owner_id FROM shared_tiers WHERE share_code = ?`), code).Scan(&existingOwner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("tierstore: shared tier owner: %w", err)
	case existingOwner != "" && existingOwner != ownerID:
		return fmt.Errorf("tierstore: share code %s: %w", code, apperr.ErrConflict)
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx, db.q(`
		INSERT INTO shared_tiers (id, owner_id, name, share_code, pads, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (share_code) DO UPDATE SET
			owner_id   = CASE WHEN shared_tiers.owner_id = '' THEN excluded.owner_id ELSE shared_tiers.owner_id END,
			name       = excluded.name,
			pads       = excluded.pads,
			position   = excluded.position,
			updated_at = excluded.updated_at
		WHERE shared_tiers.name <> excluded.name
			OR shared_tiers.pads <> excluded.pads
			OR shared_tiers.position <> excluded.position
			OR (shared_tiers.owner_id = '' AND excluded.owner_id <> '')
	`), sharedID(code), ownerID, tier.Name, code, EncodePads(tier.Pads), tier.Position, now, now)
	if err != nil {
		return fmt.Errorf("tierstore: upsert shared tier %s: %w", code, err)
	}
	return nil
}

func (db *DB) DeleteSharedTier(ctx context.Context, ownerID, code string) error {
	_, err := db.conn.ExecContext(ctx, db.q(`
		DELETE FROM shared_tiers
		WHERE share_code = ? AND (owner_id = '' OR owner_id = ?)
	`), sharecode.Normalize(code), ownerID)
	if err != nil {
		return fmt.Errorf("tierstore: delete shared tier: %w", err)
	}
	return nil
}

func (db *DB) SyncUser(ctx context.Context, user models.User, tiers []models.Tier) error {
	if user.ID == "" {
		return apperr.Invalid("userId", "user id is required")
	}
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO users (id, email, name, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email      = excluded.email,
			name       = excluded.name,
			image      = excluded.image,
			updated_at = excluded.updated_at
	`), user.ID, user.Email, user.Name, user.Image, now, now)
	if err != nil {
		return fmt.Errorf("tierstore: upsert user: %w", err)
	}
	if tiers == nil {
		return nil
	}
	return db.SaveUserTiers(ctx, user.ID, tiers)
}

func (db *DB) CreateUser(ctx context.Context, user models.User) error {
	if _, err := db.UserByEmail(ctx, user.Email); err == nil {
		return apperr.ErrAlreadyExists
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, db.q(`
		INSERT INTO users (id, email, name, image, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), user.ID, user.Email, user.Name, user.Image, user.PasswordHash, now, now)
	if err != nil {
		return fmt.Errorf("tierstore: create user: %w", err)
	}
	return nil
}

func (db *DB) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := db.conn.QueryRowContext(ctx, db.q(`
		SELECT id, email, name, image, password_hash, created_at, updated_at
		FROM users
		WHERE email = ?
		LIMIT 1
	`), email).Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("tierstore: user by email: %w", err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTier(s scanner) (models.Tier, error) {
	var (
		tier models.Tier
		pads any
	)
	if err := s.Scan(&tier.ID, &tier.Name, &tier.ShareCode, &pads, &tier.Position); err != nil {
		return models.Tier{}, err
	}
	tier.Pads = DecodePads(pads)
	return tier, nil
}

// sharedID derives the row id of a published tier from its code.
func sharedID(code string) string {
	return "shared-" + code
}
