package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// NAMESPACE MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned DDL step applied inside a community schema.
// The {{schema}} placeholder is replaced with the quoted schema identifier.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS {{schema}}.users (
    user_id VARCHAR(32) NOT NULL,
    guild_id VARCHAR(32) NOT NULL,
    xp BIGINT NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 0,
    last_message_timestamp BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, guild_id),
    CONSTRAINT valid_xp CHECK (xp >= 0),
    CONSTRAINT valid_level CHECK (level >= 0)
);

CREATE INDEX IF NOT EXISTS users_xp_idx ON {{schema}}.users (xp DESC);

CREATE TABLE IF NOT EXISTS {{schema}}.settings (
    setting_key VARCHAR(64) PRIMARY KEY,
    setting_value TEXT
);
`

// GetMigrations returns all namespace migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_users_and_settings",
			UpSQL:   migration001Up,
		},
	}
}

// Migrator applies namespace migrations to one community schema, tracking
// progress in that schema's own schema_migrations table.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a new migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
	}
}

func render(sql, schema string) string {
	return strings.ReplaceAll(sql, "{{schema}}", schema)
}

// Migrate creates the schema if needed and applies all pending migrations in
// a single transaction. schema must already be a quoted identifier.
func (m *Migrator) Migrate(ctx context.Context, schema string) error {
	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
			return fmt.Errorf("%w: create schema: %v", ErrMigrationFailed, err)
		}

		if _, err := tx.Exec(ctx, render(`
			CREATE TABLE IF NOT EXISTS {{schema}}.schema_migrations (
				version INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`, schema)); err != nil {
			return fmt.Errorf("%w: create migrations table: %v", ErrMigrationFailed, err)
		}

		applied, err := appliedVersions(ctx, tx, schema)
		if err != nil {
			return err
		}

		for _, mig := range m.migrations {
			if applied[mig.Version] {
				continue
			}
			if _, err := tx.Exec(ctx, render(mig.UpSQL, schema)); err != nil {
				return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
			}
			if _, err := tx.Exec(ctx,
				render("INSERT INTO {{schema}}.schema_migrations (version, name) VALUES ($1, $2)", schema),
				mig.Version, mig.Name,
			); err != nil {
				return fmt.Errorf("%w: record version %d: %v", ErrMigrationFailed, mig.Version, err)
			}
		}

		return nil
	})
}

func appliedVersions(ctx context.Context, q pgx.Tx, schema string) (map[int]bool, error) {
	rows, err := q.Query(ctx, render("SELECT version FROM {{schema}}.schema_migrations", schema))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}
