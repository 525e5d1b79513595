// Package sqlite implements the embedded ledger backend. A community's
// namespace is the table prefix guild_<id>_ inside one database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store provides a SQLite-backed ledger.Store.
type Store struct {
	sqlDB *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := MemoryPath
	if path != MemoryPath {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// One writer keeps conditional upserts serialized and an in-memory
	// database alive on a single connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// NAMING
// ─────────────────────────────────────────────────────────────────────────────

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func tables(community shared.CommunityID) (users, settings string, err error) {
	if !community.IsValid() {
		return "", "", shared.ErrInvalidCommunity
	}
	prefix := community.Namespace() + "_"
	return quoteIdent(prefix + "users"), quoteIdent(prefix + "settings"), nil
}

func isNoSuchTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isNoSuchTable(err):
		return shared.WrapError("ledger", op, shared.ErrNotProvisioned, "namespace does not exist", err)
	default:
		return shared.WrapError("ledger", op, shared.ErrTransientStorage, "query failed", err)
	}
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ─────────────────────────────────────────────────────────────────────────────
// NAMESPACE LIFECYCLE
// ─────────────────────────────────────────────────────────────────────────────

// Provision creates the community tables and seeds the well-known settings.
func (s *Store) Provision(ctx context.Context, community shared.CommunityID) error {
	users, settings, err := tables(community)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				user_id TEXT NOT NULL,
				guild_id TEXT NOT NULL,
				xp INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
				level INTEGER NOT NULL DEFAULT 0 CHECK (level >= 0),
				last_message_timestamp INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (user_id, guild_id)
			)`, users),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				setting_key TEXT PRIMARY KEY,
				setting_value TEXT
			)`, settings),
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		seed := fmt.Sprintf(`INSERT OR IGNORE INTO %s (setting_key, setting_value) VALUES (?, '')`, settings)
		for _, key := range ledger.WellKnownKeys {
			if _, err := tx.ExecContext(ctx, seed, string(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return shared.WrapError("ledger", "Provision", shared.ErrProvisioning, "create namespace", err)
	}
	return nil
}

// Teardown drops the community tables.
func (s *Store) Teardown(ctx context.Context, community shared.CommunityID) error {
	users, settings, err := tables(community)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, tbl := range []string{users, settings} {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+tbl); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("Teardown", err)
}

// ─────────────────────────────────────────────────────────────────────────────
// SETTINGS
// ─────────────────────────────────────────────────────────────────────────────

// Settings returns all settings of the community.
func (s *Store) Settings(ctx context.Context, community shared.CommunityID) (ledger.Settings, error) {
	_, tbl, err := tables(community)
	if err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, fmt.Sprintf(
		"SELECT setting_key, COALESCE(setting_value, '') FROM %s", tbl,
	))
	if err != nil {
		return nil, classify("Settings", err)
	}
	defer rows.Close()

	settings := make(ledger.Settings)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, classify("Settings", err)
		}
		settings[ledger.SettingKey(key)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, classify("Settings", err)
	}

	return settings, nil
}

const upsertSettingSQL = `
	INSERT INTO %s (setting_key, setting_value) VALUES (?, ?)
	ON CONFLICT (setting_key) DO UPDATE SET setting_value = excluded.setting_value
`

// SetSetting upserts one setting.
func (s *Store) SetSetting(ctx context.Context, community shared.CommunityID, key ledger.SettingKey, value string) error {
	_, tbl, err := tables(community)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, fmt.Sprintf(upsertSettingSQL, tbl), string(key), value)
	return classify("SetSetting", err)
}

// SetSettings upserts several settings in one transaction.
func (s *Store) SetSettings(ctx context.Context, community shared.CommunityID, values map[ledger.SettingKey]string) error {
	_, tbl, err := tables(community)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(upsertSettingSQL, tbl)
		for key, value := range values {
			if _, err := tx.ExecContext(ctx, query, string(key), value); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("SetSettings", err)
}

// ─────────────────────────────────────────────────────────────────────────────
// MEMBERS
// ─────────────────────────────────────────────────────────────────────────────

// Member returns one member record.
func (s *Store) Member(ctx context.Context, community shared.CommunityID, member shared.MemberID) (*ledger.Member, error) {
	tbl, _, err := tables(community)
	if err != nil {
		return nil, err
	}

	m := &ledger.Member{CommunityID: community, MemberID: member}
	err = s.sqlDB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT xp, level, last_message_timestamp FROM %s
		WHERE user_id = ? AND guild_id = ?
	`, tbl), string(member), string(community)).Scan(&m.XP, &m.Level, &m.LastAwardAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrMemberNotFound
	}
	if err != nil {
		return nil, classify("Member", err)
	}

	return m, nil
}

// AwardXP performs the cooldown-gated increment as one statement.
func (s *Store) AwardXP(
	ctx context.Context,
	community shared.CommunityID,
	member shared.MemberID,
	delta int64,
	now time.Time,
	cooldown time.Duration,
) (*ledger.AwardResult, error) {
	tbl, _, err := tables(community)
	if err != nil {
		return nil, err
	}

	result := &ledger.AwardResult{}
	err = s.sqlDB.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id, guild_id, xp, level, last_message_timestamp)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT (user_id, guild_id) DO UPDATE
		SET xp = xp + excluded.xp,
		    last_message_timestamp = excluded.last_message_timestamp
		WHERE excluded.last_message_timestamp - last_message_timestamp >= ?
		RETURNING xp, level
	`, tbl),
		string(member),
		string(community),
		delta,
		now.UnixMilli(),
		cooldown.Milliseconds(),
	).Scan(&result.XP, &result.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCooldownActive
	}
	if err != nil {
		return nil, classify("AwardXP", err)
	}

	return result, nil
}

// AdvanceLevel moves level from `from` to `to` with a compare-and-set.
func (s *Store) AdvanceLevel(ctx context.Context, community shared.CommunityID, member shared.MemberID, from, to int) (bool, error) {
	tbl, _, err := tables(community)
	if err != nil {
		return false, err
	}

	res, err := s.sqlDB.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET level = ?
		WHERE user_id = ? AND guild_id = ? AND level = ?
	`, tbl), to, string(member), string(community), from)
	if err != nil {
		return false, classify("AdvanceLevel", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("AdvanceLevel", err)
	}
	return n == 1, nil
}

// SetLevel overwrites level and XP, creating the record if needed.
func (s *Store) SetLevel(ctx context.Context, community shared.CommunityID, member shared.MemberID, level int, xp int64) error {
	tbl, _, err := tables(community)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id, guild_id, xp, level, last_message_timestamp)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT (user_id, guild_id) DO UPDATE
		SET xp = excluded.xp, level = excluded.level
	`, tbl), string(member), string(community), xp, level)
	return classify("SetLevel", err)
}

// TopN returns the n highest-XP members.
func (s *Store) TopN(ctx context.Context, community shared.CommunityID, n int) ([]ledger.Member, error) {
	tbl, _, err := tables(community)
	if err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, fmt.Sprintf(`
		SELECT user_id, xp, level, last_message_timestamp FROM %s
		ORDER BY xp DESC
		LIMIT ?
	`, tbl), n)
	if err != nil {
		return nil, classify("TopN", err)
	}
	defer rows.Close()

	members := make([]ledger.Member, 0, n)
	for rows.Next() {
		m := ledger.Member{CommunityID: community}
		var id string
		if err := rows.Scan(&id, &m.XP, &m.Level, &m.LastAwardAt); err != nil {
			return nil, classify("TopN", err)
		}
		m.MemberID = shared.MemberID(id)
		members = append(members, m)
	}

	return members, classify("TopN", rows.Err())
}
