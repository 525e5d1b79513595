package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Store on per-community schemas.
type LedgerRepository struct {
	conn     *Connection
	migrator *Migrator
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{
		conn:     conn,
		migrator: NewMigrator(conn),
	}
}

var _ ledger.Store = (*LedgerRepository)(nil)

// schema returns the quoted schema identifier. IDs are re-validated here so no
// caller can reach SQL with an unchecked value.
func schema(community shared.CommunityID) (string, error) {
	if !community.IsValid() {
		return "", shared.ErrInvalidCommunity
	}
	return pgx.Identifier{community.Namespace()}.Sanitize(), nil
}

func table(community shared.CommunityID, name string) (string, error) {
	if !community.IsValid() {
		return "", shared.ErrInvalidCommunity
	}
	return pgx.Identifier{community.Namespace(), name}.Sanitize(), nil
}

// classify converts driver errors into ledger errors.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsUndefinedTable(err), IsInvalidSchema(err):
		return shared.WrapError("ledger", op, shared.ErrNotProvisioned, "namespace does not exist", err)
	default:
		return shared.WrapError("ledger", op, shared.ErrTransientStorage, "query failed", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// NAMESPACE LIFECYCLE
// ─────────────────────────────────────────────────────────────────────────────

// Provision creates the community schema, applies migrations and seeds the
// well-known settings keys.
func (r *LedgerRepository) Provision(ctx context.Context, community shared.CommunityID) error {
	sch, err := schema(community)
	if err != nil {
		return err
	}

	err = r.migrator.Migrate(ctx, sch)
	if IsUniqueViolation(err) {
		// Lost a CREATE SCHEMA race with a concurrent setup; the winner's
		// schema is now visible.
		err = r.migrator.Migrate(ctx, sch)
	}
	if err != nil {
		return shared.WrapError("ledger", "Provision", shared.ErrProvisioning, "migrate namespace", err)
	}

	settings, _ := table(community, "settings")
	batch := &pgx.Batch{}
	for _, key := range ledger.WellKnownKeys {
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s (setting_key, setting_value)
			VALUES ($1, '')
			ON CONFLICT (setting_key) DO NOTHING
		`, settings), string(key))
	}

	br := r.conn.Pool().SendBatch(ctx, batch)
	defer br.Close()

	for range ledger.WellKnownKeys {
		if _, err := br.Exec(); err != nil {
			return shared.WrapError("ledger", "Provision", shared.ErrProvisioning, "seed settings", err)
		}
	}

	return nil
}

// Teardown drops the community schema and everything in it.
func (r *LedgerRepository) Teardown(ctx context.Context, community shared.CommunityID) error {
	sch, err := schema(community)
	if err != nil {
		return err
	}

	if _, err := r.conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+sch+" CASCADE"); err != nil {
		return classify("Teardown", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SETTINGS
// ─────────────────────────────────────────────────────────────────────────────

// Settings returns all settings of the community.
func (r *LedgerRepository) Settings(ctx context.Context, community shared.CommunityID) (ledger.Settings, error) {
	tbl, err := table(community, "settings")
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, fmt.Sprintf(
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
	INSERT INTO %s (setting_key, setting_value)
	VALUES ($1, $2)
	ON CONFLICT (setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value
`

// SetSetting upserts one setting.
func (r *LedgerRepository) SetSetting(ctx context.Context, community shared.CommunityID, key ledger.SettingKey, value string) error {
	tbl, err := table(community, "settings")
	if err != nil {
		return err
	}

	if _, err := r.conn.Exec(ctx, fmt.Sprintf(upsertSettingSQL, tbl), string(key), value); err != nil {
		return classify("SetSetting", err)
	}
	return nil
}

// SetSettings upserts several settings atomically.
func (r *LedgerRepository) SetSettings(ctx context.Context, community shared.CommunityID, values map[ledger.SettingKey]string) error {
	tbl, err := table(community, "settings")
	if err != nil {
		return err
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := fmt.Sprintf(upsertSettingSQL, tbl)
		for key, value := range values {
			if _, err := tx.Exec(ctx, query, string(key), value); err != nil {
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
func (r *LedgerRepository) Member(ctx context.Context, community shared.CommunityID, member shared.MemberID) (*ledger.Member, error) {
	tbl, err := table(community, "users")
	if err != nil {
		return nil, err
	}

	m := &ledger.Member{CommunityID: community, MemberID: member}
	err = r.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT xp, level, last_message_timestamp
		FROM %s
		WHERE user_id = $1 AND guild_id = $2
	`, tbl), string(member), string(community)).Scan(&m.XP, &m.Level, &m.LastAwardAt)
	if IsNoRows(err) {
		return nil, shared.ErrMemberNotFound
	}
	if err != nil {
		return nil, classify("Member", err)
	}

	return m, nil
}

// AwardXP performs the cooldown-gated increment as one statement. When the
// conflict branch's WHERE rejects the update no row is returned.
func (r *LedgerRepository) AwardXP(
	ctx context.Context,
	community shared.CommunityID,
	member shared.MemberID,
	delta int64,
	now time.Time,
	cooldown time.Duration,
) (*ledger.AwardResult, error) {
	tbl, err := table(community, "users")
	if err != nil {
		return nil, err
	}

	result := &ledger.AwardResult{}
	err = r.conn.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s AS u (user_id, guild_id, xp, level, last_message_timestamp)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (user_id, guild_id) DO UPDATE
		SET xp = u.xp + EXCLUDED.xp,
		    last_message_timestamp = EXCLUDED.last_message_timestamp
		WHERE EXCLUDED.last_message_timestamp - u.last_message_timestamp >= $5
		RETURNING xp, level
	`, tbl),
		string(member),
		string(community),
		delta,
		now.UnixMilli(),
		cooldown.Milliseconds(),
	).Scan(&result.XP, &result.Level)
	if IsNoRows(err) {
		return nil, shared.ErrCooldownActive
	}
	if err != nil {
		return nil, classify("AwardXP", err)
	}

	return result, nil
}

// AdvanceLevel moves level from `from` to `to` with a compare-and-set.
func (r *LedgerRepository) AdvanceLevel(ctx context.Context, community shared.CommunityID, member shared.MemberID, from, to int) (bool, error) {
	tbl, err := table(community, "users")
	if err != nil {
		return false, err
	}

	tag, err := r.conn.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET level = $3
		WHERE user_id = $1 AND guild_id = $2 AND level = $4
	`, tbl), string(member), string(community), to, from)
	if err != nil {
		return false, classify("AdvanceLevel", err)
	}

	return tag.RowsAffected() == 1, nil
}

// SetLevel overwrites level and XP, creating the record if needed.
func (r *LedgerRepository) SetLevel(ctx context.Context, community shared.CommunityID, member shared.MemberID, level int, xp int64) error {
	tbl, err := table(community, "users")
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id, guild_id, xp, level, last_message_timestamp)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (user_id, guild_id) DO UPDATE
		SET xp = EXCLUDED.xp, level = EXCLUDED.level
	`, tbl), string(member), string(community), xp, level)
	return classify("SetLevel", err)
}

// TopN returns the n highest-XP members.
func (r *LedgerRepository) TopN(ctx context.Context, community shared.CommunityID, n int) ([]ledger.Member, error) {
	tbl, err := table(community, "users")
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT user_id, xp, level, last_message_timestamp
		FROM %s
		ORDER BY xp DESC
		LIMIT $1
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

// Ping verifies connectivity.
func (r *LedgerRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}
