package ledger

import (
	"context"
	"time"

	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER STORE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Store is the per-community ledger. Each community lives in its own isolated
// namespace; every method other than Provision and Teardown returns
// shared.ErrNotProvisioned when that namespace does not exist.
//
// Implementations live in the infrastructure layer (PostgreSQL, SQLite).
type Store interface {
	// ──────────────────────────────────────────────────────────────────────────
	// NAMESPACE LIFECYCLE
	// ──────────────────────────────────────────────────────────────────────────

	// Provision creates the namespace and its tables if absent and seeds the
	// well-known settings keys with empty values. Idempotent.
	Provision(ctx context.Context, community shared.CommunityID) error

	// Teardown irreversibly destroys the namespace and everything in it.
	// Idempotent.
	Teardown(ctx context.Context, community shared.CommunityID) error

	// ──────────────────────────────────────────────────────────────────────────
	// SETTINGS
	// ──────────────────────────────────────────────────────────────────────────

	// Settings returns every stored setting of the community.
	Settings(ctx context.Context, community shared.CommunityID) (Settings, error)

	// SetSetting upserts one key. Last write wins.
	SetSetting(ctx context.Context, community shared.CommunityID, key SettingKey, value string) error

	// SetSettings upserts several keys in a single transaction.
	SetSettings(ctx context.Context, community shared.CommunityID, values map[SettingKey]string) error

	// ──────────────────────────────────────────────────────────────────────────
	// MEMBERS
	// ──────────────────────────────────────────────────────────────────────────

	// Member returns the member's record, or shared.ErrMemberNotFound.
	Member(ctx context.Context, community shared.CommunityID, member shared.MemberID) (*Member, error)

	// AwardXP atomically adds delta to the member's XP and stamps now as the
	// last award time, creating the record at level 0 if absent. The write is
	// conditional on the cooldown having elapsed since the stored timestamp;
	// otherwise nothing changes and shared.ErrCooldownActive is returned.
	AwardXP(ctx context.Context, community shared.CommunityID, member shared.MemberID, delta int64, now time.Time, cooldown time.Duration) (*AwardResult, error)

	// AdvanceLevel sets level to `to` only if it is still `from`, and reports
	// whether this call performed the transition. XP is left unchanged.
	AdvanceLevel(ctx context.Context, community shared.CommunityID, member shared.MemberID, from, to int) (bool, error)

	// SetLevel overwrites the member's level and sets XP to xp, creating the
	// record if absent.
	SetLevel(ctx context.Context, community shared.CommunityID, member shared.MemberID, level int, xp int64) error

	// TopN returns up to n members ordered by XP descending.
	TopN(ctx context.Context, community shared.CommunityID, n int) ([]Member, error)

	// ──────────────────────────────────────────────────────────────────────────
	// HEALTH
	// ──────────────────────────────────────────────────────────────────────────

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}
