// Package ledger defines the per-community XP ledger: member records, the
// free-form settings map and the storage contract every backend implements.
package ledger

import (
	"time"

	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// SETTINGS
// ═══════════════════════════════════════════════════════════════════════════

// SettingKey names a well-known community setting.
type SettingKey string

const (
	// KeyLevelUpChannel holds the announcement channel ID.
	KeyLevelUpChannel SettingKey = "level_up_channel_id"

	// KeyIgnoredChannels holds a comma-joined list of channel IDs.
	KeyIgnoredChannels SettingKey = "ignored_channels"

	// KeyChannelMultipliers holds a JSON object of channel ID to multiplier.
	KeyChannelMultipliers SettingKey = "channel_multipliers"

	// KeyTopUserID holds the member currently holding the top role.
	KeyTopUserID SettingKey = "top_user_id"
)

// WellKnownKeys lists the keys seeded on provisioning.
var WellKnownKeys = []SettingKey{
	KeyLevelUpChannel,
	KeyIgnoredChannels,
	KeyChannelMultipliers,
	KeyTopUserID,
}

// Settings is the sparse key/value map of a provisioned community.
// A nil map never represents "not provisioned"; that is ErrNotProvisioned.
type Settings map[SettingKey]string

// Get returns the value for key or "" if unset.
func (s Settings) Get(key SettingKey) string {
	if s == nil {
		return ""
	}
	return s[key]
}

// LevelUpChannel returns the announcement channel, if configured.
func (s Settings) LevelUpChannel() shared.ChannelID {
	return shared.ChannelID(s.Get(KeyLevelUpChannel))
}

// TopUser returns the persisted top-role holder, if any.
func (s Settings) TopUser() shared.MemberID {
	return shared.MemberID(s.Get(KeyTopUserID))
}

// ═══════════════════════════════════════════════════════════════════════════
// MEMBER
// ═══════════════════════════════════════════════════════════════════════════

// Member is one member's ledger record.
type Member struct {
	CommunityID shared.CommunityID
	MemberID    shared.MemberID
	XP          int64
	Level       int
	// LastAwardAt is epoch milliseconds of the last successful award.
	LastAwardAt int64
}

// CooldownRemaining returns how long until the member may earn again.
func (m Member) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	elapsed := time.Duration(now.UnixMilli()-m.LastAwardAt) * time.Millisecond
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}

// AwardResult is the state of a member record immediately after an award.
type AwardResult struct {
	XP    int64
	Level int
}
