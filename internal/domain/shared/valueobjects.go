package shared

import (
	"regexp"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Snowflake IDs are decimal strings of at most 20 digits (uint64 range).
var snowflakeRegex = regexp.MustCompile(`^[0-9]{1,20}$`)

// IsSnowflake reports whether s is a well-formed platform snowflake.
func IsSnowflake(s string) bool {
	if !snowflakeRegex.MatchString(s) {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// CommunityID identifies a community (tenant). It is the only value ever
// interpolated into a storage namespace name, so it is validated on creation.
type CommunityID string

// NewCommunityID creates a CommunityID with validation.
func NewCommunityID(id string) (CommunityID, error) {
	id = strings.TrimSpace(id)
	if !IsSnowflake(id) {
		return "", ErrInvalidCommunity
	}
	return CommunityID(id), nil
}

// IsValid checks if the community ID is a well-formed snowflake.
func (c CommunityID) IsValid() bool {
	return IsSnowflake(string(c))
}

// String returns the string representation.
func (c CommunityID) String() string {
	return string(c)
}

// Namespace returns the per-community storage namespace name.
func (c CommunityID) Namespace() string {
	return "guild_" + string(c)
}

// MemberID identifies a member within a community.
type MemberID string

// IsEmpty checks if the ID is empty.
func (m MemberID) IsEmpty() bool {
	return m == ""
}

// String returns the string representation.
func (m MemberID) String() string {
	return string(m)
}

// ChannelID identifies a channel or a category.
type ChannelID string

// IsEmpty checks if the ID is empty.
func (c ChannelID) IsEmpty() bool {
	return c == ""
}

// String returns the string representation.
func (c ChannelID) String() string {
	return string(c)
}
