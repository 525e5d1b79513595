// Package platform holds the chat-platform entities the core reads through
// its collaborator interfaces: members, channels and roles.
package platform

import "github.com/ShenPrime/Levelington/internal/domain/shared"

// RoleID identifies a role within a community.
type RoleID string

// Member is a community member as seen by the platform.
type Member struct {
	ID          shared.MemberID
	DisplayName string
	IsAutomated bool
	Roles       []RoleID
}

// HasRole reports whether the member currently holds role.
func (m Member) HasRole(role RoleID) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ChannelKind classifies a channel.
type ChannelKind int

const (
	ChannelText ChannelKind = iota
	ChannelVoice
	ChannelCategory
	ChannelOther
)

// Channel is a channel or category of a community.
type Channel struct {
	ID       shared.ChannelID
	ParentID shared.ChannelID
	Name     string
	Kind     ChannelKind
	Position int
}

// IsCategory reports whether the channel groups other channels.
func (c Channel) IsCategory() bool {
	return c.Kind == ChannelCategory
}
