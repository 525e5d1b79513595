package command

import (
	"context"

	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// Locker serializes work per community. The returned func releases the lock.
type Locker interface {
	Acquire(ctx context.Context, community shared.CommunityID) (release func(), err error)
}

// RoleManager manages role membership on the chat platform.
type RoleManager interface {
	// EnsureRole returns the ID of the named role, creating it if absent.
	EnsureRole(ctx context.Context, community shared.CommunityID, name string, color int) (platform.RoleID, error)

	// FetchMember returns shared.ErrEntityGone when the member left.
	FetchMember(ctx context.Context, community shared.CommunityID, member shared.MemberID) (*platform.Member, error)

	GrantRole(ctx context.Context, community shared.CommunityID, member shared.MemberID, role platform.RoleID) error
	RevokeRole(ctx context.Context, community shared.CommunityID, member shared.MemberID, role platform.RoleID) error
}

// ChannelDirectory resolves channels and category children.
type ChannelDirectory interface {
	// Channel returns shared.ErrEntityGone when the channel does not exist.
	Channel(ctx context.Context, community shared.CommunityID, id shared.ChannelID) (*platform.Channel, error)

	// Children returns the channels currently filed under category.
	Children(ctx context.Context, community shared.CommunityID, category shared.ChannelID) ([]platform.Channel, error)
}

// AwardRecorder observes pipeline outcomes. Optional.
type AwardRecorder interface {
	AwardOutcome(outcome Outcome, delta int64)
}
