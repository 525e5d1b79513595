package discord

import (
	"context"
	"strings"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"

	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
	"github.com/ShenPrime/Levelington/pkg/logger"
)

const auditReason api.AuditLogReason = "Levelington top contributor sync"

// EnsureRole returns the ID of the named role, creating it when the guild has
// none. Name matching is case-insensitive.
func (c *Client) EnsureRole(ctx context.Context, community shared.CommunityID, name string, color int) (platform.RoleID, error) {
	g, err := guildID(community)
	if err != nil {
		return "", err
	}

	roles, err := read(ctx, c, func(s Session) ([]discord.Role, error) { return s.Roles(g) })
	if err != nil {
		return "", mapError("EnsureRole", err)
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, name) {
			return platform.RoleID(r.ID.String()), nil
		}
	}

	var created *discord.Role
	err = c.write(ctx, func(s Session) error {
		var err error
		created, err = s.CreateRole(g, api.CreateRoleData{
			Name:           name,
			Color:          discord.Color(color),
			Hoist:          true,
			AuditLogReason: auditReason,
		})
		return err
	})
	if err != nil {
		return "", mapError("EnsureRole", err)
	}

	c.logger.Info("created top contributor role", logger.Guild(community.String()), "role_id", created.ID.String())
	return platform.RoleID(created.ID.String()), nil
}

// FetchMember returns shared.ErrEntityGone when the user left the guild.
func (c *Client) FetchMember(ctx context.Context, community shared.CommunityID, member shared.MemberID) (*platform.Member, error) {
	g, err := guildID(community)
	if err != nil {
		return nil, err
	}
	u, err := userID(member)
	if err != nil {
		return nil, err
	}

	m, err := read(ctx, c, func(s Session) (*discord.Member, error) { return s.Member(g, u) })
	if err != nil {
		return nil, mapError("FetchMember", err)
	}
	return toMember(m), nil
}

// GrantRole adds role to member.
func (c *Client) GrantRole(ctx context.Context, community shared.CommunityID, member shared.MemberID, role platform.RoleID) error {
	g, u, r, err := roleTarget(community, member, role)
	if err != nil {
		return err
	}
	err = c.write(ctx, func(s Session) error {
		return s.AddRole(g, u, r, api.AddRoleData{AuditLogReason: auditReason})
	})
	return mapError("GrantRole", err)
}

// RevokeRole removes role from member.
func (c *Client) RevokeRole(ctx context.Context, community shared.CommunityID, member shared.MemberID, role platform.RoleID) error {
	g, u, r, err := roleTarget(community, member, role)
	if err != nil {
		return err
	}
	err = c.write(ctx, func(s Session) error {
		return s.RemoveRole(g, u, r, auditReason)
	})
	return mapError("RevokeRole", err)
}

func roleTarget(community shared.CommunityID, member shared.MemberID, role platform.RoleID) (discord.GuildID, discord.UserID, discord.RoleID, error) {
	g, err := guildID(community)
	if err != nil {
		return 0, 0, 0, err
	}
	u, err := userID(member)
	if err != nil {
		return 0, 0, 0, err
	}
	sf, err := snowflake("role", string(role))
	if err != nil {
		return 0, 0, 0, err
	}
	return g, u, discord.RoleID(sf), nil
}

func toMember(m *discord.Member) *platform.Member {
	name := m.Nick
	if name == "" {
		name = m.User.Username
	}

	roles := make([]platform.RoleID, 0, len(m.RoleIDs))
	for _, id := range m.RoleIDs {
		roles = append(roles, platform.RoleID(id.String()))
	}

	return &platform.Member{
		ID:          shared.MemberID(m.User.ID.String()),
		DisplayName: name,
		IsAutomated: m.User.Bot,
		Roles:       roles,
	}
}
