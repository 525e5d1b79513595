package discord

import (
	"context"
	"net/http"
	"testing"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

const (
	guild shared.CommunityID = "111111111111111111"
	other discord.GuildID    = 222222222222222222
)

type fakeSession struct {
	channels    []discord.Channel
	roles       []discord.Role
	members     map[discord.UserID]discord.Member
	memberCalls int
	created     []api.CreateRoleData
	added       []discord.RoleID
	removed     []discord.RoleID
	sent        []discord.Embed
	sendErr     error
}

func (f *fakeSession) Channel(id discord.ChannelID) (*discord.Channel, error) {
	for _, ch := range f.channels {
		if ch.ID == id {
			return &ch, nil
		}
	}
	return nil, &httputil.HTTPError{Status: http.StatusNotFound}
}

func (f *fakeSession) Channels(discord.GuildID) ([]discord.Channel, error) {
	return f.channels, nil
}

func (f *fakeSession) Roles(discord.GuildID) ([]discord.Role, error) {
	return f.roles, nil
}

func (f *fakeSession) CreateRole(_ discord.GuildID, data api.CreateRoleData) (*discord.Role, error) {
	f.created = append(f.created, data)
	role := discord.Role{ID: 777, Name: data.Name, Color: data.Color}
	f.roles = append(f.roles, role)
	return &role, nil
}

func (f *fakeSession) Member(_ discord.GuildID, id discord.UserID) (*discord.Member, error) {
	f.memberCalls++
	m, ok := f.members[id]
	if !ok {
		return nil, &httputil.HTTPError{Status: http.StatusNotFound}
	}
	return &m, nil
}

func (f *fakeSession) AddRole(_ discord.GuildID, _ discord.UserID, role discord.RoleID, _ api.AddRoleData) error {
	f.added = append(f.added, role)
	return nil
}

func (f *fakeSession) RemoveRole(_ discord.GuildID, _ discord.UserID, role discord.RoleID, _ api.AuditLogReason) error {
	f.removed = append(f.removed, role)
	return nil
}

func (f *fakeSession) SendEmbeds(_ discord.ChannelID, embeds ...discord.Embed) (*discord.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, embeds...)
	return &discord.Message{}, nil
}

func newTestClient(f *fakeSession) *Client {
	return newClient(func(context.Context) Session { return f }, nil)
}

func TestFetchMember(t *testing.T) {
	f := &fakeSession{members: map[discord.UserID]discord.Member{
		1: {User: discord.User{ID: 1, Username: "alice"}, RoleIDs: []discord.RoleID{9}},
		2: {User: discord.User{ID: 2, Username: "robot", Bot: true}, Nick: "Robo"},
	}}
	c := newTestClient(f)
	ctx := context.Background()

	m, err := c.FetchMember(ctx, guild, "1")
	require.NoError(t, err)
	assert.Equal(t, "alice", m.DisplayName)
	assert.True(t, m.HasRole("9"))

	m, err = c.FetchMember(ctx, guild, "2")
	require.NoError(t, err)
	assert.Equal(t, "Robo", m.DisplayName)
	assert.True(t, m.IsAutomated)

	f.memberCalls = 0
	_, err = c.FetchMember(ctx, guild, "3")
	assert.True(t, shared.IsEntityGone(err))
	assert.Equal(t, 1, f.memberCalls, "not found is not retried")

	_, err = c.FetchMember(ctx, guild, "not-a-snowflake")
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestEnsureRole(t *testing.T) {
	f := &fakeSession{roles: []discord.Role{{ID: 5, Name: "biggest yapper"}}}
	c := newTestClient(f)

	id, err := c.EnsureRole(context.Background(), guild, "Biggest Yapper", 0xFFD700)
	require.NoError(t, err)
	assert.Equal(t, platform.RoleID("5"), id)
	assert.Empty(t, f.created)

	f.roles = nil
	id, err = c.EnsureRole(context.Background(), guild, "Biggest Yapper", 0xFFD700)
	require.NoError(t, err)
	assert.Equal(t, platform.RoleID("777"), id)
	require.Len(t, f.created, 1)
	assert.Equal(t, discord.Color(0xFFD700), f.created[0].Color)
}

func TestGrantAndRevoke(t *testing.T) {
	f := &fakeSession{}
	c := newTestClient(f)

	require.NoError(t, c.GrantRole(context.Background(), guild, "1", "5"))
	require.NoError(t, c.RevokeRole(context.Background(), guild, "1", "5"))
	assert.Equal(t, []discord.RoleID{5}, f.added)
	assert.Equal(t, []discord.RoleID{5}, f.removed)
}

func TestChannels(t *testing.T) {
	g := discord.GuildID(111111111111111111)
	f := &fakeSession{channels: []discord.Channel{
		{ID: 10, GuildID: g, Name: "General", Type: discord.GuildCategory},
		{ID: 11, GuildID: g, ParentID: 10, Name: "chat", Type: discord.GuildText},
		{ID: 12, GuildID: g, ParentID: 10, Name: "Lounge", Type: discord.GuildVoice},
		{ID: 13, GuildID: g, Name: "loose", Type: discord.GuildText},
		{ID: 20, GuildID: other, Name: "elsewhere", Type: discord.GuildText},
	}}
	c := newTestClient(f)
	ctx := context.Background()

	cat, err := c.Channel(ctx, guild, "10")
	require.NoError(t, err)
	assert.True(t, cat.IsCategory())

	children, err := c.Children(ctx, guild, "10")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, platform.ChannelText, children[0].Kind)
	assert.Equal(t, platform.ChannelVoice, children[1].Kind)

	_, err = c.Channel(ctx, guild, "20")
	assert.True(t, shared.IsEntityGone(err))

	_, err = c.Channel(ctx, guild, "99")
	assert.True(t, shared.IsEntityGone(err))
}

func TestAnnounceLevelUp(t *testing.T) {
	f := &fakeSession{}
	c := newTestClient(f)

	require.NoError(t, c.AnnounceLevelUp(context.Background(), guild, "10", "42", 3))
	require.Len(t, f.sent, 1)
	assert.Equal(t, "Level Up!", f.sent[0].Title)
	assert.Equal(t, "<@42> has reached level **3**! 🎉", f.sent[0].Description)

	f.sendErr = &httputil.HTTPError{Status: http.StatusForbidden}
	err := c.AnnounceLevelUp(context.Background(), guild, "10", "42", 4)
	assert.True(t, shared.IsEntityGone(err))
}
