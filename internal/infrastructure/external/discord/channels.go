package discord

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"

	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// Channel returns shared.ErrEntityGone when the channel does not exist or
// belongs to another guild.
func (c *Client) Channel(ctx context.Context, community shared.CommunityID, id shared.ChannelID) (*platform.Channel, error) {
	g, err := guildID(community)
	if err != nil {
		return nil, err
	}
	chID, err := channelID(id)
	if err != nil {
		return nil, err
	}

	ch, err := read(ctx, c, func(s Session) (*discord.Channel, error) { return s.Channel(chID) })
	if err != nil {
		return nil, mapError("Channel", err)
	}
	if ch.GuildID != g {
		return nil, shared.WrapError("platform", "Channel", shared.ErrGone, "channel belongs to another guild",
			fmt.Errorf("channel %s", id))
	}

	out := toChannel(*ch)
	return &out, nil
}

// Children returns the channels filed under category.
func (c *Client) Children(ctx context.Context, community shared.CommunityID, category shared.ChannelID) ([]platform.Channel, error) {
	all, err := c.Channels(ctx, community)
	if err != nil {
		return nil, err
	}

	var children []platform.Channel
	for _, ch := range all {
		if ch.ParentID == category {
			children = append(children, ch)
		}
	}
	return children, nil
}

// Channels lists every channel of the guild.
func (c *Client) Channels(ctx context.Context, community shared.CommunityID) ([]platform.Channel, error) {
	g, err := guildID(community)
	if err != nil {
		return nil, err
	}

	list, err := read(ctx, c, func(s Session) ([]discord.Channel, error) { return s.Channels(g) })
	if err != nil {
		return nil, mapError("Channels", err)
	}

	out := make([]platform.Channel, 0, len(list))
	for _, ch := range list {
		out = append(out, toChannel(ch))
	}
	return out, nil
}

func toChannel(ch discord.Channel) platform.Channel {
	out := platform.Channel{
		ID:       shared.ChannelID(ch.ID.String()),
		Name:     ch.Name,
		Position: ch.Position,
	}
	if ch.ParentID.IsValid() {
		out.ParentID = shared.ChannelID(ch.ParentID.String())
	}

	switch ch.Type {
	case discord.GuildText:
		out.Kind = platform.ChannelText
	case discord.GuildVoice:
		out.Kind = platform.ChannelVoice
	case discord.GuildCategory:
		out.Kind = platform.ChannelCategory
	default:
		out.Kind = platform.ChannelOther
	}
	return out
}
