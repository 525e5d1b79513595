package discord

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"

	"github.com/ShenPrime/Levelington/internal/domain/shared"
	"github.com/ShenPrime/Levelington/pkg/logger"
)

// LevelUpColor is the embed colour of level-up announcements.
const LevelUpColor discord.Color = 0x00FF00

// LevelUpEmbed renders the announcement for member reaching level.
func LevelUpEmbed(member shared.MemberID, level int) discord.Embed {
	return discord.Embed{
		Title:       "Level Up!",
		Description: fmt.Sprintf("<@%s> has reached level **%d**! 🎉", member, level),
		Color:       LevelUpColor,
	}
}

// AnnounceLevelUp posts the level-up embed. Sending is not retried.
func (c *Client) AnnounceLevelUp(ctx context.Context, community shared.CommunityID, channel shared.ChannelID, member shared.MemberID, level int) error {
	chID, err := channelID(channel)
	if err != nil {
		return err
	}

	err = c.write(ctx, func(s Session) error {
		_, err := s.SendEmbeds(chID, LevelUpEmbed(member, level))
		return err
	})
	if err != nil {
		return mapError("AnnounceLevelUp", err)
	}

	c.logger.Debug("announced level up", logger.Guild(community.String()), logger.Member(member.String()), "level", level)
	return nil
}
