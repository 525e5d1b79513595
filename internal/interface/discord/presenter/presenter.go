// Package presenter renders command results as Discord embeds.
package presenter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"

	"github.com/ShenPrime/Levelington/internal/application/command"
	"github.com/ShenPrime/Levelington/internal/application/query"
	"github.com/ShenPrime/Levelington/internal/domain/leveling"
)

// Embed colours.
const (
	ColorSuccess  discord.Color = 0x00FF00
	ColorFailure  discord.Color = 0xFF0000
	ColorInfo     discord.Color = 0x0099FF
	ColorGold     discord.Color = 0xFFD700
	ColorSettings discord.Color = 0x3498DB
)

// Discord rejects embed field values longer than this.
const maxFieldLength = 1024

const progressCells = 10

// User-facing plain messages.
const (
	MsgNotSetUp       = "This server has not been set up yet. Please ask an administrator to run the `/setup_levelington` command."
	MsgGuildOnly      = "This command can only be used in a server."
	MsgNoXPSelf       = "You don't have any XP yet. Send some messages!"
	MsgLeaderboardNil = "No one is on the leaderboard yet! Ensure the bot is set up using `/setup_levelington`."
	MsgBotTarget      = "You cannot assign levels to bots."
	MsgGenericFailure = "Something went wrong. Please try again later."
	MsgUnknownChannel = "That channel no longer exists."
	MsgDeleted        = "✅ All server data has been permanently deleted"
	MsgDeleteCanceled = "❌ Data deletion cancelled"
	MsgDeleteTimedOut = "⚠️ Deletion confirmation timed out"
	MsgNotYourButton  = "Only the administrator who started this deletion can answer it."
)

// NoXPFor is the reply when another member has no record.
func NoXPFor(username string) string {
	return username + " doesn't have any XP yet."
}

// FormatMultiplier prints 2 as "2" and 1.5 as "1.5".
func FormatMultiplier(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SetupComplete confirms /setup_levelington.
func SetupComplete(channel discord.ChannelID) discord.Embed {
	return discord.Embed{
		Title:       "✅ Setup Complete",
		Description: "The XP bot has been successfully set up for this server!",
		Color:       ColorSuccess,
		Fields: []discord.EmbedField{
			{Name: "Level Up Announcements", Value: fmt.Sprintf("Will be sent to %s.", channel.Mention())},
		},
		Timestamp: discord.NowTimestamp(),
	}
}

// LevelAssigned confirms /assign_level.
func LevelAssigned(username string, res *command.AssignLevelResult) discord.Embed {
	return discord.Embed{
		Title:       "✅ Level Assigned",
		Description: fmt.Sprintf("Successfully set %s's level to **%d**.", username, res.Level),
		Color:       ColorSuccess,
		Fields: []discord.EmbedField{
			{Name: "XP", Value: strconv.FormatInt(res.XP, 10), Inline: true},
		},
		Timestamp: discord.NowTimestamp(),
	}
}

func targetDescription(res *command.PolicyChangeResult) string {
	if res.Target.IsCategory() {
		return fmt.Sprintf("%s category and %d channels", res.Target.Name, res.Children)
	}
	return "<#" + string(res.Target.ID) + ">"
}

// IgnoreToggled confirms /ignore_channel.
func IgnoreToggled(res *command.PolicyChangeResult) discord.Embed {
	added, removed := len(res.Added), len(res.Removed)

	action := "updated in"
	switch {
	case added > 0 && removed == 0:
		action = "added to"
	case removed > 0 && added == 0:
		action = "removed from"
	}

	return discord.Embed{
		Title: fmt.Sprintf("Channel %s ignore list", action),
		Description: fmt.Sprintf("%s has been %s XP ignoring.\nAdded: %d | Removed: %d",
			targetDescription(res), action, added, removed),
		Color:     ColorSuccess,
		Timestamp: discord.NowTimestamp(),
	}
}

// MultiplierUpdated confirms /xp_multiplier.
func MultiplierUpdated(res *command.PolicyChangeResult) discord.Embed {
	m := FormatMultiplier(res.Multiplier)
	return discord.Embed{
		Title:       "Channel XP Multiplier Updated",
		Description: fmt.Sprintf("%s now have a %sx XP multiplier", targetDescription(res), m),
		Color:       ColorInfo,
		Fields: []discord.EmbedField{
			{Name: "Channels Updated", Value: strconv.Itoa(res.Updated), Inline: true},
			{Name: "Multiplier", Value: m + "x", Inline: true},
		},
		Timestamp: discord.NowTimestamp(),
	}
}

// Rank renders /rank.
func Rank(username string, res *query.MemberXPResult) discord.Embed {
	return discord.Embed{
		Title: username + "'s Rank",
		Color: ColorInfo,
		Fields: []discord.EmbedField{
			{Name: "Level", Value: fmt.Sprintf("**%d**", res.Level), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("**%d** / %d", res.XP, res.NextThreshold), Inline: true},
		},
		Timestamp: discord.NowTimestamp(),
	}
}

// XPStats renders /xp with a progress bar.
func XPStats(username string, res *query.MemberXPResult) discord.Embed {
	return discord.Embed{
		Title: username + "'s XP Stats",
		Color: ColorInfo,
		Fields: []discord.EmbedField{
			{Name: "Level", Value: fmt.Sprintf("**%d**", res.Level), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("**%d** / %d", res.XP, res.NextThreshold), Inline: true},
			{Name: "Progress", Value: fmt.Sprintf("%s (%d/%d)", ProgressBar(res.Progress), res.Progress.Current, res.Progress.Needed)},
		},
		Timestamp: discord.NowTimestamp(),
	}
}

// ProgressBar draws ten cells filled in proportion to p.
func ProgressBar(p leveling.Progress) string {
	filled := 0
	if p.Needed > 0 {
		filled = int((p.Current*progressCells*2 + p.Needed) / (p.Needed * 2))
	}
	filled = max(0, min(progressCells, filled))
	return strings.Repeat("🟩", filled) + strings.Repeat("⬜", progressCells-filled)
}

// LeaderboardText renders one line per ranked member.
func LeaderboardText(rows []query.LeaderboardRow) string {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%d. **%s** - Level %d (%d XP)\n", r.Rank, r.DisplayName, r.Level, r.XP)
	}
	return b.String()
}

// Leaderboard renders /leaderboard.
func Leaderboard(guildName string, res *query.GetLeaderboardResult) discord.Embed {
	return discord.Embed{
		Title:       "🏆 Top 10 XP Leaders in " + guildName,
		Description: LeaderboardText(res.Rows),
		Color:       ColorGold,
		Timestamp:   discord.NowTimestamp(),
	}
}

// IgnoredText renders the ignored-channel field.
func IgnoredText(lines []query.PolicyLine) string {
	if len(lines) == 0 {
		return "None"
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		switch {
		case l.IsCategory:
			out = append(out, fmt.Sprintf("**%s** (Category - All channels ignored)", l.Name))
		case l.Nested:
			out = append(out, fmt.Sprintf("  └─ <#%s> (%s)", l.ChannelID, l.Name))
		default:
			out = append(out, fmt.Sprintf("<#%s> (%s)", l.ChannelID, l.Name))
		}
	}
	return truncate(strings.Join(out, "\n"))
}

// MultipliersText renders the multiplier field.
func MultipliersText(lines []query.PolicyLine) string {
	if len(lines) == 0 {
		return "*All channels have default 1x multiplier*"
	}
	out := make([]string, 0, len(lines)+1)
	for _, l := range lines {
		m := FormatMultiplier(l.Multiplier)
		switch {
		case l.IsCategory:
			out = append(out, fmt.Sprintf("**%s** (Category - %sx multiplier for all channels)", l.Name, m))
		case l.Nested:
			out = append(out, fmt.Sprintf("  └─ <#%s> (%s): x%s", l.ChannelID, l.Name, m))
		default:
			out = append(out, fmt.Sprintf("<#%s> (%s): x%s", l.ChannelID, l.Name, m))
		}
	}
	out = append(out, "\n*All other channels have default 1x multiplier*")
	return truncate(strings.Join(out, "\n"))
}

// ChannelSettings renders /channelsettings.
func ChannelSettings(res *query.ChannelSettingsResult) discord.Embed {
	return discord.Embed{
		Title: "Channel Settings",
		Color: ColorSettings,
		Fields: []discord.EmbedField{
			{Name: "Ignored Channels", Value: IgnoredText(res.Ignored)},
			{Name: "XP Multipliers", Value: MultipliersText(res.Multipliers)},
		},
		Timestamp: discord.NowTimestamp(),
	}
}

// DangerZone asks for deletion confirmation.
func DangerZone(window time.Duration) discord.Embed {
	return discord.Embed{
		Title: "⚠️ **DANGER ZONE** ⚠️",
		Description: "This will **PERMANENTLY DELETE** all server data:\n" +
			"- User XP records\n- Server settings\n- Leaderboard history\n\n" +
			"**This action cannot be undone!**",
		Color: ColorFailure,
		Footer: &discord.EmbedFooter{
			Text: fmt.Sprintf("This request expires in %d seconds.", int(window.Seconds())),
		},
	}
}

func truncate(s string) string {
	if len(s) <= maxFieldLength {
		return s
	}
	const more = "\n…"
	cut := s[:maxFieldLength-len(more)]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + more
}
