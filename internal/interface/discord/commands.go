package discord

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
)

// Slash command names.
const (
	CmdSetup         = "setup_levelington"
	CmdAssignLevel   = "assign_level"
	CmdIgnoreChannel = "ignore_channel"
	CmdXPMultiplier  = "xp_multiplier"
	CmdDeleteData    = "delete_server_data"
	CmdRank          = "rank"
	CmdXP            = "xp"
	CmdLeaderboard   = "leaderboard"
	CmdChannelConfig = "channelsettings"
)

// Button custom IDs of the deletion prompt.
const (
	ButtonConfirmDelete = "confirm_delete"
	ButtonCancelDelete  = "cancel_delete"
)

// Commands returns every slash command the bot serves. Admin commands are
// hidden from members without the Administrator permission.
func Commands() []api.CreateCommandData {
	admin := discord.NewPermissions(discord.PermissionAdministrator)

	return []api.CreateCommandData{
		{
			Name:        CmdSetup,
			Description: "Sets up the XP bot for this server (Admin Only).",
			Options: []discord.CommandOption{
				&discord.ChannelOption{
					OptionName:   "level_up_channel",
					Description:  "The channel where level up announcements should be sent.",
					Required:     true,
					ChannelTypes: []discord.ChannelType{discord.GuildText},
				},
			},
			DefaultMemberPermissions: admin,
			NoDMPermission:           true,
		},
		{
			Name:        CmdAssignLevel,
			Description: "Manually assigns a level to a user (Admin Only).",
			Options: []discord.CommandOption{
				&discord.UserOption{
					OptionName:  "user",
					Description: "The user whose level you want to set.",
					Required:    true,
				},
				&discord.IntegerOption{
					OptionName:  "level",
					Description: "The level to assign to the user (must be 0 or greater).",
					Required:    true,
					Min:         option.NewInt(0),
				},
			},
			DefaultMemberPermissions: admin,
			NoDMPermission:           true,
		},
		{
			Name:        CmdIgnoreChannel,
			Description: "Add/remove channel from XP ignore list",
			Options: []discord.CommandOption{
				&discord.ChannelOption{
					OptionName:  "channel",
					Description: "Channel to toggle XP ignoring",
					Required:    true,
				},
			},
			DefaultMemberPermissions: admin,
			NoDMPermission:           true,
		},
		{
			Name:        CmdXPMultiplier,
			Description: "Set XP multiplier for a channel",
			Options: []discord.CommandOption{
				&discord.ChannelOption{
					OptionName:  "channel",
					Description: "Channel to modify XP multiplier",
					Required:    true,
				},
				&discord.NumberOption{
					OptionName:  "multiplier",
					Description: "XP multiplier (0.1-10.0)",
					Required:    true,
					Min:         option.NewFloat(0.1),
					Max:         option.NewFloat(10.0),
				},
			},
			DefaultMemberPermissions: admin,
			NoDMPermission:           true,
		},
		{
			Name:                     CmdDeleteData,
			Description:              "Delete ALL server data including XP records and settings (ADMIN ONLY)",
			DefaultMemberPermissions: admin,
			NoDMPermission:           true,
		},
		{
			Name:           CmdRank,
			Description:    "Displays your current level and XP progress.",
			NoDMPermission: true,
		},
		{
			Name:        CmdXP,
			Description: "Checks the XP and level of a specific user.",
			Options: []discord.CommandOption{
				&discord.UserOption{
					OptionName:  "user",
					Description: "The user to check the XP for.",
					Required:    true,
				},
			},
			NoDMPermission: true,
		},
		{
			Name:           CmdLeaderboard,
			Description:    "Shows the top 10 users by XP in this server.",
			NoDMPermission: true,
		},
		{
			Name:           CmdChannelConfig,
			Description:    "Shows ignored channels and XP multipliers.",
			NoDMPermission: true,
		},
	}
}

// CommandDeployer is the part of *api.Client used to register commands.
type CommandDeployer interface {
	CurrentApplication() (*discord.Application, error)
	BulkOverwriteCommands(appID discord.AppID, commands []api.CreateCommandData) ([]discord.Command, error)
	BulkOverwriteGuildCommands(appID discord.AppID, guildID discord.GuildID, commands []api.CreateCommandData) ([]discord.Command, error)
}

// DeployCommands replaces the registered commands globally, or for one guild
// when guild is valid.
func DeployCommands(_ context.Context, client CommandDeployer, guild discord.GuildID) ([]discord.Command, error) {
	app, err := client.CurrentApplication()
	if err != nil {
		return nil, fmt.Errorf("deploy commands: current application: %w", err)
	}

	var registered []discord.Command
	if guild.IsValid() {
		registered, err = client.BulkOverwriteGuildCommands(app.ID, guild, Commands())
	} else {
		registered, err = client.BulkOverwriteCommands(app.ID, Commands())
	}
	if err != nil {
		return nil, fmt.Errorf("deploy commands: %w", err)
	}
	return registered, nil
}
