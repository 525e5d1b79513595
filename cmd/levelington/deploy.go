package main

import (
	"context"
	"fmt"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShenPrime/Levelington/config"
	discordbot "github.com/ShenPrime/Levelington/internal/interface/discord"
)

func deployCommandsCmd() *cobra.Command {
	var guild string

	cmd := &cobra.Command{
		Use:   "deploy-commands",
		Short: "Register the slash commands with Discord",
		Long: `Replace the bot's registered slash commands with the current set.

Without --guild the commands are registered globally, which can take up to an
hour to propagate. With --guild (or DISCORD_GUILD_ID) they are registered for
that server only and update instantly.

Examples:
  levelington deploy-commands
  levelington deploy-commands --guild 111111111111111111`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if guild == "" {
				guild = cfg.Discord.GuildID
			}

			var guildID discord.GuildID
			if guild != "" {
				sf, err := discord.ParseSnowflake(guild)
				if err != nil {
					return fmt.Errorf("invalid guild id %q: %w", guild, err)
				}
				guildID = discord.GuildID(sf)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client := api.NewClient("Bot " + cfg.Discord.Token).WithContext(ctx)
			registered, err := discordbot.DeployCommands(ctx, client, guildID)
			if err != nil {
				return err
			}

			scope := "globally"
			if guildID.IsValid() {
				scope = "for guild " + guildID.String()
			}
			fmt.Printf("%s registered %d commands %s\n",
				color.New(color.FgGreen).Sprint("✓"), len(registered), scope)
			for _, c := range registered {
				fmt.Printf("  /%s\n", color.New(color.FgCyan).Sprint(c.Name))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&guild, "guild", "", "register for one guild instead of globally")
	return cmd
}
