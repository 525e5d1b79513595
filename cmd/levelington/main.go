// Command levelington runs the Levelington Discord bot.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "levelington",
		Short:   "Levelington - XP and levels for Discord servers",
		Version: version,
		Long: `Levelington awards XP for chat activity, announces level-ups and keeps
a "Top Levelers" role on the server's leaderboard.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(deployCommandsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed).Sprint("error:"), err)
		os.Exit(1)
	}
}
