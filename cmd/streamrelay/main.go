package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "streamrelay",
	Short: "Relay Streamlabs alerts into game server commands",
	Long: `streamrelay listens to the Streamlabs socket feed, matches each alert
against the configured actions and sends the resulting broadcasts and
commands to the game server sink.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(clientCommands()...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
