// Package cli implements the minderbot command-line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/MinderBot/MinderBot/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  __  __ _           _           ____        _\n" +
		" |  \\/  (_)_ __   __| | ___ _ __| __ )  ___ | |_\n" +
		" | |\\/| | | '_ \\ / _` |/ _ \\ '__|  _ \\ / _ \\| __|\n" +
		" | |  | | | | | | (_| |  __/ |  | |_) | (_) | |_\n" +
		" |_|  |_|_|_| |_|\\__,_|\\___|_|  |____/ \\___/ \\__|\n"
)

var rootCmd = &cobra.Command{
	Use:   "minderbot",
	Short: "MinderBot - reminders, lists and memories over chat",
	Long:  color.CyanString(logo) + "\nA personal reminder assistant that lives in your messaging apps.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(workerCmd)
}

func printHeader(title string) {
	fmt.Println()
	color.New(color.FgCyan, color.Bold).Println(title)
	fmt.Println()
}
