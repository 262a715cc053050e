package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MinderBot/MinderBot/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("MinderBot Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and channel status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("MinderBot Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Println("Config:  found (" + path + ")")
			} else {
				fmt.Println("Config:  not found, defaults apply (" + path + ")")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			return
		}

		if cfg.Interpreter.APIKey != "" {
			fmt.Println("Interpreter key: set")
		} else {
			fmt.Println("Interpreter key: missing")
		}

		if cfg.Channels.WhatsApp.Enabled {
			fmt.Println("WhatsApp: enabled")
			waDB := filepath.Join(cfg.Paths.DataDir, "whatsapp.db")
			if _, err := os.Stat(waDB); err == nil {
				fmt.Println("WhatsApp link: session found")
			} else {
				fmt.Println("WhatsApp link: no session, QR pairing needed")
				fmt.Println("WhatsApp QR:   " + filepath.Join(cfg.Paths.DataDir, "whatsapp-qr.png"))
			}
		} else {
			fmt.Println("WhatsApp: disabled")
		}
		if cfg.Channels.Slack.Enabled {
			fmt.Println("Slack: enabled")
		} else {
			fmt.Println("Slack: disabled")
		}
		if cfg.Events.Enabled {
			fmt.Printf("Events: enabled (%s -> %s)\n", cfg.Events.Brokers, cfg.Events.Topic)
		} else {
			fmt.Println("Events: disabled")
		}

		if _, err := os.Stat(cfg.Paths.DBPath()); err == nil {
			fmt.Println("Database: " + cfg.Paths.DBPath())
		} else {
			fmt.Println("Database: not created yet")
		}
	},
}
