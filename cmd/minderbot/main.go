// Package main is the entry point for the minderbot CLI.
package main

import (
	"os"

	"github.com/MinderBot/MinderBot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
