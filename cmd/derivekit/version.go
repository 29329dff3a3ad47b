package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/derivekit/derivekit"
	"github.com/derivekit/derivekit/internal/presentation/tui"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of derivekit",
	Run: func(cmd *cobra.Command, args []string) {
		tui.PrintBanner()
		fmt.Printf("derivekit version %s\n", derivekit.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
