package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/derivekit/derivekit"
	"github.com/derivekit/derivekit/internal/cli"
	mcpAdapter "github.com/derivekit/derivekit/pkg/adapters/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the derivation engine as an MCP server over stdio.
This allows AI agents (like Claude Desktop) to drive derivation sessions
as tools: start, load formulas, apply operations, and archive results.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		// Logs go to stderr so they don't corrupt JSON-RPC on stdout.
		logger := cli.NewLogger(cfg, true)
		log.SetOutput(os.Stderr)

		mgr, closeStore, err := cli.NewManager(cfg, nil, logger, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing engine: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = closeStore() }()

		srv := mcpAdapter.NewServer(mgr, derivekit.Version, mcpAdapter.WithLogger(logger))

		logger.Info("starting MCP server (stdio)")
		if err := srv.ServeStdio(); err != nil {
			logger.Error("MCP server execution failed", "err", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
