package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/derivekit/derivekit/internal/cli"
	"github.com/derivekit/derivekit/internal/logging"
	"github.com/derivekit/derivekit/internal/presentation/tui"
	"github.com/derivekit/derivekit/pkg/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage derivation sessions",
	Long:  `List, inspect, and remove persistent derivation sessions.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List resumable sessions",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, closeStore := getManager(cmd)
		defer func() { _ = closeStore() }()

		summaries, err := mgr.List(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		if len(summaries) == 0 {
			fmt.Println("No resumable sessions found.")
			return
		}

		for _, s := range summaries {
			name := s.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("%s  %-10s %3d steps  %s  %s\n",
				s.ID, s.Status, s.StepCount, s.UpdatedAt.Format("2006-01-02 15:04"), name)
		}
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Dump the raw state of a session as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, closeStore := getManager(cmd)
		defer func() { _ = closeStore() }()

		sess, err := mgr.Get(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading session '%s': %v\n", args[0], err)
			os.Exit(1)
		}

		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling session: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(data))
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Render a session's derivation trail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, closeStore := getManager(cmd)
		defer func() { _ = closeStore() }()

		sess, err := mgr.Get(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading session '%s': %v\n", args[0], err)
			os.Exit(1)
		}

		render := tui.NewRenderer()
		out, err := render(tui.SessionMarkdown(sess))
		if err != nil {
			fmt.Println(tui.SessionMarkdown(sess))
			return
		}
		fmt.Print(out)
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, closeStore := getManager(cmd)
		defer func() { _ = closeStore() }()

		hasError := false
		for _, sessionID := range args {
			if err := mgr.Delete(cmd.Context(), sessionID); err != nil {
				fmt.Printf("Error removing '%s': %v\n", sessionID, err)
				hasError = true
			} else {
				fmt.Printf("Removed session '%s'\n", sessionID)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}

// getManager assembles a manager for one-shot commands. Logs are discarded;
// errors surface on stdout like the rest of the CLI.
func getManager(cmd *cobra.Command) (*session.Manager, func() error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	mgr, closeStore, err := cli.NewManager(cfg, nil, logging.NewNop(), nil)
	if err != nil {
		fmt.Printf("Error initializing engine: %v\n", err)
		os.Exit(1)
	}
	return mgr, closeStore
}
