package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/derivekit/derivekit/internal/presentation/tui"
	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/ports"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Browse the archive of completed derivations",
	Long:  `List, search, render, and remove archived derivation results.`,
}

var resultsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List archived results",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, closeStore := getManager(cmd)
		defer func() { _ = closeStore() }()

		category, _ := cmd.Flags().GetString("category")
		results, err := mgr.Repository().Find(cmd.Context(), ports.ResultQuery{Category: category})
		if err != nil {
			fmt.Printf("Error listing results: %v\n", err)
			os.Exit(1)
		}
		printResults(results)
	},
}

var resultsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search archived results by name and description",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, closeStore := getManager(cmd)
		defer func() { _ = closeStore() }()

		category, _ := cmd.Flags().GetString("category")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		results, err := mgr.Repository().Find(cmd.Context(), ports.ResultQuery{
			Text:     args[0],
			Category: category,
			Tags:     tags,
		})
		if err != nil {
			fmt.Printf("Error searching results: %v\n", err)
			os.Exit(1)
		}
		printResults(results)
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <result-id>",
	Short: "Render one archived result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, closeStore := getManager(cmd)
		defer func() { _ = closeStore() }()

		result, err := mgr.Repository().Get(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading result '%s': %v\n", args[0], err)
			os.Exit(1)
		}

		render := tui.NewRenderer()
		out, err := render(tui.ResultMarkdown(result))
		if err != nil {
			fmt.Println(tui.ResultMarkdown(result))
			return
		}
		fmt.Print(out)
	},
}

var resultsRmCmd = &cobra.Command{
	Use:   "rm <result-id>...",
	Short: "Remove one or more archived results",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, closeStore := getManager(cmd)
		defer func() { _ = closeStore() }()

		hasError := false
		for _, id := range args {
			if err := mgr.Repository().Delete(cmd.Context(), id); err != nil {
				fmt.Printf("Error removing '%s': %v\n", id, err)
				hasError = true
			} else {
				fmt.Printf("Removed result '%s'\n", id)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

var resultsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the archive",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, closeStore := getManager(cmd)
		defer func() { _ = closeStore() }()

		stats, err := mgr.Repository().Stats(cmd.Context())
		if err != nil {
			fmt.Printf("Error reading archive: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Total:    %d\n", stats.Total)
		fmt.Printf("Verified: %d\n", stats.Verified)
		if len(stats.ByCategory) > 0 {
			fmt.Println("By category:")
			categories := make([]string, 0, len(stats.ByCategory))
			for c := range stats.ByCategory {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			for _, c := range categories {
				fmt.Printf("  %-20s %d\n", c, stats.ByCategory[c])
			}
		}
	},
}

func printResults(results []*domain.Result) {
	if len(results) == 0 {
		fmt.Println("No results found.")
		return
	}
	for _, r := range results {
		name := r.Name
		if name == "" {
			name = "(unnamed)"
		}
		verified := " "
		if r.Verified {
			verified = "v"
		}
		fmt.Printf("%s  [%s] %-14s %s  %s\n",
			r.ID, verified, r.Category, r.CompletedAt.Format("2006-01-02"), name)
	}
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsLsCmd)
	resultsCmd.AddCommand(resultsSearchCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsRmCmd)
	resultsCmd.AddCommand(resultsStatsCmd)

	resultsLsCmd.Flags().String("category", "", "Restrict to one category")
	resultsSearchCmd.Flags().String("category", "", "Restrict to one category")
	resultsSearchCmd.Flags().StringSlice("tag", nil, "Results must carry all listed tags")
}
