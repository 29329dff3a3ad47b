package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/derivekit/derivekit/pkg/expr"
)

// parseCmd checks an expression against the codec without touching any
// session: handy for debugging notation issues.
var parseCmd = &cobra.Command{
	Use:   "parse <expression>",
	Short: "Parse an expression and print its canonical form",
	Long: `Parses a formula in linear or typeset notation and prints the detected
format, the canonical rendering, the LaTeX rendering, and the free symbols.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")

		in := expr.Input{Text: args[0]}
		f := expr.Format(format)
		if !expr.ValidFormat(f) {
			fmt.Printf("Unknown format %q. Supported: auto, linear, typeset\n", format)
			os.Exit(1)
		}

		parsed, err := expr.ParseAs(in, f)
		if err != nil {
			fmt.Printf("Parse error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("format:    %s\n", parsed.SourceFormat())
		fmt.Printf("canonical: %s\n", parsed.String())
		fmt.Printf("latex:     %s\n", parsed.LaTeX())

		fmt.Printf("symbols:   %v\n", parsed.FreeSymbols())
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringP("format", "f", "auto", "Input format: auto, linear, or typeset")
}
