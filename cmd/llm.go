package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/vitalq/internal/llm"
	"github.com/abhisek/vitalq/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect hint provider calls",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")
		assessmentID, _ := cmd.Flags().GetString("assessment")
		verbose, _ := cmd.Flags().GetBool("verbose")
		out := cmd.OutOrStdout()

		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.ListLLMEvents(ctx, store.QueryOpts{Limit: limit, AssessmentID: assessmentID})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No LLM events found.")
			return nil
		}

		fmt.Fprintf(out, "%-5s  %-19s  %-14s  %-28s  %-6s  %-6s  %-7s  %-9s  %s\n",
			"Seq", "Timestamp", "Purpose", "Model", "In", "Out", "Ms", "Cost", "OK")
		fmt.Fprintln(out, strings.Repeat("─", 110))

		var total float64
		for _, e := range events {
			ok := "✓"
			if !e.Success {
				ok = "✗"
			}
			cost := "?"
			if mc := llm.LookupCost(e.Model); mc != nil {
				c := mc.Cost(e.InputTokens, e.OutputTokens)
				total += c
				cost = formatCost(c)
			}
			fmt.Fprintf(out, "%-5d  %-19s  %-14s  %-28s  %-6d  %-6d  %-7d  %-9s  %s\n",
				e.Sequence,
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.Purpose,
				truncate(e.Model, 28),
				e.InputTokens,
				e.OutputTokens,
				e.LatencyMs,
				cost,
				ok,
			)
			if verbose {
				if e.ErrorMessage != "" {
					fmt.Fprintf(out, "       error: %s\n", e.ErrorMessage)
				}
				if e.ResponseBody != "" {
					fmt.Fprintf(out, "       response: %s\n", truncate(e.ResponseBody, 200))
				}
			}
		}
		fmt.Fprintln(out, strings.Repeat("─", 110))
		fmt.Fprintf(out, "Estimated cost of listed events: %s\n", formatCost(total))
		return nil
	},
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("assessment", "a", "", "Only show events for this assessment")
	llmListCmd.Flags().BoolP("verbose", "v", false, "Show error messages and response bodies")

	llmCmd.AddCommand(llmListCmd)
}
