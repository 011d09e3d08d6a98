package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/vitalq/internal/assessment"
)

var statusCmd = &cobra.Command{
	Use:   "status [assessment-id]",
	Short: "Show one assessment, or list recent ones",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			limit, _ := cmd.Flags().GetInt("limit")
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			states, err := st.ListAssessments(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, states)
			}
			printAssessments(out, states)
			return nil
		}

		d, err := openDeps(ctx, cfg, depsOptions{logTo: io.Discard})
		if err != nil {
			return err
		}
		defer d.Close()

		rep, err := d.engine.Status(ctx, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, rep)
		}

		st := rep.State
		fmt.Fprintf(out, "Assessment:  %s\n", st.ID)
		fmt.Fprintf(out, "Client:      %s\n", st.ClientRef)
		fmt.Fprintf(out, "Status:      %s\n", st.Status)
		fmt.Fprintf(out, "Module:      %s\n", st.CurrentModuleID)
		fmt.Fprintf(out, "Answered:    %d\n", st.QuestionsAsked)
		fmt.Fprintf(out, "Saved:       %d\n", st.QuestionsSaved)
		fmt.Fprintf(out, "Completion:  %d%%\n", st.CompletionRate)
		fmt.Fprintf(out, "Score:       %.1f (weighted %.1f)\n", rep.Summary.RawScore, rep.Summary.WeightedScore)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%-24s %8s %8s %10s\n", "Module", "Answered", "Skipped", "Weighted")
		fmt.Fprintln(out, strings.Repeat("─", 54))
		for _, m := range rep.Summary.Modules {
			fmt.Fprintf(out, "%-24s %8d %8d %10.1f\n", truncate(m.ModuleID, 24), m.Answered, m.Skipped, m.WeightedScore)
		}
		return nil
	},
}

func printAssessments(w io.Writer, states []assessment.State) {
	if len(states) == 0 {
		fmt.Fprintln(w, "No assessments found.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-16s  %-12s  %5s  %s\n", "ID", "Client", "Status", "Done", "Last active")
	fmt.Fprintln(w, strings.Repeat("─", 96))
	for _, st := range states {
		fmt.Fprintf(w, "%-36s  %-16s  %-12s  %4d%%  %s\n",
			st.ID, truncate(st.ClientRef, 16), st.Status, st.CompletionRate,
			st.LastActiveAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var abandonCmd = &cobra.Command{
	Use:   "abandon <assessment-id>",
	Short: "Abandon an open assessment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := openDeps(ctx, cfg, depsOptions{logTo: io.Discard})
		if err != nil {
			return err
		}
		defer d.Close()

		st, err := d.engine.Abandon(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Assessment %s is now %s\n", st.ID, st.Status)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Print JSON")
	statusCmd.Flags().IntP("limit", "n", 20, "Number of assessments to list")
}
