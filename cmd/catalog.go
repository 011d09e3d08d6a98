package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/vitalq/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect question catalogs",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a catalog for integrity problems",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.CatalogPath
		if len(args) == 1 {
			path = args[0]
		}
		c, err := catalog.Load(path)
		if err != nil {
			return err
		}
		name := path
		if name == "" {
			name = "embedded catalog"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d modules, %d questions)\n", name, len(c.Modules()), c.Len())
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print modules and questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return err
		}
		moduleFilter, _ := cmd.Flags().GetString("module")
		out := cmd.OutOrStdout()

		for _, m := range c.Modules() {
			if moduleFilter != "" && m.ID != moduleFilter {
				continue
			}
			fmt.Fprintf(out, "%s (%s)\n", m.Name, m.ID)
			fmt.Fprintln(out, strings.Repeat("─", 72))
			for _, q := range c.QuestionsInModule(m.ID) {
				flags := ""
				if q.Required {
					flags += " required"
				}
				if q.Condition != nil {
					flags += " if " + describeCondition(*q.Condition)
				}
				fmt.Fprintf(out, "  %-24s %-16s w=%-4g %s%s\n", q.ID, q.Type, q.Weight, truncate(q.Text, 60), flags)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func describeCondition(c catalog.Condition) string {
	switch c.Predicate() {
	case catalog.PredicateEquals:
		return fmt.Sprintf("%s=%s", c.DependsOn, c.Equals)
	case catalog.PredicateInSet:
		return fmt.Sprintf("%s in [%s]", c.DependsOn, strings.Join(c.In, ","))
	case catalog.PredicateHasAnySelection:
		return c.DependsOn + " has any selection"
	default:
		return c.DependsOn + " answered"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func init() {
	catalogShowCmd.Flags().StringP("module", "m", "", "Only show this module")

	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogShowCmd)
}
