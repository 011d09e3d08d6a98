package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/vitalq/internal/config"
)

// cfg is filled in by the root command's pre-run hook.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "vitalq",
	Short: "Adaptive health and lifestyle assessments",
	Long: "VitalQ runs modular health questionnaires that adapt to earlier answers,\n" +
		"over HTTP (vitalq serve) or in the terminal (vitalq take).",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("db", "", "Path to SQLite database file (overrides VITALQ_DB)")
	pf.String("catalog", "", "Path to a question catalog YAML file (overrides VITALQ_CATALOG)")
	pf.String("log-level", "", "Log level: debug, info, warn, error (overrides VITALQ_LOG_LEVEL)")
	pf.String("env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(abandonCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	c, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		c.DBPath = p
	}
	if p, _ := cmd.Flags().GetString("catalog"); p != "" {
		c.CatalogPath = p
	}
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		c.LogLevel = l
	}
	cfg = c
	return nil
}
