package commands

import (
	"github.com/spf13/cobra"

	"github.com/coopbooks/coopbooks/internal/buildinfo"
	"github.com/coopbooks/coopbooks/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "coopbooks",
		Short:   "Double-entry books for savings and credit cooperatives",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.FileName, "path to coopbooks.yaml")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file applied before COOPBOOKS_* variables")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides config)")
	flags.StringVar(&a.tenantID, "tenant", "", "tenant ID (defaults to coop.tenant from config)")
	flags.StringVar(&a.actor, "actor", "cli", "user recorded in the audit log")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (overrides config)")
	flags.BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		newInitCommand(a),
		newAccountCommand(a),
		newJournalCommand(a),
		newPeriodCommand(a),
		newReportCommand(a),
		newAssetCommand(a),
		newServeCommand(a),
	)

	return rootCmd
}
