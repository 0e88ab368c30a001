package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coopbooks/coopbooks/internal/config"
	"github.com/coopbooks/coopbooks/internal/importer"
)

func newInitCommand(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new cooperative's books",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, a, absDir, name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "cooperative name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runInit(cmd *cobra.Command, a *app, dir, name string) error {
	for _, d := range []string{"logs", importer.ImportDir, importer.ProcessedDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	cfg := config.Default(name)
	if a.tenantID != "" {
		cfg.Coop.Tenant = a.tenantID
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignore := "*.db\n*.db-*\nlogs/\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Reload so paths resolve against the new directory, then open the
	// tenant once to migrate the database and seed the chart.
	a.configPath = path
	if err := a.load(); err != nil {
		return err
	}
	l, err := a.ledger(cmd.Context())
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s at %s (tenant %s, %d accounts)\n",
		name, dir, l.Tenant(), len(l.Accounts()))
	return nil
}
