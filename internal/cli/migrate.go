package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migration scripts",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	a, err := setup()
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.close()

	n, err := a.migrator.Up(context.Background())
	if err != nil {
		slog.Error("Migration failed", "applied", n, "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied", "count", n)
}
