package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations and breaker states",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	a, err := setup()
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.close()

	ctx := context.Background()
	applied, err := a.migrator.Applied(ctx)
	if err != nil {
		slog.Error("Failed to read migration ledger", "error", err)
		os.Exit(1)
	}
	pending, err := a.migrator.Pending(ctx)
	if err != nil {
		slog.Error("Failed to list pending migrations", "error", err)
		os.Exit(1)
	}

	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SCRIPT\tAPPLIED AT\tCHECKSUM")
	for _, id := range ids {
		rec := applied[id]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.12s\n", rec.ScriptID, rec.AppliedAt.Format("2006-01-02 15:04:05"), rec.Checksum)
	}
	for _, id := range pending {
		_, _ = fmt.Fprintf(w, "%s\t(pending)\t\n", id)
	}
	_ = w.Flush()

	states := a.exec.Composer().Registry().Snapshot()
	if len(states) == 0 {
		return
	}
	fmt.Println()
	bw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(bw, "OPERATION\tBREAKER\tFAILURES")
	keys := make([]string, 0, len(states))
	for key := range states {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		snap := states[key]
		_, _ = fmt.Fprintf(bw, "%s\t%s\t%d\n", key, snap.State, snap.ConsecutiveFailures)
	}
	_ = bw.Flush()
}
