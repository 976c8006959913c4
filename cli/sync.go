package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncSkipExternal bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the index with disk once",
	Long: `Scan the project's documents, index new and changed files, and remove
records whose file is gone. External document sets from the config are
mirrored in the same pass.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncSkipExternal, "skip-external", false, "Do not reconcile external document sets")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	res, err := app.reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	printSyncResult(app.cfg.Project.Name, res.FilesScanned, res.Added, res.Updated, res.Deleted, res.Failed, res.Duration)

	if syncSkipExternal {
		return nil
	}

	externals, err := app.externalReconcilers()
	if err != nil {
		return err
	}
	for i, rec := range externals {
		res, err := rec.Run(ctx)
		if err != nil {
			return fmt.Errorf("failed to reconcile external set %q: %w", app.cfg.External[i].Name, err)
		}
		printSyncResult(app.cfg.External[i].Name, res.FilesScanned, res.Added, res.Updated, res.Deleted, res.Failed, res.Duration)
	}

	return nil
}

func printSyncResult(name string, scanned, added, updated, deleted, failed int, duration time.Duration) {
	fmt.Printf("%s: %d files scanned, %d added, %d updated, %d deleted, %d failed (took %s)\n",
		name, scanned, added, updated, deleted, failed, duration.Round(time.Millisecond))
}
