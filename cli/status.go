package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics for this project",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	stats, err := app.store.Stats(ctx, app.tenant)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Printf("Project:   %s\n", app.tenant.ProjectName)
	fmt.Printf("Branch:    %s\n", app.tenant.BranchName)
	fmt.Printf("Backend:   %s\n", app.cfg.Store.Backend)
	fmt.Printf("Documents: %d\n", stats.Documents)
	fmt.Printf("Chunks:    %d\n", stats.Chunks)
	if !stats.LastUpdated.IsZero() {
		fmt.Printf("Updated:   %s\n", stats.LastUpdated.Local().Format("2006-01-02 15:04:05"))
	}

	return nil
}
