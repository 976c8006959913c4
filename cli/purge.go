package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove all indexed documents for this project and branch",
	Long: `Remove every document and chunk indexed for the current project
and branch. Other branches and projects sharing the same backend are
left untouched. Use this before re-indexing from scratch or when
abandoning a branch.`,
	RunE: runPurge,
}

var purgeYes bool

func init() {
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	if !purgeYes {
		fmt.Printf("Delete all indexed documents for %s @ %s? [y/N] ", app.tenant.ProjectName, app.tenant.BranchName)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	removed, err := app.store.DeleteTenant(ctx, app.tenant)
	if err != nil {
		return fmt.Errorf("failed to purge index: %w", err)
	}

	fmt.Printf("Removed %d document(s) for %s @ %s\n", removed, app.tenant.ProjectName, app.tenant.BranchName)
	return nil
}
