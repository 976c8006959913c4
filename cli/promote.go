package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/store"
)

var promoteCmd = &cobra.Command{
	Use:   "promote <path> <level>",
	Short: "Change a document's promotion level",
	Long: `Set the promotion level of an indexed document and all of its chunks.

Levels: standard, important, critical`,
	Args: cobra.ExactArgs(2),
	RunE: runPromote,
}

func init() {
	rootCmd.AddCommand(promoteCmd)
}

func runPromote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	relPath, level := args[0], store.PromotionLevel(args[1])

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	doc, err := app.store.GetByPath(ctx, app.tenant, relPath)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("%s is not indexed (run 'mnemo sync' first?)", relPath)
	}

	if err := app.reconciler.Promote(ctx, doc.ID, level); err != nil {
		return err
	}

	fmt.Printf("%s promoted to %s\n", relPath, level)
	return nil
}
