package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-dev/mnemo/store"
)

var (
	searchLimit    int
	searchMinScore float32
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed documents semantically",
	Long: `Embed the query and rank indexed documents and chunks by cosine
similarity. Results below the minimum score are dropped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 0, "Maximum number of results (default from config)")
	searchCmd.Flags().Float32Var(&searchMinScore, "min-score", -1, "Minimum similarity score (default from config)")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	query := strings.Join(args, " ")

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	opts := store.SearchOptions{
		Limit:    app.cfg.Search.Limit,
		MinScore: app.cfg.Search.GetMinScore(),
	}
	if searchLimit > 0 {
		opts.Limit = searchLimit
	}
	if searchMinScore >= 0 {
		opts.MinScore = searchMinScore
	}

	vec, err := app.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := app.store.Search(ctx, app.tenant, vec, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(hits) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, hit := range hits {
		location := hit.RelativePath
		if hit.HeaderPath != "" {
			location += " § " + hit.HeaderPath
		}
		fmt.Printf("%2d. [%.3f] %s\n", i+1, hit.Score, location)
		if hit.Title != "" {
			fmt.Printf("    %s\n", hit.Title)
		}
		if snippet := firstLines(hit.Content, 2); snippet != "" {
			fmt.Printf("    %s\n", snippet)
		}
		fmt.Println()
	}

	return nil
}

func firstLines(content string, n int) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, " ")
}
