package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mnemo-dev/mnemo/lifecycle"
	"github.com/mnemo-dev/mnemo/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow file changes and keep the index in sync",
	Long: `Run an initial reconciliation, then monitor the filesystem and index
changes as they settle.

The watcher will:
- Debounce rapid changes per file (500ms by default)
- Process settled events through a worker pool
- Re-run a full reconciliation on a configurable interval
- Persist the index periodically and on shutdown`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

const persistInterval = 30 * time.Second

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	// Initial pass so the index reflects changes made while not watching.
	res, err := app.reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("initial reconciliation failed: %w", err)
	}
	printSyncResult(app.cfg.Project.Name, res.FilesScanned, res.Added, res.Updated, res.Deleted, res.Failed, res.Duration)

	debounce := time.Duration(app.cfg.Watch.DebounceMs) * time.Millisecond
	w, err := watcher.New(app.root, debounce, app.reconciler.Scanner().MatchesAbs, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}

	fmt.Println("\nWatching for changes... (Press Ctrl+C to stop)")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(gctx)
	})

	workers := app.cfg.Watch.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for ev := range w.Events() {
				app.handleEvent(gctx, ev)
			}
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(persistInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := app.store.Persist(gctx); err != nil {
					app.logger.Warn().Err(err).Msg("failed to persist index")
				}
			}
		}
	})

	if app.cfg.Reconcile.IntervalSec > 0 {
		interval := time.Duration(app.cfg.Reconcile.IntervalSec) * time.Second
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if _, err := app.reconciler.Run(gctx); err != nil {
						app.logger.Warn().Err(err).Msg("periodic reconciliation failed")
					}
				}
			}
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Println("\nShutting down...")
	return nil
}

// handleEvent maps a settled watcher event onto the document lifecycle.
func (a *app) handleEvent(ctx context.Context, ev watcher.Event) {
	rel, err := filepath.Rel(a.root, ev.Path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	a.logger.Debug().Str("path", rel).Str("event", ev.Type.String()).Msg("change settled")

	var res lifecycle.Result
	switch ev.Type {
	case watcher.EventDeleted:
		res = a.manager.Delete(ctx, rel)
	case watcher.EventRenamed:
		oldRel, err := filepath.Rel(a.root, ev.OldPath)
		if err != nil {
			return
		}
		res = a.manager.Rename(ctx, filepath.ToSlash(oldRel), rel)
	default:
		res = a.manager.Update(ctx, rel)
	}

	if !res.Success {
		a.logger.Warn().
			Str("path", rel).
			Str("code", string(res.ErrorCode)).
			Str("error", res.ErrorMessage).
			Msg("failed to process change")
	}
}
