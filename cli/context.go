package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mnemo-dev/mnemo/config"
	"github.com/mnemo-dev/mnemo/embedder"
	"github.com/mnemo-dev/mnemo/git"
	"github.com/mnemo-dev/mnemo/lifecycle"
	"github.com/mnemo-dev/mnemo/reconcile"
	"github.com/mnemo-dev/mnemo/store"
	"github.com/mnemo-dev/mnemo/tenant"
)

// app bundles everything a command needs for the project's tenant scope.
type app struct {
	root       string
	cfg        *config.Config
	tenant     tenant.Context
	store      store.Store
	embedder   embedder.Embedder
	manager    *lifecycle.Manager
	reconciler *reconcile.Reconciler
	logger     zerolog.Logger
}

func (a *app) close(ctx context.Context) {
	if err := a.store.Persist(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("failed to persist index")
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close store")
	}
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close embedder")
	}
}

// openApp locates the project root, loads its config, and wires the
// store, embedder, and reconciler for the project's own document tree.
func openApp(ctx context.Context) (*app, error) {
	root, err := config.FindProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("not inside an initialized project (run 'mnemo init' first): %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger()

	branch := git.BranchOrDefault(root, cfg.Project.Branch)
	tn, err := tenant.New(cfg.Project.Name, branch, root)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg, root)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.NewFromConfig(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	mgr := lifecycle.NewManager(st, emb, tn, root, cfg.Chunking.ThresholdLines, logger)
	scanner := reconcile.NewScanner(root, cfg.Reconcile.Include, cfg.Reconcile.Exclude)
	rec := reconcile.New(mgr, st, scanner, tn, logger)

	return &app{
		root:       root,
		cfg:        cfg,
		tenant:     tn,
		store:      st,
		embedder:   emb,
		manager:    mgr,
		reconciler: rec,
		logger:     logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, projectRoot string) (store.Store, error) {
	switch cfg.Store.Backend {
	case "gob":
		gobStore := store.NewGOBStore(config.GetIndexPath(projectRoot))
		if err := gobStore.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load index: %w", err)
		}
		return gobStore, nil
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.Store.Postgres.DSN, cfg.Embedder.GetDimensions())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Store.Backend)
	}
}

// externalReconcilers builds one read-only reconciler per configured
// external document set.
func (a *app) externalReconcilers() ([]*reconcile.Reconciler, error) {
	var recs []*reconcile.Reconciler
	for _, set := range a.cfg.External {
		tn, err := tenant.New(set.Name, "external", set.Root)
		if err != nil {
			return nil, fmt.Errorf("invalid external set %q: %w", set.Name, err)
		}

		include := set.Include
		if len(include) == 0 {
			include = a.cfg.Reconcile.Include
		}

		mgr := lifecycle.NewManager(a.store, a.embedder, tn, set.Root, a.cfg.Chunking.ThresholdLines, a.logger)
		scanner := reconcile.NewScanner(set.Root, include, set.Exclude)
		recs = append(recs, reconcile.NewReadOnly(mgr, a.store, scanner, tn, a.logger))
	}
	return recs, nil
}
