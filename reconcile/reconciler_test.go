package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mnemo-dev/mnemo/lifecycle"
	"github.com/mnemo-dev/mnemo/store"
	"github.com/mnemo-dev/mnemo/tenant"
)

// fixedEmbedder avoids network during reconciliation tests.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (fixedEmbedder) Dimensions() int { return 3 }
func (fixedEmbedder) Close() error    { return nil }

type recEnv struct {
	root       string
	reconciler *Reconciler
	store      *store.GOBStore
	tenant     tenant.Context
}

func newRecEnv(t *testing.T) *recEnv {
	t.Helper()
	root := t.TempDir()
	tn, err := tenant.New("docs", "main", root)
	if err != nil {
		t.Fatalf("tenant.New failed: %v", err)
	}
	s := store.NewGOBStore(filepath.Join(root, ".mnemo", "index.gob"))
	mgr := lifecycle.NewManager(s, fixedEmbedder{}, tn, root, 500, zerolog.Nop())
	sc := NewScanner(root, []string{"**/*.md"}, []string{".git/", ".mnemo/", "drafts/"})
	rec := New(mgr, s, sc, tn, zerolog.Nop())
	return &recEnv{root: root, reconciler: rec, store: s, tenant: tn}
}

func (env *recEnv) write(t *testing.T, relPath, content string) {
	t.Helper()
	full := filepath.Join(env.root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestReconcilerIndexesNewFiles(t *testing.T) {
	env := newRecEnv(t)
	ctx := context.Background()

	env.write(t, "a.md", "# A\n\nAlpha.\n")
	env.write(t, "nested/b.md", "# B\n\nBeta.\n")
	env.write(t, "skip.txt", "not markdown\n")
	env.write(t, "drafts/c.md", "# C\n\nExcluded.\n")

	res, err := env.reconciler.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.FilesScanned != 2 {
		t.Errorf("scanned = %d, want 2", res.FilesScanned)
	}
	if res.Added != 2 {
		t.Errorf("added = %d, want 2", res.Added)
	}
	if res.Updated != 0 || res.Deleted != 0 || res.Failed != 0 {
		t.Errorf("unexpected actions: %+v", res)
	}

	for _, p := range []string{"a.md", "nested/b.md"} {
		doc, err := env.store.GetByPath(ctx, env.tenant, p)
		if err != nil || doc == nil {
			t.Errorf("%s not indexed", p)
		}
	}
	if doc, _ := env.store.GetByPath(ctx, env.tenant, "drafts/c.md"); doc != nil {
		t.Error("excluded file was indexed")
	}
}

func TestReconcilerIsIdempotent(t *testing.T) {
	env := newRecEnv(t)
	ctx := context.Background()

	env.write(t, "a.md", "# A\n\nAlpha.\n")
	if _, err := env.reconciler.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	res, err := env.reconciler.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if res.Added != 0 || res.Updated != 0 || res.Deleted != 0 || res.Failed != 0 {
		t.Errorf("second run was not a no-op: %+v", res)
	}
}

func TestReconcilerUpdatesDriftedFiles(t *testing.T) {
	env := newRecEnv(t)
	ctx := context.Background()

	env.write(t, "a.md", "# A\n\nVersion one.\n")
	if _, err := env.reconciler.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first, _ := env.store.GetByPath(ctx, env.tenant, "a.md")

	env.write(t, "a.md", "# A\n\nVersion two.\n")
	res, err := env.reconciler.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if res.Updated != 1 || res.Added != 0 {
		t.Errorf("expected one update: %+v", res)
	}

	second, _ := env.store.GetByPath(ctx, env.tenant, "a.md")
	if second.ID != first.ID {
		t.Error("update replaced the document ID")
	}
	if second.ContentHash == first.ContentHash {
		t.Error("content hash did not change")
	}
}

func TestReconcilerRemovesOrphans(t *testing.T) {
	env := newRecEnv(t)
	ctx := context.Background()

	env.write(t, "keep.md", "# Keep\n\nStays.\n")
	env.write(t, "gone.md", "# Gone\n\nDeleted soon.\n")
	if _, err := env.reconciler.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	if err := os.Remove(filepath.Join(env.root, "gone.md")); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	res, err := env.reconciler.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if res.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", res.Deleted)
	}

	if doc, _ := env.store.GetByPath(ctx, env.tenant, "gone.md"); doc != nil {
		t.Error("orphaned record survived")
	}
	if doc, _ := env.store.GetByPath(ctx, env.tenant, "keep.md"); doc == nil {
		t.Error("surviving file was removed")
	}
}

func TestReadOnlyReconcilerRefusesPromotion(t *testing.T) {
	root := t.TempDir()
	tn, err := tenant.New("wiki", "external", root)
	if err != nil {
		t.Fatalf("tenant.New failed: %v", err)
	}
	s := store.NewGOBStore(filepath.Join(root, "index.gob"))
	mgr := lifecycle.NewManager(s, fixedEmbedder{}, tn, root, 500, zerolog.Nop())
	sc := NewScanner(root, []string{"**/*.md"}, nil)
	rec := NewReadOnly(mgr, s, sc, tn, zerolog.Nop())

	ctx := context.Background()
	if err := os.WriteFile(filepath.Join(root, "page.md"), []byte("# Page\n\nText.\n"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	res, err := rec.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("read-only variant should still index: %+v", res)
	}

	doc, _ := s.GetByPath(ctx, tn, "page.md")
	if doc == nil {
		t.Fatal("document not indexed")
	}
	if err := rec.Promote(ctx, doc.ID, store.PromotionCritical); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if got, _ := s.GetByID(ctx, tn, doc.ID); got.PromotionLevel != store.PromotionStandard {
		t.Errorf("promotion level changed: %s", got.PromotionLevel)
	}
}

func TestReconcilerPromote(t *testing.T) {
	env := newRecEnv(t)
	ctx := context.Background()

	env.write(t, "a.md", "# A\n\nAlpha.\n")
	if _, err := env.reconciler.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	doc, _ := env.store.GetByPath(ctx, env.tenant, "a.md")

	if err := env.reconciler.Promote(ctx, doc.ID, store.PromotionImportant); err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	got, _ := env.store.GetByID(ctx, env.tenant, doc.ID)
	if got.PromotionLevel != store.PromotionImportant {
		t.Errorf("level = %s, want important", got.PromotionLevel)
	}

	if err := env.reconciler.Promote(ctx, doc.ID, "vip"); err == nil {
		t.Error("invalid level accepted")
	}
}

func TestScannerExcludeWins(t *testing.T) {
	sc := NewScanner(t.TempDir(), []string{"**/*.md"}, []string{"private/**"})

	cases := []struct {
		path string
		want bool
	}{
		{"readme.md", true},
		{"docs/guide.md", true},
		{"private/secret.md", false},
		{"private/deep/notes.md", false},
		{"image.png", false},
	}
	for _, tc := range cases {
		if got := sc.Matches(tc.path); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
