package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mnemo-dev/mnemo/tenant"
)

func testTenant(t *testing.T) tenant.Context {
	t.Helper()
	tn, err := tenant.New("docs", "main", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}
	return tn
}

func testDoc(tn tenant.Context, id, relPath string, embedding []float32) Document {
	return Document{
		ID:             id,
		ProjectName:    tn.ProjectName,
		BranchName:     tn.BranchName,
		PathHash:       tn.PathHash,
		RelativePath:   relPath,
		Title:          "Title of " + relPath,
		PromotionLevel: PromotionStandard,
		ContentHash:    "hash-" + id,
		CharCount:      100,
		Embedding:      embedding,
		UpdatedAt:      time.Now(),
	}
}

func testChunk(doc Document, index int, embedding []float32) Chunk {
	return Chunk{
		ID:             doc.ID + "-chunk-" + string(rune('0'+index)),
		DocumentID:     doc.ID,
		ProjectName:    doc.ProjectName,
		BranchName:     doc.BranchName,
		PathHash:       doc.PathHash,
		PromotionLevel: doc.PromotionLevel,
		ChunkIndex:     index,
		HeaderPath:     "Guide > Section",
		Content:        "chunk content",
		Embedding:      embedding,
	}
}

func TestGOBStoreUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	doc := testDoc(tn, "doc-1", "guide.md", []float32{1, 0, 0})
	if err := s.UpsertDocument(ctx, doc, nil); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	got, err := s.GetByPath(ctx, tn, "guide.md")
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected document, got nil")
	}
	if got.ID != "doc-1" || got.Title != "Title of guide.md" {
		t.Errorf("unexpected document: %+v", got)
	}

	byID, err := s.GetByID(ctx, tn, "doc-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID == nil || byID.RelativePath != "guide.md" {
		t.Errorf("GetByID returned %+v", byID)
	}

	missing, err := s.GetByPath(ctx, tn, "absent.md")
	if err != nil {
		t.Fatalf("GetByPath for absent path failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for absent path, got %+v", missing)
	}
}

func TestGOBStoreUpsertReplacesChunkSet(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	doc := testDoc(tn, "doc-1", "big.md", nil)
	doc.IsChunked = true
	doc.ChunkCount = 3
	chunks := []Chunk{
		testChunk(doc, 0, []float32{1, 0}),
		testChunk(doc, 1, []float32{0, 1}),
		testChunk(doc, 2, []float32{1, 1}),
	}
	if err := s.UpsertDocument(ctx, doc, chunks); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	doc.ChunkCount = 1
	if err := s.UpsertDocument(ctx, doc, chunks[:1]); err != nil {
		t.Fatalf("second UpsertDocument failed: %v", err)
	}

	got, err := s.GetChunks(ctx, tn, "doc-1")
	if err != nil {
		t.Fatalf("GetChunks failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk after replace, got %d", len(got))
	}
	if got[0].ChunkIndex != 0 {
		t.Errorf("expected chunk index 0, got %d", got[0].ChunkIndex)
	}
}

func TestGOBStoreDelete(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	doc := testDoc(tn, "doc-1", "note.md", nil)
	doc.IsChunked = true
	if err := s.UpsertDocument(ctx, doc, []Chunk{testChunk(doc, 0, nil)}); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	if err := s.DeleteDocument(ctx, tn, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}

	got, err := s.GetByPath(ctx, tn, "note.md")
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if got != nil {
		t.Errorf("document still present after delete: %+v", got)
	}

	chunks, err := s.GetChunks(ctx, tn, "doc-1")
	if err != nil {
		t.Fatalf("GetChunks failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("chunks survived document delete: %d", len(chunks))
	}

	if err := s.DeleteDocument(ctx, tn, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestGOBStorePromotionCascade(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	doc := testDoc(tn, "doc-1", "arch.md", nil)
	doc.IsChunked = true
	doc.ChunkCount = 2
	chunks := []Chunk{testChunk(doc, 0, nil), testChunk(doc, 1, nil)}
	if err := s.UpsertDocument(ctx, doc, chunks); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	if err := s.SetPromotionLevel(ctx, tn, "doc-1", PromotionCritical); err != nil {
		t.Fatalf("SetPromotionLevel failed: %v", err)
	}

	got, err := s.GetByID(ctx, tn, "doc-1")
	if err != nil || got == nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PromotionLevel != PromotionCritical {
		t.Errorf("document level = %s, want critical", got.PromotionLevel)
	}

	stored, err := s.GetChunks(ctx, tn, "doc-1")
	if err != nil {
		t.Fatalf("GetChunks failed: %v", err)
	}
	for _, c := range stored {
		if c.PromotionLevel != PromotionCritical {
			t.Errorf("chunk %d level = %s, want critical", c.ChunkIndex, c.PromotionLevel)
		}
	}

	if err := s.SetPromotionLevel(ctx, tn, "ghost", PromotionImportant); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown document, got %v", err)
	}
}

func TestGOBStoreUpdatePath(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	doc := testDoc(tn, "doc-1", "old.md", nil)
	if err := s.UpsertDocument(ctx, doc, nil); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	if err := s.UpdatePath(ctx, tn, "doc-1", "new.md"); err != nil {
		t.Fatalf("UpdatePath failed: %v", err)
	}

	old, err := s.GetByPath(ctx, tn, "old.md")
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if old != nil {
		t.Error("old path still resolves after rename")
	}

	moved, err := s.GetByPath(ctx, tn, "new.md")
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if moved == nil || moved.ID != "doc-1" {
		t.Errorf("new path lookup returned %+v", moved)
	}
	if moved.ContentHash != doc.ContentHash {
		t.Error("content hash changed on path update")
	}
}

func TestGOBStoreUpdatePathEvictsOccupant(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	mover := testDoc(tn, "doc-1", "a.md", nil)
	occupant := testDoc(tn, "doc-2", "b.md", nil)
	occupantChunk := testChunk(occupant, 0, []float32{1, 0, 0})
	if err := s.UpsertDocument(ctx, mover, nil); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}
	if err := s.UpsertDocument(ctx, occupant, []Chunk{occupantChunk}); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	if err := s.UpdatePath(ctx, tn, "doc-1", "b.md"); err != nil {
		t.Fatalf("UpdatePath failed: %v", err)
	}

	moved, err := s.GetByPath(ctx, tn, "b.md")
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if moved == nil || moved.ID != "doc-1" {
		t.Fatalf("path lookup returned %+v, want doc-1", moved)
	}

	stranded, err := s.GetByID(ctx, tn, "doc-2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stranded != nil {
		t.Error("evicted document still present by id")
	}
	chunks, err := s.GetChunks(ctx, tn, "doc-2")
	if err != nil {
		t.Fatalf("GetChunks failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("evicted document left %d chunks behind", len(chunks))
	}

	docs, err := s.ListDocuments(ctx, tn)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("expected 1 document after eviction, got %d", len(docs))
	}
}

func TestGOBStoreUpsertEvictsOccupant(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	occupant := testDoc(tn, "doc-1", "shared.md", nil)
	if err := s.UpsertDocument(ctx, occupant, nil); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	newcomer := testDoc(tn, "doc-2", "shared.md", nil)
	if err := s.UpsertDocument(ctx, newcomer, nil); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	doc, err := s.GetByPath(ctx, tn, "shared.md")
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if doc == nil || doc.ID != "doc-2" {
		t.Fatalf("path lookup returned %+v, want doc-2", doc)
	}
	if old, _ := s.GetByID(ctx, tn, "doc-1"); old != nil {
		t.Error("displaced document still present by id")
	}
}

func TestGOBStoreSearch(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	// One unchunked document aligned with the query, one orthogonal,
	// and one chunked document whose chunk is close.
	near := testDoc(tn, "doc-near", "near.md", []float32{1, 0, 0})
	far := testDoc(tn, "doc-far", "far.md", []float32{0, 0, 1})
	chunked := testDoc(tn, "doc-chunked", "chunked.md", nil)
	chunked.IsChunked = true
	chunked.ChunkCount = 1
	chunk := testChunk(chunked, 0, []float32{0.9, 0.1, 0})

	for _, d := range []Document{near, far} {
		if err := s.UpsertDocument(ctx, d, nil); err != nil {
			t.Fatalf("UpsertDocument failed: %v", err)
		}
	}
	if err := s.UpsertDocument(ctx, chunked, []Chunk{chunk}); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	hits, err := s.Search(ctx, tn, []float32{1, 0, 0}, SearchOptions{Limit: 10, MinScore: 0.5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits above threshold, got %d", len(hits))
	}
	if hits[0].DocumentID != "doc-near" {
		t.Errorf("expected doc-near first, got %s", hits[0].DocumentID)
	}
	if hits[1].DocumentID != "doc-chunked" {
		t.Errorf("expected doc-chunked second, got %s", hits[1].DocumentID)
	}
	if hits[1].HeaderPath != "Guide > Section" {
		t.Errorf("chunk hit missing header path: %+v", hits[1])
	}

	limited, err := s.Search(ctx, tn, []float32{1, 0, 0}, SearchOptions{Limit: 1, MinScore: 0})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit not applied: got %d hits", len(limited))
	}
}

func TestGOBStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	tnA, err := tenant.New("proj", "main", t.TempDir())
	if err != nil {
		t.Fatalf("tenant.New failed: %v", err)
	}
	tnB, err := tenant.New("proj", "feature", t.TempDir())
	if err != nil {
		t.Fatalf("tenant.New failed: %v", err)
	}

	docA := testDoc(tnA, "doc-a", "shared.md", []float32{1, 0})
	docB := testDoc(tnB, "doc-b", "shared.md", []float32{1, 0})
	if err := s.UpsertDocument(ctx, docA, nil); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}
	if err := s.UpsertDocument(ctx, docB, nil); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	got, err := s.GetByPath(ctx, tnA, "shared.md")
	if err != nil || got == nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if got.ID != "doc-a" {
		t.Errorf("tenant A resolved document %s", got.ID)
	}

	hits, err := s.Search(ctx, tnB, []float32{1, 0}, SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "doc-b" {
		t.Errorf("tenant B search leaked: %+v", hits)
	}

	if err := s.DeleteDocument(ctx, tnA, "doc-b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant delete should fail with ErrNotFound, got %v", err)
	}

	removed, err := s.DeleteTenant(ctx, tnA)
	if err != nil {
		t.Fatalf("DeleteTenant failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("DeleteTenant removed %d documents, want 1", removed)
	}
	left, err := s.ListDocuments(ctx, tnB)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(left) != 1 {
		t.Errorf("tenant B lost documents: %d left", len(left))
	}
}

func TestGOBStoreBulkOps(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	s := NewGOBStore(filepath.Join(t.TempDir(), "index.gob"))

	items := []Upsert{
		{Document: testDoc(tn, "doc-1", "a.md", nil)},
		{Document: testDoc(tn, "doc-2", "b.md", nil)},
		{Document: testDoc(tn, "doc-3", "c.md", nil)},
	}
	failures, err := s.BulkUpsert(ctx, items)
	if err != nil {
		t.Fatalf("BulkUpsert failed: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected item failures: %+v", failures)
	}

	docs, err := s.ListDocuments(ctx, tn)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}

	deleted, itemErrs, err := s.BulkDelete(ctx, tn, []string{"doc-1", "doc-2", "missing"})
	if err != nil {
		t.Fatalf("BulkDelete failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("BulkDelete removed %d, want 2", deleted)
	}
	if len(itemErrs) != 0 {
		t.Errorf("missing id should not be an item error: %+v", itemErrs)
	}

	stats, err := s.Stats(ctx, tn)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Documents != 1 {
		t.Errorf("stats.Documents = %d, want 1", stats.Documents)
	}
}

func TestGOBStorePersistLoad(t *testing.T) {
	ctx := context.Background()
	tn := testTenant(t)
	indexPath := filepath.Join(t.TempDir(), "index.gob")

	s := NewGOBStore(indexPath)
	doc := testDoc(tn, "doc-1", "kept.md", []float32{1, 0})
	doc.IsChunked = true
	doc.ChunkCount = 1
	if err := s.UpsertDocument(ctx, doc, []Chunk{testChunk(doc, 0, []float32{1, 0})}); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}
	if err := s.Persist(ctx); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	reopened := NewGOBStore(indexPath)
	if err := reopened.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, err := reopened.GetByPath(ctx, tn, "kept.md")
	if err != nil {
		t.Fatalf("GetByPath after reload failed: %v", err)
	}
	if got == nil || got.ID != "doc-1" {
		t.Fatalf("document lost across persist/load: %+v", got)
	}
	chunks, err := reopened.GetChunks(ctx, tn, "doc-1")
	if err != nil {
		t.Fatalf("GetChunks after reload failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("chunks lost across persist/load: %d", len(chunks))
	}
}

func TestGOBStoreLoadMissingFile(t *testing.T) {
	s := NewGOBStore(filepath.Join(t.TempDir(), "absent", "index.gob"))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load of missing index should succeed empty, got %v", err)
	}
}
