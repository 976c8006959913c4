package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mnemo-dev/mnemo/internal/fileutil"
	"github.com/mnemo-dev/mnemo/tenant"
)

// GOBStore is the zero-infrastructure backend: tenant-scoped documents and
// chunks in memory, persisted as a single gob file guarded by an advisory
// file lock. The single mutex is what makes every write path transactional.
type GOBStore struct {
	indexPath string
	lockPath  string
	documents map[string]Document // id -> document
	chunks    map[string]Chunk    // id -> chunk
	pathIndex map[string]string   // tenantKey + "\x00" + relativePath -> document id
	mu        sync.RWMutex
}

type gobData struct {
	Documents map[string]Document
	Chunks    map[string]Chunk
}

func NewGOBStore(indexPath string) *GOBStore {
	return &GOBStore{
		indexPath: indexPath,
		lockPath:  indexPath + ".lock",
		documents: make(map[string]Document),
		chunks:    make(map[string]Chunk),
		pathIndex: make(map[string]string),
	}
}

func pathKey(tn tenant.Context, relativePath string) string {
	return tn.Key() + "\x00" + relativePath
}

// inTenant reports whether the document belongs to the tenant scope.
func inTenant(doc *Document, tn tenant.Context) bool {
	return doc.ProjectName == tn.ProjectName &&
		doc.BranchName == tn.BranchName &&
		doc.PathHash == tn.PathHash
}

func (s *GOBStore) UpsertDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(doc, chunks)
	return nil
}

// upsertLocked replaces the document and its entire chunk set. A path
// holds at most one document, so a different document already at the
// target path is evicted. Caller holds the write lock.
func (s *GOBStore) upsertLocked(doc Document, chunks []Chunk) {
	if old, ok := s.documents[doc.ID]; ok {
		delete(s.pathIndex, pathKey(old.Tenant(), old.RelativePath))
		s.deleteChunksLocked(doc.ID)
	}
	s.evictPathLocked(doc.Tenant(), doc.RelativePath, doc.ID)

	s.documents[doc.ID] = doc
	s.pathIndex[pathKey(doc.Tenant(), doc.RelativePath)] = doc.ID
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
}

// evictPathLocked removes whatever other document holds the path, so no
// record is ever stranded without a path-index entry.
func (s *GOBStore) evictPathLocked(tn tenant.Context, relativePath, keepID string) {
	key := pathKey(tn, relativePath)
	id, ok := s.pathIndex[key]
	if !ok || id == keepID {
		return
	}
	s.deleteChunksLocked(id)
	delete(s.documents, id)
	delete(s.pathIndex, key)
}

func (s *GOBStore) deleteChunksLocked(documentID string) {
	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
}

func (s *GOBStore) DeleteDocument(ctx context.Context, tn tenant.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok || !inTenant(&doc, tn) {
		return ErrNotFound
	}

	s.deleteChunksLocked(documentID)
	delete(s.pathIndex, pathKey(doc.Tenant(), doc.RelativePath))
	delete(s.documents, documentID)
	return nil
}

func (s *GOBStore) SetPromotionLevel(ctx context.Context, tn tenant.Context, documentID string, level PromotionLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok || !inTenant(&doc, tn) {
		return ErrNotFound
	}

	doc.PromotionLevel = level
	doc.UpdatedAt = time.Now()
	s.documents[documentID] = doc

	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			c.PromotionLevel = level
			s.chunks[id] = c
		}
	}
	return nil
}

func (s *GOBStore) UpdatePath(ctx context.Context, tn tenant.Context, documentID, newRelativePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok || !inTenant(&doc, tn) {
		return ErrNotFound
	}

	delete(s.pathIndex, pathKey(doc.Tenant(), doc.RelativePath))
	s.evictPathLocked(doc.Tenant(), newRelativePath, documentID)
	doc.RelativePath = newRelativePath
	doc.UpdatedAt = time.Now()
	s.documents[documentID] = doc
	s.pathIndex[pathKey(doc.Tenant(), newRelativePath)] = documentID
	return nil
}

func (s *GOBStore) BulkUpsert(ctx context.Context, items []Upsert) ([]BatchItemError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failures []BatchItemError
	for _, item := range items {
		if item.Document.ID == "" {
			failures = append(failures, BatchItemError{
				DocumentID: item.Document.RelativePath,
				Err:        fmt.Errorf("document id must not be empty"),
			})
			continue
		}
		s.upsertLocked(item.Document, item.Chunks)
	}
	return failures, nil
}

func (s *GOBStore) BulkDelete(ctx context.Context, tn tenant.Context, documentIDs []string) (int, []BatchItemError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range documentIDs {
		doc, ok := s.documents[id]
		if !ok || !inTenant(&doc, tn) {
			continue
		}
		s.deleteChunksLocked(id)
		delete(s.pathIndex, pathKey(doc.Tenant(), doc.RelativePath))
		delete(s.documents, id)
		deleted++
	}
	return deleted, nil, nil
}

func (s *GOBStore) DeleteTenant(ctx context.Context, tn tenant.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, doc := range s.documents {
		if !inTenant(&doc, tn) {
			continue
		}
		s.deleteChunksLocked(id)
		delete(s.pathIndex, pathKey(doc.Tenant(), doc.RelativePath))
		delete(s.documents, id)
		deleted++
	}
	return deleted, nil
}

func (s *GOBStore) Search(ctx context.Context, tn tenant.Context, queryVector []float32, opts SearchOptions) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []SearchHit

	// Unchunked documents are ranked by their document-level embedding;
	// chunked ones by their chunk embeddings.
	for _, doc := range s.documents {
		if !inTenant(&doc, tn) || doc.IsChunked {
			continue
		}
		score := cosineSimilarity(queryVector, doc.Embedding)
		if score < opts.MinScore {
			continue
		}
		hits = append(hits, SearchHit{
			Score:          score,
			DocumentID:     doc.ID,
			RelativePath:   doc.RelativePath,
			Title:          doc.Title,
			Content:        doc.Summary,
			PromotionLevel: doc.PromotionLevel,
		})
	}

	for _, chunk := range s.chunks {
		doc, ok := s.documents[chunk.DocumentID]
		if !ok || !inTenant(&doc, tn) {
			continue
		}
		score := cosineSimilarity(queryVector, chunk.Embedding)
		if score < opts.MinScore {
			continue
		}
		hits = append(hits, SearchHit{
			Score:          score,
			DocumentID:     chunk.DocumentID,
			RelativePath:   doc.RelativePath,
			Title:          doc.Title,
			HeaderPath:     chunk.HeaderPath,
			Content:        chunk.Content,
			PromotionLevel: chunk.PromotionLevel,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	return hits, nil
}

func (s *GOBStore) GetByPath(ctx context.Context, tn tenant.Context, relativePath string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.pathIndex[pathKey(tn, relativePath)]
	if !ok {
		return nil, nil
	}
	doc := s.documents[id]
	return &doc, nil
}

func (s *GOBStore) GetByID(ctx context.Context, tn tenant.Context, documentID string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	if !ok || !inTenant(&doc, tn) {
		return nil, nil
	}
	return &doc, nil
}

func (s *GOBStore) ListDocuments(ctx context.Context, tn tenant.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []Document
	for _, doc := range s.documents {
		if !inTenant(&doc, tn) {
			continue
		}
		doc.Embedding = nil
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *GOBStore) GetChunks(ctx context.Context, tn tenant.Context, documentID string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	if !ok || !inTenant(&doc, tn) {
		return nil, nil
	}

	var chunks []Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			chunks = append(chunks, c)
		}
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	return chunks, nil
}

func (s *GOBStore) Stats(ctx context.Context, tn tenant.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	for id, doc := range s.documents {
		if !inTenant(&doc, tn) {
			continue
		}
		stats.Documents++
		if doc.UpdatedAt.After(stats.LastUpdated) {
			stats.LastUpdated = doc.UpdatedAt
		}
		for _, c := range s.chunks {
			if c.DocumentID == id {
				stats.Chunks++
			}
		}
	}
	return stats, nil
}

func (s *GOBStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Shared file lock for cross-process safety; proceed unlocked when
	// the lock file cannot be used.
	lockFile, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return s.loadUnlocked()
	}
	defer lockFile.Close()

	if err := fileutil.LockShared(lockFile); err != nil {
		return s.loadUnlocked()
	}
	defer func() {
		_ = fileutil.Unlock(lockFile)
	}()

	return s.loadUnlocked()
}

func (s *GOBStore) loadUnlocked() error {
	file, err := os.Open(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	var data gobData
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	s.documents = data.Documents
	s.chunks = data.Chunks
	if s.documents == nil {
		s.documents = make(map[string]Document)
	}
	if s.chunks == nil {
		s.chunks = make(map[string]Chunk)
	}

	s.pathIndex = make(map[string]string, len(s.documents))
	for id, doc := range s.documents {
		s.pathIndex[pathKey(doc.Tenant(), doc.RelativePath)] = id
	}

	return nil
}

func (s *GOBStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lockFile, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return s.persistUnlocked()
	}
	defer lockFile.Close()

	if err := fileutil.LockExclusive(lockFile); err != nil {
		return s.persistUnlocked()
	}
	defer func() {
		_ = fileutil.Unlock(lockFile)
	}()

	return s.persistUnlocked()
}

// persistUnlocked writes to a temp file and renames it into place so a
// crash mid-write never truncates the index.
func (s *GOBStore) persistUnlocked() error {
	if err := fileutil.EnsureParentDir(s.indexPath); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tempPath := s.indexPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	data := gobData{
		Documents: s.documents,
		Chunks:    s.chunks,
	}

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}

	return fileutil.ReplaceAtomically(tempPath, s.indexPath)
}

func (s *GOBStore) Close() error {
	return s.Persist(context.Background())
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}
