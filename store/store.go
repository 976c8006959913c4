// Package store persists documents and chunks and answers vector
// similarity queries over them. Access is split into two narrow
// interfaces: a transactional write path and a search read path, both
// scoped by the tenant triple. Backends implement both against one
// logical store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mnemo-dev/mnemo/tenant"
)

// ErrNotFound is returned by lookups and mutations that target a document
// the store does not hold. Callers decide whether that is a hard failure
// or a graceful no-op.
var ErrNotFound = errors.New("document not found")

// PromotionLevel is a visibility/priority tier on a document, cascaded to
// its chunks.
type PromotionLevel string

const (
	PromotionStandard  PromotionLevel = "standard"
	PromotionImportant PromotionLevel = "important"
	PromotionCritical  PromotionLevel = "critical"
)

// Valid reports whether the level is one of the known tiers.
func (p PromotionLevel) Valid() bool {
	switch p {
	case PromotionStandard, PromotionImportant, PromotionCritical:
		return true
	}
	return false
}

// Document represents one indexed markdown file. ID is assigned once at
// first index and never changes across updates; the tenant fields are
// denormalized onto every record so reads never need a join to scope.
type Document struct {
	ID             string          `json:"id"`
	ProjectName    string          `json:"project_name"`
	BranchName     string          `json:"branch_name"`
	PathHash       string          `json:"path_hash"`
	RelativePath   string          `json:"relative_path"`
	Title          string          `json:"title"`
	Summary        string          `json:"summary"`
	DocType        string          `json:"doc_type"`
	PromotionLevel PromotionLevel  `json:"promotion_level"`
	ContentHash    string          `json:"content_hash"`
	CharCount      int             `json:"char_count"`
	Embedding      []float32       `json:"embedding"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	IsChunked      bool            `json:"is_chunked"`
	ChunkCount     int             `json:"chunk_count"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Tenant returns the tenant triple the document belongs to.
func (d *Document) Tenant() tenant.Context {
	return tenant.Context{
		ProjectName: d.ProjectName,
		BranchName:  d.BranchName,
		PathHash:    d.PathHash,
	}
}

// Chunk is one contiguous span of a chunked document. Chunks never outlive
// their parent and are always replaced as a complete set.
type Chunk struct {
	ID             string         `json:"id"`
	DocumentID     string         `json:"document_id"`
	ProjectName    string         `json:"project_name"`
	BranchName     string         `json:"branch_name"`
	PathHash       string         `json:"path_hash"`
	PromotionLevel PromotionLevel `json:"promotion_level"`
	ChunkIndex     int            `json:"chunk_index"`
	HeaderPath     string         `json:"header_path"`
	Content        string         `json:"content"`
	Embedding      []float32      `json:"embedding"`
}

// SearchHit is one ranked similarity match. Whole-document hits (for
// unchunked documents) have an empty HeaderPath and carry the summary as
// content; chunk hits carry the chunk span.
type SearchHit struct {
	Score          float32        `json:"score"`
	DocumentID     string         `json:"document_id"`
	RelativePath   string         `json:"relative_path"`
	Title          string         `json:"title"`
	HeaderPath     string         `json:"header_path,omitempty"`
	Content        string         `json:"content"`
	PromotionLevel PromotionLevel `json:"promotion_level"`
}

// SearchOptions bound a similarity query.
type SearchOptions struct {
	Limit    int
	MinScore float32
}

// Stats summarizes the store contents for one tenant.
type Stats struct {
	Documents   int       `json:"documents"`
	Chunks      int       `json:"chunks"`
	LastUpdated time.Time `json:"last_updated"`
}

// BatchItemError records one failed item of a bulk operation. Bulk calls
// report item failures without rolling back unrelated items.
type BatchItemError struct {
	DocumentID string
	Err        error
}

// Upsert pairs a document with its complete chunk set for bulk writes.
type Upsert struct {
	Document Document
	Chunks   []Chunk
}

// Writer is the transactional write path. Every method is atomic: a
// document is never visible with a partial or stale chunk set, and a
// promotion update is never visible on the document without its chunks.
type Writer interface {
	// UpsertDocument writes the document and replaces its chunk set in
	// one atomic unit. An empty chunk slice removes all chunks. A path
	// holds at most one document: any other document already at the
	// target path is removed.
	UpsertDocument(ctx context.Context, doc Document, chunks []Chunk) error

	// DeleteDocument removes the document and all its chunks. Returns
	// ErrNotFound when the id is unknown to the tenant.
	DeleteDocument(ctx context.Context, tn tenant.Context, documentID string) error

	// SetPromotionLevel updates the document's promotion level and
	// cascades it to every chunk atomically.
	SetPromotionLevel(ctx context.Context, tn tenant.Context, documentID string, level PromotionLevel) error

	// UpdatePath changes only the relative path of a document, leaving
	// id, embedding, and chunks untouched. Any other document already at
	// the target path is removed.
	UpdatePath(ctx context.Context, tn tenant.Context, documentID, newRelativePath string) error

	// BulkUpsert applies each upsert with per-item atomicity. Item
	// failures are reported and do not abort the remainder; the error
	// return is reserved for store-level failures.
	BulkUpsert(ctx context.Context, items []Upsert) ([]BatchItemError, error)

	// BulkDelete removes the listed documents (and their chunks),
	// skipping unknown ids. Returns the number actually deleted.
	BulkDelete(ctx context.Context, tn tenant.Context, documentIDs []string) (int, []BatchItemError, error)

	// DeleteTenant removes every record in the tenant scope. Returns the
	// number of documents removed.
	DeleteTenant(ctx context.Context, tn tenant.Context) (int, error)
}

// Searcher is the vector-indexed read path.
type Searcher interface {
	// Search ranks stored vectors against the query vector within the
	// tenant scope, dropping hits below MinScore and truncating to Limit.
	Search(ctx context.Context, tn tenant.Context, queryVector []float32, opts SearchOptions) ([]SearchHit, error)

	// GetByPath retrieves a document by relative path. Returns
	// (nil, nil) when absent.
	GetByPath(ctx context.Context, tn tenant.Context, relativePath string) (*Document, error)

	// GetByID retrieves a document by id. Returns (nil, nil) when absent.
	GetByID(ctx context.Context, tn tenant.Context, documentID string) (*Document, error)

	// ListDocuments returns every document in the tenant scope, without
	// embeddings, for reconciliation diffs.
	ListDocuments(ctx context.Context, tn tenant.Context) ([]Document, error)

	// GetChunks returns a document's chunks ordered by index.
	GetChunks(ctx context.Context, tn tenant.Context, documentID string) ([]Chunk, error)

	// Stats returns document/chunk counts for the tenant.
	Stats(ctx context.Context, tn tenant.Context) (*Stats, error)
}

// Store is the full hybrid repository: both access paths plus lifecycle
// hooks for backends that persist to local files.
type Store interface {
	Writer
	Searcher

	// Load reads the store from persistent storage (no-op for backends
	// that are always durable).
	Load(ctx context.Context) error

	// Persist writes the store to persistent storage (no-op for backends
	// that are always durable).
	Persist(ctx context.Context) error

	// Close cleanly shuts down the store.
	Close() error
}
