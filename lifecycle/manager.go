package lifecycle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mnemo-dev/mnemo/embedder"
	"github.com/mnemo-dev/mnemo/parser"
	"github.com/mnemo-dev/mnemo/store"
	"github.com/mnemo-dev/mnemo/tenant"
)

// Result reports the outcome of a single document operation. Failed
// operations carry a classification instead of aborting the caller.
type Result struct {
	Success      bool
	DocumentID   string
	RelativePath string
	Skipped      bool
	SkipReason   string
	ChunkCount   int
	ErrorCode    ErrorCode
	ErrorMessage string
}

const (
	SkipContentUnchanged = "content unchanged"
	SkipNotIndexed       = "not indexed"
)

// Manager runs the document lifecycle for one tenant scope: it reads
// files under root, parses and embeds them, and keeps the store in step
// with disk. All operations are idempotent so replays after a crash or
// an out-of-order watcher event converge to the same state.
type Manager struct {
	store     store.Store
	embedder  embedder.Embedder
	parser    parser.Parser
	validator parser.Validator
	chunks    *ChunkEngine
	tenant    tenant.Context
	root      string
	logger    zerolog.Logger
}

func NewManager(s store.Store, emb embedder.Embedder, tn tenant.Context, root string, thresholdLines int, logger zerolog.Logger) *Manager {
	return &Manager{
		store:     s,
		embedder:  emb,
		parser:    parser.NewMarkdownParser(),
		validator: parser.NewRuleValidator(),
		chunks:    NewChunkEngine(emb, thresholdLines),
		tenant:    tn,
		root:      root,
		logger:    logger,
	}
}

// SetValidator replaces the default validator, used when the project
// config restricts document types.
func (m *Manager) SetValidator(v parser.Validator) {
	m.validator = v
}

func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (m *Manager) readFile(relativePath string) ([]byte, *OpError) {
	data, err := os.ReadFile(filepath.Join(m.root, relativePath))
	if err != nil {
		return nil, opErrf(ErrCodeFileRead, "failed to read %s: %w", relativePath, err)
	}
	return data, nil
}

func failure(relativePath string, err error) Result {
	return Result{
		RelativePath: relativePath,
		ErrorCode:    CodeOf(err),
		ErrorMessage: err.Error(),
	}
}

// Create indexes a new file. Calling Create for a path that is already
// indexed behaves as Update, so watcher create/write races are harmless.
func (m *Manager) Create(ctx context.Context, relativePath string) Result {
	return m.Update(ctx, relativePath)
}

// Update re-indexes a file, skipping all embedding work when the content
// hash matches what the store already holds. An unindexed path is created.
func (m *Manager) Update(ctx context.Context, relativePath string) Result {
	raw, ferr := m.readFile(relativePath)
	if ferr != nil {
		return failure(relativePath, ferr)
	}

	hash := ContentHash(raw)
	existing, err := m.store.GetByPath(ctx, m.tenant, relativePath)
	if err != nil {
		return failure(relativePath, opErrf(ErrCodePersistence, "lookup failed for %s: %w", relativePath, err))
	}

	if existing != nil && existing.ContentHash == hash {
		m.logger.Debug().Str("path", relativePath).Msg("content unchanged, skipping")
		return Result{
			Success:      true,
			DocumentID:   existing.ID,
			RelativePath: relativePath,
			Skipped:      true,
			SkipReason:   SkipContentUnchanged,
			ChunkCount:   existing.ChunkCount,
		}
	}

	documentID := uuid.NewString()
	var level store.PromotionLevel
	if existing != nil {
		documentID = existing.ID
		level = existing.PromotionLevel
	}

	doc, chunks, oerr := m.buildDocument(ctx, documentID, relativePath, level, string(raw), hash)
	if oerr != nil {
		return failure(relativePath, oerr)
	}

	err = retryWrite(ctx, func() error {
		return m.store.UpsertDocument(ctx, *doc, chunks)
	})
	if err != nil {
		return failure(relativePath, opErrf(ErrCodePersistence, "failed to store %s: %w", relativePath, err))
	}

	m.logger.Info().
		Str("path", relativePath).
		Str("document_id", doc.ID).
		Int("chunks", doc.ChunkCount).
		Msg("document indexed")

	return Result{
		Success:      true,
		DocumentID:   doc.ID,
		RelativePath: relativePath,
		ChunkCount:   doc.ChunkCount,
	}
}

// buildDocument parses, validates, and embeds content into a store-ready
// document. Chunked documents carry chunk embeddings only; unchunked
// documents carry a single document-level embedding.
func (m *Manager) buildDocument(ctx context.Context, documentID, relativePath string, level store.PromotionLevel, content, hash string) (*store.Document, []store.Chunk, *OpError) {
	parsed, err := m.parser.Parse(content)
	if err != nil {
		return nil, nil, opErrf(ErrCodeParse, "failed to parse %s: %w", relativePath, err)
	}
	if err := m.validator.Validate(parsed); err != nil {
		return nil, nil, opErrf(ErrCodeValidation, "invalid document %s: %w", relativePath, err)
	}

	// Front-matter promotion applies on first index only; after that the
	// stored level is authoritative. An empty level marks a first index.
	if level == "" {
		level = store.PromotionStandard
		if parsed.Promotion != "" {
			level = store.PromotionLevel(parsed.Promotion)
		}
	}

	doc := &store.Document{
		ID:             documentID,
		ProjectName:    m.tenant.ProjectName,
		BranchName:     m.tenant.BranchName,
		PathHash:       m.tenant.PathHash,
		RelativePath:   relativePath,
		Title:          parsed.Title,
		Summary:        parsed.Summary,
		DocType:        parsed.DocType,
		PromotionLevel: level,
		ContentHash:    hash,
		CharCount:      len(content),
		Metadata:       parsed.Metadata,
		UpdatedAt:      time.Now().UTC(),
	}

	if m.chunks.ShouldChunk(parsed.Body) {
		built, err := m.chunks.BuildChunks(ctx, m.tenant, *doc, parsed.Body)
		if err != nil {
			var oe *OpError
			if !errors.As(err, &oe) {
				oe = opErr(ErrCodeEmbedding, err)
			}
			return nil, nil, oe
		}
		doc.IsChunked = true
		doc.ChunkCount = len(built)
		return doc, built, nil
	}

	vec, err := m.embedder.Embed(ctx, embedText(parsed))
	if err != nil {
		return nil, nil, opErrf(ErrCodeEmbedding, "failed to embed %s: %w", relativePath, err)
	}
	doc.Embedding = vec
	return doc, nil, nil
}

// embedText prefixes the body with title and summary so short documents
// still rank on their front matter.
func embedText(parsed *parser.ParsedDocument) string {
	header := parsed.Title
	if parsed.Summary != "" {
		header += "\n" + parsed.Summary
	}
	if header == "" {
		return parsed.Body
	}
	return header + "\n\n" + parsed.Body
}

// Delete removes a file's records. Deleting a path that was never
// indexed succeeds as a skip, since the end state already holds.
func (m *Manager) Delete(ctx context.Context, relativePath string) Result {
	existing, err := m.store.GetByPath(ctx, m.tenant, relativePath)
	if err != nil {
		return failure(relativePath, opErrf(ErrCodePersistence, "lookup failed for %s: %w", relativePath, err))
	}
	if existing == nil {
		return Result{
			Success:      true,
			RelativePath: relativePath,
			Skipped:      true,
			SkipReason:   SkipNotIndexed,
		}
	}

	err = retryWrite(ctx, func() error {
		return m.store.DeleteDocument(ctx, m.tenant, existing.ID)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return failure(relativePath, opErrf(ErrCodePersistence, "failed to delete %s: %w", relativePath, err))
	}

	m.logger.Info().
		Str("path", relativePath).
		Str("document_id", existing.ID).
		Msg("document removed")

	return Result{
		Success:      true,
		DocumentID:   existing.ID,
		RelativePath: relativePath,
	}
}

// Rename moves a document to a new path. When the content is unchanged
// only the stored path moves; embeddings and chunks are untouched. When
// the content changed in flight the old records are replaced entirely.
func (m *Manager) Rename(ctx context.Context, oldPath, newPath string) Result {
	existing, err := m.store.GetByPath(ctx, m.tenant, oldPath)
	if err != nil {
		return failure(newPath, opErrf(ErrCodePersistence, "lookup failed for %s: %w", oldPath, err))
	}
	if existing == nil {
		return m.Update(ctx, newPath)
	}

	raw, ferr := m.readFile(newPath)
	if ferr != nil {
		return failure(newPath, ferr)
	}

	if ContentHash(raw) == existing.ContentHash {
		err = retryWrite(ctx, func() error {
			return m.store.UpdatePath(ctx, m.tenant, existing.ID, newPath)
		})
		if err != nil {
			return failure(newPath, opErrf(ErrCodePersistence, "failed to move %s to %s: %w", oldPath, newPath, err))
		}
		m.logger.Info().
			Str("from", oldPath).
			Str("to", newPath).
			Msg("document moved")
		return Result{
			Success:      true,
			DocumentID:   existing.ID,
			RelativePath: newPath,
			ChunkCount:   existing.ChunkCount,
		}
	}

	// Content diverged during the move: the old records describe a file
	// that no longer exists, so replace them.
	err = retryWrite(ctx, func() error {
		return m.store.DeleteDocument(ctx, m.tenant, existing.ID)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return failure(newPath, opErrf(ErrCodePersistence, "failed to replace %s: %w", oldPath, err))
	}
	return m.Update(ctx, newPath)
}

// BatchResult summarizes a batch run. Failures lists the non-skip errors
// in input order.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
	Failures  []Result
}

func (r BatchResult) String() string {
	return fmt.Sprintf("%d processed: %d succeeded, %d skipped, %d failed in %s",
		r.Total, r.Succeeded, r.Skipped, r.Failed, r.Duration.Round(time.Millisecond))
}

// OpKind names a batch operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	OpRename OpKind = "rename"
)

// BatchOp is one unit of work for ProcessBatch. OldPath is set for
// renames only.
type BatchOp struct {
	Kind    OpKind
	Path    string
	OldPath string
}

// ProcessBatch runs operations sequentially with per-item isolation: one
// failing file never blocks the rest of the batch.
func (m *Manager) ProcessBatch(ctx context.Context, ops []BatchOp) BatchResult {
	start := time.Now()
	result := BatchResult{Total: len(ops)}

	for _, op := range ops {
		if ctx.Err() != nil {
			break
		}

		var res Result
		switch op.Kind {
		case OpDelete:
			res = m.Delete(ctx, op.Path)
		case OpRename:
			res = m.Rename(ctx, op.OldPath, op.Path)
		default:
			res = m.Update(ctx, op.Path)
		}

		switch {
		case res.Skipped:
			result.Skipped++
		case res.Success:
			result.Succeeded++
		default:
			result.Failed++
			result.Failures = append(result.Failures, res)
			m.logger.Warn().
				Str("path", res.RelativePath).
				Str("code", string(res.ErrorCode)).
				Str("error", res.ErrorMessage).
				Msg("batch item failed")
		}
	}

	result.Duration = time.Since(start)
	return result
}
