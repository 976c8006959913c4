package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/mnemo-dev/mnemo/tenant"
)

// PostgresStore is the production backend: pgvector for the similarity
// read path, transactions for the atomic write path. One pool serves both.
type PostgresStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, dimensions int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, dimensions: dimensions}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id              TEXT PRIMARY KEY,
			project_name    TEXT NOT NULL,
			branch_name     TEXT NOT NULL,
			path_hash       TEXT NOT NULL,
			relative_path   TEXT NOT NULL,
			title           TEXT NOT NULL DEFAULT '',
			summary         TEXT NOT NULL DEFAULT '',
			doc_type        TEXT NOT NULL DEFAULT '',
			promotion_level TEXT NOT NULL DEFAULT 'standard',
			content_hash    TEXT NOT NULL,
			char_count      INTEGER NOT NULL DEFAULT 0,
			embedding       vector(%d),
			metadata        JSONB,
			is_chunked      BOOLEAN NOT NULL DEFAULT FALSE,
			chunk_count     INTEGER NOT NULL DEFAULT 0,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (project_name, branch_name, path_hash, relative_path)
		)`, s.dimensions),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id              TEXT PRIMARY KEY,
			document_id     TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			project_name    TEXT NOT NULL,
			branch_name     TEXT NOT NULL,
			path_hash       TEXT NOT NULL,
			promotion_level TEXT NOT NULL DEFAULT 'standard',
			chunk_index     INTEGER NOT NULL,
			header_path     TEXT NOT NULL DEFAULT '',
			content         TEXT NOT NULL,
			embedding       vector(%d)
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_documents_tenant
			ON documents (project_name, branch_name, path_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

const tenantFilter = `project_name = $1 AND branch_name = $2 AND path_hash = $3`

func (s *PostgresStore) UpsertDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertDocumentTx(ctx, tx, doc, chunks); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func upsertDocumentTx(ctx context.Context, tx pgx.Tx, doc Document, chunks []Chunk) error {
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	// A path holds at most one document; evict any other holder so the
	// unique path index never rejects the write.
	_, err := tx.Exec(ctx,
		`DELETE FROM documents WHERE `+tenantFilter+` AND relative_path = $4 AND id <> $5`,
		doc.ProjectName, doc.BranchName, doc.PathHash, doc.RelativePath, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to clear target path: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (
			id, project_name, branch_name, path_hash, relative_path,
			title, summary, doc_type, promotion_level, content_hash,
			char_count, embedding, metadata, is_chunked, chunk_count, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			relative_path = EXCLUDED.relative_path,
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			doc_type = EXCLUDED.doc_type,
			promotion_level = EXCLUDED.promotion_level,
			content_hash = EXCLUDED.content_hash,
			char_count = EXCLUDED.char_count,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			is_chunked = EXCLUDED.is_chunked,
			chunk_count = EXCLUDED.chunk_count,
			updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.ProjectName, doc.BranchName, doc.PathHash, doc.RelativePath,
		doc.Title, doc.Summary, doc.DocType, string(doc.PromotionLevel), doc.ContentHash,
		doc.CharCount, pgvector.NewVector(doc.Embedding), doc.Metadata,
		doc.IsChunked, doc.ChunkCount, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
			INSERT INTO chunks (
				id, document_id, project_name, branch_name, path_hash,
				promotion_level, chunk_index, header_path, content, embedding
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			c.ID, c.DocumentID, c.ProjectName, c.BranchName, c.PathHash,
			string(c.PromotionLevel), c.ChunkIndex, c.HeaderPath, c.Content,
			pgvector.NewVector(c.Embedding))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, tn tenant.Context, documentID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $4 AND `+tenantFilter,
		tn.ProjectName, tn.BranchName, tn.PathHash, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetPromotionLevel(ctx context.Context, tn tenant.Context, documentID string, level PromotionLevel) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE documents SET promotion_level = $5, updated_at = now()
		 WHERE id = $4 AND `+tenantFilter,
		tn.ProjectName, tn.BranchName, tn.PathHash, documentID, string(level))
	if err != nil {
		return fmt.Errorf("failed to update document promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx,
		`UPDATE chunks SET promotion_level = $2 WHERE document_id = $1`,
		documentID, string(level)); err != nil {
		return fmt.Errorf("failed to cascade promotion to chunks: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) UpdatePath(ctx context.Context, tn tenant.Context, documentID, newRelativePath string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM documents WHERE `+tenantFilter+` AND relative_path = $4 AND id <> $5`,
		tn.ProjectName, tn.BranchName, tn.PathHash, newRelativePath, documentID)
	if err != nil {
		return fmt.Errorf("failed to clear target path: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE documents SET relative_path = $5, updated_at = now()
		 WHERE id = $4 AND `+tenantFilter,
		tn.ProjectName, tn.BranchName, tn.PathHash, documentID, newRelativePath)
	if err != nil {
		return fmt.Errorf("failed to update document path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) BulkUpsert(ctx context.Context, items []Upsert) ([]BatchItemError, error) {
	var failures []BatchItemError

	// One transaction per item: item-level atomicity, batch-level
	// partial success.
	for _, item := range items {
		if err := s.UpsertDocument(ctx, item.Document, item.Chunks); err != nil {
			failures = append(failures, BatchItemError{
				DocumentID: item.Document.ID,
				Err:        err,
			})
		}
	}
	return failures, nil
}

func (s *PostgresStore) BulkDelete(ctx context.Context, tn tenant.Context, documentIDs []string) (int, []BatchItemError, error) {
	deleted := 0
	var failures []BatchItemError

	for _, id := range documentIDs {
		err := s.DeleteDocument(ctx, tn, id)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, ErrNotFound):
			// Already gone; bulk delete is idempotent.
		default:
			failures = append(failures, BatchItemError{DocumentID: id, Err: err})
		}
	}
	return deleted, failures, nil
}

func (s *PostgresStore) DeleteTenant(ctx context.Context, tn tenant.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE `+tenantFilter,
		tn.ProjectName, tn.BranchName, tn.PathHash)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tenant records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Search(ctx context.Context, tn tenant.Context, queryVector []float32, opts SearchOptions) ([]SearchHit, error) {
	qv := pgvector.NewVector(queryVector)
	var hits []SearchHit

	// Unchunked documents rank by their document-level embedding.
	docRows, err := s.pool.Query(ctx, `
		SELECT id, relative_path, title, summary, promotion_level,
		       1 - (embedding <=> $4) AS score
		FROM documents
		WHERE `+tenantFilter+` AND NOT is_chunked AND embedding IS NOT NULL
		ORDER BY embedding <=> $4
		LIMIT $5`,
		tn.ProjectName, tn.BranchName, tn.PathHash, qv, searchLimit(opts))
	if err != nil {
		return nil, fmt.Errorf("document search failed: %w", err)
	}
	defer docRows.Close()

	for docRows.Next() {
		var h SearchHit
		var level string
		if err := docRows.Scan(&h.DocumentID, &h.RelativePath, &h.Title, &h.Content, &level, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan document hit: %w", err)
		}
		h.PromotionLevel = PromotionLevel(level)
		if h.Score >= opts.MinScore {
			hits = append(hits, h)
		}
	}
	if err := docRows.Err(); err != nil {
		return nil, fmt.Errorf("document search failed: %w", err)
	}

	chunkRows, err := s.pool.Query(ctx, `
		SELECT c.document_id, d.relative_path, d.title, c.header_path,
		       c.content, c.promotion_level, 1 - (c.embedding <=> $4) AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.project_name = $1 AND c.branch_name = $2 AND c.path_hash = $3
		ORDER BY c.embedding <=> $4
		LIMIT $5`,
		tn.ProjectName, tn.BranchName, tn.PathHash, qv, searchLimit(opts))
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}
	defer chunkRows.Close()

	for chunkRows.Next() {
		var h SearchHit
		var level string
		if err := chunkRows.Scan(&h.DocumentID, &h.RelativePath, &h.Title, &h.HeaderPath, &h.Content, &level, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk hit: %w", err)
		}
		h.PromotionLevel = PromotionLevel(level)
		if h.Score >= opts.MinScore {
			hits = append(hits, h)
		}
	}
	if err := chunkRows.Err(); err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	return hits, nil
}

func searchLimit(opts SearchOptions) int {
	if opts.Limit > 0 {
		return opts.Limit
	}
	return 50
}

const documentColumns = `id, project_name, branch_name, path_hash, relative_path,
	title, summary, doc_type, promotion_level, content_hash, char_count,
	metadata, is_chunked, chunk_count, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	var level string
	err := row.Scan(&d.ID, &d.ProjectName, &d.BranchName, &d.PathHash, &d.RelativePath,
		&d.Title, &d.Summary, &d.DocType, &level, &d.ContentHash, &d.CharCount,
		&d.Metadata, &d.IsChunked, &d.ChunkCount, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	d.PromotionLevel = PromotionLevel(level)
	return &d, nil
}

func (s *PostgresStore) GetByPath(ctx context.Context, tn tenant.Context, relativePath string) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE `+tenantFilter+` AND relative_path = $4`,
		tn.ProjectName, tn.BranchName, tn.PathHash, relativePath)
	return scanDocument(row)
}

func (s *PostgresStore) GetByID(ctx context.Context, tn tenant.Context, documentID string) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE `+tenantFilter+` AND id = $4`,
		tn.ProjectName, tn.BranchName, tn.PathHash, documentID)
	return scanDocument(row)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, tn tenant.Context) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE `+tenantFilter,
		tn.ProjectName, tn.BranchName, tn.PathHash)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var level string
		err := rows.Scan(&d.ID, &d.ProjectName, &d.BranchName, &d.PathHash, &d.RelativePath,
			&d.Title, &d.Summary, &d.DocType, &level, &d.ContentHash, &d.CharCount,
			&d.Metadata, &d.IsChunked, &d.ChunkCount, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.PromotionLevel = PromotionLevel(level)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) GetChunks(ctx context.Context, tn tenant.Context, documentID string) ([]Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, project_name, branch_name, path_hash,
		       promotion_level, chunk_index, header_path, content
		FROM chunks
		WHERE `+tenantFilter+` AND document_id = $4
		ORDER BY chunk_index`,
		tn.ProjectName, tn.BranchName, tn.PathHash, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var level string
		err := rows.Scan(&c.ID, &c.DocumentID, &c.ProjectName, &c.BranchName, &c.PathHash,
			&level, &c.ChunkIndex, &c.HeaderPath, &c.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.PromotionLevel = PromotionLevel(level)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context, tn tenant.Context) (*Stats, error) {
	stats := &Stats{}
	var lastUpdated *time.Time

	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
		       (SELECT count(*) FROM chunks WHERE `+tenantFilter+`),
		       max(updated_at)
		FROM documents WHERE `+tenantFilter,
		tn.ProjectName, tn.BranchName, tn.PathHash).
		Scan(&stats.Documents, &stats.Chunks, &lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}

	if lastUpdated != nil {
		stats.LastUpdated = *lastUpdated
	}
	return stats, nil
}

// Load is a no-op; postgres is always durable.
func (s *PostgresStore) Load(ctx context.Context) error {
	return nil
}

// Persist is a no-op; postgres is always durable.
func (s *PostgresStore) Persist(ctx context.Context) error {
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
