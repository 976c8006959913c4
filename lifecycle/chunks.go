package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/mnemo-dev/mnemo/embedder"
	"github.com/mnemo-dev/mnemo/splitter"
	"github.com/mnemo-dev/mnemo/store"
	"github.com/mnemo-dev/mnemo/tenant"
)

// ChunkEngine decides when a document crosses the chunking threshold and
// builds its embedded chunk set. Chunk IDs are derived from the document
// ID so a rebuild replaces the previous set wholesale.
type ChunkEngine struct {
	embedder       embedder.Embedder
	thresholdLines int
}

func NewChunkEngine(emb embedder.Embedder, thresholdLines int) *ChunkEngine {
	return &ChunkEngine{embedder: emb, thresholdLines: thresholdLines}
}

// ShouldChunk reports whether content is long enough to be split. The
// threshold is exclusive: a document of exactly thresholdLines stays whole.
func (e *ChunkEngine) ShouldChunk(content string) bool {
	return countLines(content) > e.thresholdLines
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n") + 1
	if strings.HasSuffix(content, "\n") {
		n--
	}
	return n
}

func chunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-chunk-%04d", documentID, index)
}

// BuildChunks splits content by heading structure and embeds each section.
// Indices are contiguous from zero in document order.
func (e *ChunkEngine) BuildChunks(ctx context.Context, tn tenant.Context, doc store.Document, content string) ([]store.Chunk, error) {
	sections := splitter.Split(content)
	chunks := make([]store.Chunk, 0, len(sections))

	for i, sec := range sections {
		text := sec.Content
		if sec.HeaderPath != "" {
			text = sec.HeaderPath + "\n\n" + sec.Content
		}
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return nil, opErrf(ErrCodeEmbedding, "failed to embed chunk %d of %s: %w", i, doc.RelativePath, err)
		}

		chunks = append(chunks, store.Chunk{
			ID:             chunkID(doc.ID, i),
			DocumentID:     doc.ID,
			ProjectName:    tn.ProjectName,
			BranchName:     tn.BranchName,
			PathHash:       tn.PathHash,
			PromotionLevel: doc.PromotionLevel,
			ChunkIndex:     i,
			HeaderPath:     sec.HeaderPath,
			Content:        sec.Content,
			Embedding:      vec,
		})
	}

	return chunks, nil
}
