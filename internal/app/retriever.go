package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JanhviHarwani/access-ed-backend/internal/vectorindex"
)

// RetrievedChunk is one scored passage surfaced for a query.
type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	IngestedAt int64   `json:"-"`
}

// Retriever embeds a question and queries the vector index for the most
// similar chunks.
type Retriever struct {
	embedder Embedder
	index    VectorStore
}

func NewRetriever(embedder Embedder, index VectorStore) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns at most topK chunks ordered by descending similarity.
// Score ties are broken by ingestion order (earlier-ingested first, then
// lower chunk index) so identical queries against an unchanged index always
// return the same ordering. An empty or unreachable index surfaces as
// vectorindex.ErrIndexUnavailable with an empty result.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive", ErrInvalidInput)
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	hits, err := r.index.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: index returned no entries", vectorindex.ErrIndexUnavailable)
	}

	chunks := make([]RetrievedChunk, len(hits))
	for i, h := range hits {
		chunks[i] = RetrievedChunk{
			ChunkID:    h.Payload.ChunkID,
			DocumentID: h.Payload.DocumentID,
			ChunkIndex: h.Payload.ChunkIndex,
			Text:       h.Payload.Text,
			Source:     h.Payload.Source,
			Title:      h.Payload.Title,
			Score:      h.Score,
			IngestedAt: h.Payload.IngestedAt,
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		if chunks[i].IngestedAt != chunks[j].IngestedAt {
			return chunks[i].IngestedAt < chunks[j].IngestedAt
		}
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})

	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks, nil
}
