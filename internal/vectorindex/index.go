// Package vectorindex is a thin client for the external vector store that
// holds (id, vector, metadata) triples and answers nearest-neighbour queries.
package vectorindex

import "errors"

// ErrIndexUnavailable marks the vector store as unreachable. Callers degrade
// to an explicit "no grounded information" answer instead of failing a turn.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Payload is the chunk metadata stored alongside each vector. It carries
// enough provenance to compose citations and to re-sort equal-score hits
// deterministically (earlier-ingested chunk wins).
type Payload struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	IngestedAt int64  `json:"ingested_at"`
}

// Entry is one chunk ready for upsert.
type Entry struct {
	ChunkID string
	Vector  []float32
	Payload Payload
}

// Hit is one ranked query result.
type Hit struct {
	Score   float64
	Payload Payload
}
