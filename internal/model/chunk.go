package model

import "fmt"

// Chunk is a bounded text segment of a document, the unit of embedding and
// retrieval. Start and End are rune offsets into the original document text.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// ChunkID derives the stable chunk identifier. Re-ingesting a document with
// the same id yields the same chunk ids, which is what makes replacement
// in the vector index idempotent.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%d", documentID, index)
}
