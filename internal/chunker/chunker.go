// Package chunker splits documents into bounded, overlapping text segments
// sized for the embedding service.
package chunker

import (
	"strings"
	"unicode"

	"github.com/JanhviHarwani/access-ed-backend/internal/model"
)

const (
	defaultChunkSize = 500
	defaultOverlap   = 50
)

// Chunker produces deterministic chunk boundaries: identical input and
// configuration always yield identical chunks, so re-ingestion rewrites the
// same chunk ids. Sizes are rune counts; slicing is rune-indexed and can
// never split a multi-byte character.
type Chunker struct {
	chunkSize int
	overlap   int
}

func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk splits the document into segments of at most chunkSize runes, with
// consecutive segments overlapping by the configured stride so a fact that
// spans a boundary stays retrievable from at least one chunk. Boundaries
// prefer sentence ends, then whitespace, then a hard cut. A blank document
// yields nil, not an error.
//
// Every rune offset of the document is covered by at least one chunk:
// segments run [start, end) and the next start is end-overlap.
func (c *Chunker) Chunk(doc model.SourceDocument) []model.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}

	runes := []rune(doc.Content)
	var chunks []model.Chunk
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.cutPoint(runes, start, end)
		}

		idx := len(chunks)
		chunks = append(chunks, model.Chunk{
			ID:         model.ChunkID(doc.ID, idx),
			DocumentID: doc.ID,
			Index:      idx,
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
		})

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// cutPoint picks the boundary for a chunk starting at start whose hard limit
// is limit. It takes the last sentence end inside the window, else the last
// whitespace, else the hard limit. Boundaries at or before start+overlap are
// rejected so the window always advances.
func (c *Chunker) cutPoint(runes []rune, start, limit int) int {
	minEnd := start + c.overlap + 1

	if p := lastSentenceEnd(runes, start, limit); p >= minEnd {
		return p
	}
	if p := lastWhitespace(runes, start, limit); p >= minEnd {
		return p
	}
	return limit
}

// lastSentenceEnd returns the position just past the last '.', '!' or '?'
// in [start, limit) that is followed by whitespace or the window edge;
// -1 if there is none.
func lastSentenceEnd(runes []rune, start, limit int) int {
	for i := limit - 1; i > start; i-- {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	return -1
}

// lastWhitespace returns the position just past the last whitespace rune in
// [start, limit), or -1.
func lastWhitespace(runes []rune, start, limit int) int {
	for i := limit - 1; i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return -1
}
