package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JanhviHarwani/access-ed-backend/internal/vectorindex"
)

func seedIndex(t *testing.T, index *fakeIndex, embedder *fakeEmbedder, texts map[string]string) {
	t.Helper()
	for id, text := range texts {
		vec, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		require.NoError(t, index.Upsert(context.Background(), []vectorindex.Entry{{
			ChunkID: id,
			Vector:  vec,
			Payload: vectorindex.Payload{ChunkID: id, DocumentID: "doc", Text: text},
		}}))
	}
}

func TestRetrieveRanksMostSimilarFirst(t *testing.T) {
	embedder := newFakeEmbedder(64)
	index := newFakeIndex()
	seedIndex(t, index, embedder, map[string]string{
		"doc:0": "extended time accommodations require instructor approval",
		"doc:1": "campus dining halls serve breakfast lunch and dinner",
		"doc:2": "screen readers announce headings landmarks and links",
	})
	r := NewRetriever(embedder, index)

	chunks, err := r.Retrieve(context.Background(), "how do extended time accommodations work", 3)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "doc:0", chunks[0].ChunkID)
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].Score, chunks[i-1].Score)
	}
}

func TestRetrieveRespectsTopK(t *testing.T) {
	embedder := newFakeEmbedder(64)
	index := newFakeIndex()
	texts := map[string]string{}
	for i := 0; i < 10; i++ {
		texts[fmt.Sprintf("doc:%d", i)] = fmt.Sprintf("passage number %d about captions", i)
	}
	seedIndex(t, index, embedder, texts)
	r := NewRetriever(embedder, index)

	chunks, err := r.Retrieve(context.Background(), "captions", 4)
	require.NoError(t, err)
	assert.Len(t, chunks, 4)
}

func TestRetrieveBreaksScoreTiesByIngestionOrder(t *testing.T) {
	embedder := newFakeEmbedder(64)
	index := newFakeIndex()
	// Identical text yields identical vectors, so all scores tie.
	vec, err := embedder.Embed(context.Background(), "identical passage")
	require.NoError(t, err)
	entries := []vectorindex.Entry{
		{ChunkID: "b:1", Vector: vec, Payload: vectorindex.Payload{ChunkID: "b:1", ChunkIndex: 1, IngestedAt: 200}},
		{ChunkID: "a:0", Vector: vec, Payload: vectorindex.Payload{ChunkID: "a:0", ChunkIndex: 0, IngestedAt: 100}},
		{ChunkID: "a:1", Vector: vec, Payload: vectorindex.Payload{ChunkID: "a:1", ChunkIndex: 1, IngestedAt: 100}},
	}
	require.NoError(t, index.Upsert(context.Background(), entries))
	r := NewRetriever(embedder, index)

	chunks, err := r.Retrieve(context.Background(), "identical passage", 3)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "a:0", chunks[0].ChunkID)
	assert.Equal(t, "a:1", chunks[1].ChunkID)
	assert.Equal(t, "b:1", chunks[2].ChunkID)
}

func TestRetrieveRejectsBadInput(t *testing.T) {
	r := NewRetriever(newFakeEmbedder(8), newFakeIndex())

	_, err := r.Retrieve(context.Background(), "   ", 3)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = r.Retrieve(context.Background(), "question", 0)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestRetrieveEmptyIndexIsUnavailable(t *testing.T) {
	r := NewRetriever(newFakeEmbedder(8), newFakeIndex())

	_, err := r.Retrieve(context.Background(), "anything", 3)
	assert.True(t, errors.Is(err, vectorindex.ErrIndexUnavailable))
}

func TestRetrieveSurfacesIndexErrors(t *testing.T) {
	index := newFakeIndex()
	index.searchErr = fmt.Errorf("%w: connection refused", vectorindex.ErrIndexUnavailable)
	r := NewRetriever(newFakeEmbedder(8), index)

	_, err := r.Retrieve(context.Background(), "anything", 3)
	assert.True(t, errors.Is(err, vectorindex.ErrIndexUnavailable))
}
