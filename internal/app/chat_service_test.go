package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JanhviHarwani/access-ed-backend/internal/model"
	"github.com/JanhviHarwani/access-ed-backend/internal/vectorindex"
)

type stubRetriever struct {
	chunks []RetrievedChunk
	err    error
	calls  int
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string, topK int) ([]RetrievedChunk, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.chunks, nil
}

type stubComposer struct {
	answer *Answer
	err    error
	calls  int
	chunks []RetrievedChunk
}

func (c *stubComposer) Compose(ctx context.Context, question string, chunks []RetrievedChunk, history []model.ConversationTurn) (*Answer, error) {
	c.calls++
	c.chunks = chunks
	if c.err != nil {
		return nil, c.err
	}
	return c.answer, nil
}

func (c *stubComposer) ComposeStream(ctx context.Context, question string, chunks []RetrievedChunk, history []model.ConversationTurn, onChunk func(chunk string) error) (*Answer, error) {
	answer, err := c.Compose(ctx, question, chunks, history)
	if err != nil {
		return nil, err
	}
	if err := onChunk(answer.Text); err != nil {
		return nil, err
	}
	return answer, nil
}

func TestHandleMessageCompletesTurn(t *testing.T) {
	retriever := &stubRetriever{chunks: []RetrievedChunk{{ChunkID: "doc:0", Score: 0.9, Source: "https://example.edu/a"}}}
	composer := &stubComposer{answer: &Answer{
		Text:          "grounded answer",
		CitedChunkIDs: []string{"doc:0"},
		Sources:       []string{"https://example.edu/a"},
	}}
	history := newFakeHistory(5)
	svc := NewChatService(retriever, composer, history, 3, zap.NewNop())

	result, err := svc.HandleMessage(context.Background(), "sess-1", "How does extended time work?")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, "grounded answer", result.Answer)
	assert.Equal(t, []string{"doc:0"}, result.ChunkIDs)
	assert.Equal(t, StateIdle, svc.SessionState("sess-1"))

	turns, err := history.Recent(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "How does extended time work?", turns[0].Question)
	assert.Equal(t, "grounded answer", turns[0].Answer)
}

func TestHandleMessageAssignsSessionID(t *testing.T) {
	retriever := &stubRetriever{chunks: []RetrievedChunk{{ChunkID: "doc:0"}}}
	composer := &stubComposer{answer: &Answer{Text: "answer"}}
	svc := NewChatService(retriever, composer, newFakeHistory(5), 3, zap.NewNop())

	result, err := svc.HandleMessage(context.Background(), "", "question")
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
}

func TestHandleMessageRejectsEmptyMessage(t *testing.T) {
	svc := NewChatService(&stubRetriever{}, &stubComposer{}, newFakeHistory(5), 3, zap.NewNop())

	_, err := svc.HandleMessage(context.Background(), "sess-1", "   ")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestHandleMessageSmallTalkSkipsPipeline(t *testing.T) {
	retriever := &stubRetriever{}
	composer := &stubComposer{}
	history := newFakeHistory(5)
	svc := NewChatService(retriever, composer, history, 3, zap.NewNop())

	result, err := svc.HandleMessage(context.Background(), "sess-1", "Hello there!")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "accessible")
	assert.Zero(t, retriever.calls)
	assert.Zero(t, composer.calls)

	result, err = svc.HandleMessage(context.Background(), "sess-1", "thanks a lot")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "welcome")
}

func TestHandleMessageDegradesWhenIndexUnavailable(t *testing.T) {
	retriever := &stubRetriever{err: fmt.Errorf("%w: connection refused", vectorindex.ErrIndexUnavailable)}
	composer := &stubComposer{answer: &Answer{Text: InsufficientInfoAnswer}}
	svc := NewChatService(retriever, composer, newFakeHistory(5), 3, zap.NewNop())

	result, err := svc.HandleMessage(context.Background(), "sess-1", "question")
	require.NoError(t, err)

	assert.Equal(t, InsufficientInfoAnswer, result.Answer)
	assert.Equal(t, 1, composer.calls)
	assert.Nil(t, composer.chunks)
}

func TestHandleMessageFailedTurnNotRecorded(t *testing.T) {
	retriever := &stubRetriever{chunks: []RetrievedChunk{{ChunkID: "doc:0"}}}
	composer := &stubComposer{err: errors.New("generation backend down")}
	history := newFakeHistory(5)
	svc := NewChatService(retriever, composer, history, 3, zap.NewNop())

	_, err := svc.HandleMessage(context.Background(), "sess-1", "question")
	require.Error(t, err)
	assert.Equal(t, StateFailed, svc.SessionState("sess-1"))

	turns, err := history.Recent(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	// The next turn starts clean.
	composer.err = nil
	composer.answer = &Answer{Text: "recovered"}
	result, err := svc.HandleMessage(context.Background(), "sess-1", "question again")
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Answer)
	assert.Equal(t, StateIdle, svc.SessionState("sess-1"))
}

func TestHandleMessageHistoryReadFailureContinues(t *testing.T) {
	retriever := &stubRetriever{chunks: []RetrievedChunk{{ChunkID: "doc:0"}}}
	composer := &stubComposer{answer: &Answer{Text: "answer"}}
	history := newFakeHistory(5)
	history.recentErr = errors.New("redis down")
	svc := NewChatService(retriever, composer, history, 3, zap.NewNop())

	result, err := svc.HandleMessage(context.Background(), "sess-1", "question")
	require.NoError(t, err)
	assert.Equal(t, "answer", result.Answer)
}

func TestHandleMessageBoundedHistoryWindow(t *testing.T) {
	retriever := &stubRetriever{chunks: []RetrievedChunk{{ChunkID: "doc:0"}}}
	composer := &stubComposer{answer: &Answer{Text: "answer"}}
	history := newFakeHistory(3)
	svc := NewChatService(retriever, composer, history, 3, zap.NewNop())

	for i := 0; i < 6; i++ {
		_, err := svc.HandleMessage(context.Background(), "sess-1", fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	turns, err := history.Recent(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "question 3", turns[0].Question)
	assert.Equal(t, "question 5", turns[2].Question)
}

func TestResetSessionClearsHistory(t *testing.T) {
	retriever := &stubRetriever{chunks: []RetrievedChunk{{ChunkID: "doc:0"}}}
	composer := &stubComposer{answer: &Answer{Text: "answer"}}
	history := newFakeHistory(5)
	svc := NewChatService(retriever, composer, history, 3, zap.NewNop())

	_, err := svc.HandleMessage(context.Background(), "sess-1", "question")
	require.NoError(t, err)
	require.NoError(t, svc.ResetSession(context.Background(), "sess-1"))

	turns, err := history.Recent(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

// End to end over the real retriever and composer with in-memory backends:
// an ingested passage answers a matching question, and an off-corpus question
// gets the fixed insufficient-information reply without a generation call.
func TestChatPipelineEndToEnd(t *testing.T) {
	embedder := newFakeEmbedder(64)
	index := newFakeIndex()
	ledger := newFakeLedger()
	ingest := NewIngestService(lineChunker{}, embedder, index, ledger, 8, zap.NewNop())

	_, err := ingest.IngestDocument(context.Background(), model.SourceDocument{
		ID:      "policies-extended-time",
		Source:  "https://example.edu/policies/extended-time",
		Title:   "Extended Time",
		Content: "Extended time accommodations require instructor approval via the disability office.",
	})
	require.NoError(t, err)

	gen := &fakeGenerator{reply: "Students arrange extended time through the disability office with instructor approval. [Extended Time](https://example.edu/policies/extended-time)"}
	composer := NewComposer(gen, 0.3, 6000)
	retriever := NewRetriever(embedder, index)
	svc := NewChatService(retriever, composer, newFakeHistory(5), 3, zap.NewNop())

	result, err := svc.HandleMessage(context.Background(), "sess-1", "How do students get extended time accommodations?")
	require.NoError(t, err)
	assert.Equal(t, gen.reply, result.Answer)
	assert.Equal(t, []string{"policies-extended-time:0"}, result.ChunkIDs)
	assert.Equal(t, []string{"https://example.edu/policies/extended-time"}, result.Sources)
	assert.Equal(t, 1, gen.calls)

	result, err = svc.HandleMessage(context.Background(), "sess-1", "What is the campus parking policy?")
	require.NoError(t, err)
	assert.Equal(t, InsufficientInfoAnswer, result.Answer)
	assert.Empty(t, result.ChunkIDs)
	assert.Equal(t, 1, gen.calls)
}
