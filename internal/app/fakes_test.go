package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JanhviHarwani/access-ed-backend/internal/ai"
	"github.com/JanhviHarwani/access-ed-backend/internal/model"
	"github.com/JanhviHarwani/access-ed-backend/internal/vectorindex"
)

// fakeEmbedder produces deterministic bag-of-words vectors so similar texts
// score close under cosine similarity. failOnCall fails the Nth EmbedBatch
// call (1-based); 0 never fails.
type fakeEmbedder struct {
	dim        int
	failOnCall int
	calls      int
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim}
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.failOnCall > 0 && e.calls >= e.failOnCall {
		return nil, fmt.Errorf("%w: embedding backend down", ai.ErrServiceUnavailable)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectorize(t)
	}
	return out, nil
}

func (e *fakeEmbedder) vectorize(text string) []float32 {
	v := make([]float32, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		v[int(h.Sum32())%e.dim]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
	}
	return v
}

// fakeIndex is an in-memory cosine-similarity store keyed by chunk id.
type fakeIndex struct {
	mu      sync.Mutex
	entries map[string]vectorindex.Entry

	upsertErr error
	searchErr error
	deleteErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: map[string]vectorindex.Entry{}}
}

func (f *fakeIndex) Upsert(ctx context.Context, entries []vectorindex.Entry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.entries[e.ChunkID] = e
	}
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, topK int) ([]vectorindex.Hit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	hits := make([]vectorindex.Hit, 0, len(f.entries))
	for _, e := range f.entries {
		var dot float64
		for i := range vector {
			if i < len(e.Vector) {
				dot += float64(vector[i]) * float64(e.Vector[i])
			}
		}
		hits = append(hits, vectorindex.Hit{Score: dot, Payload: e.Payload})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (f *fakeIndex) DeleteByDocumentID(ctx context.Context, documentID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, e := range f.entries {
		if e.Payload.DocumentID == documentID {
			delete(f.entries, id)
		}
	}
	return nil
}

func (f *fakeIndex) chunkIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// fakeLedger is an in-memory document ledger.
type fakeLedger struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{docs: map[string]*model.Document{}}
}

func (l *fakeLedger) BeginIngestion(doc *model.Document) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	row := *doc
	row.Status = model.StatusPending
	l.docs[doc.ID] = &row
	return nil
}

func (l *fakeLedger) MarkIngested(id string, chunkCount int, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[id]
	if !ok {
		return errors.New("document missing")
	}
	doc.Status = model.StatusIngested
	doc.ChunkCount = chunkCount
	doc.LastError = ""
	doc.IngestedAt = &at
	return nil
}

func (l *fakeLedger) MarkFailed(id string, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[id]
	if !ok {
		return errors.New("document missing")
	}
	doc.Status = model.StatusFailed
	doc.LastError = reason
	return nil
}

func (l *fakeLedger) GetByID(id string) (*model.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[id]
	if !ok {
		return nil, nil
	}
	row := *doc
	return &row, nil
}

func (l *fakeLedger) List() ([]model.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Document, 0, len(l.docs))
	for _, doc := range l.docs {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *fakeLedger) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.docs, id)
	return nil
}

// fakeGenerator echoes a canned completion and records the prompt it saw.
type fakeGenerator struct {
	reply    string
	err      error
	calls    int
	messages []ai.ChatMessage
}

func (g *fakeGenerator) Complete(ctx context.Context, messages []ai.ChatMessage) (string, error) {
	g.calls++
	g.messages = messages
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(chunk string) error) (string, error) {
	text, err := g.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	if err := onChunk(text); err != nil {
		return "", err
	}
	return text, nil
}

// fakeHistory is an in-memory bounded history store.
type fakeHistory struct {
	mu        sync.Mutex
	window    int
	turns     map[string][]model.ConversationTurn
	recentErr error
	appendErr error
}

func newFakeHistory(window int) *fakeHistory {
	return &fakeHistory{window: window, turns: map[string][]model.ConversationTurn{}}
}

func (h *fakeHistory) Recent(ctx context.Context, sessionID string) ([]model.ConversationTurn, error) {
	if h.recentErr != nil {
		return nil, h.recentErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.ConversationTurn(nil), h.turns[sessionID]...), nil
}

func (h *fakeHistory) Append(ctx context.Context, sessionID string, turn model.ConversationTurn) error {
	if h.appendErr != nil {
		return h.appendErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := append(h.turns[sessionID], turn)
	if len(turns) > h.window {
		turns = turns[len(turns)-h.window:]
	}
	h.turns[sessionID] = turns
	return nil
}

func (h *fakeHistory) Clear(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, sessionID)
	return nil
}
