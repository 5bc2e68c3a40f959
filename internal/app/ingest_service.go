package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JanhviHarwani/access-ed-backend/internal/model"
	"github.com/JanhviHarwani/access-ed-backend/internal/vectorindex"
)

// TextChunker splits a document into bounded overlapping segments.
type TextChunker interface {
	Chunk(doc model.SourceDocument) []model.Chunk
}

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the external index of (id, vector, metadata) triples.
type VectorStore interface {
	Upsert(ctx context.Context, entries []vectorindex.Entry) error
	Search(ctx context.Context, vector []float32, topK int) ([]vectorindex.Hit, error)
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

// DocumentLedger tracks per-document ingestion state.
type DocumentLedger interface {
	BeginIngestion(doc *model.Document) error
	MarkIngested(id string, chunkCount int, at time.Time) error
	MarkFailed(id string, reason string) error
	GetByID(id string) (*model.Document, error)
	List() ([]model.Document, error)
	Delete(id string) error
}

// IngestService is the ingestion pipeline: it drives the chunker and the
// embedder and replaces the document's entries in the vector index.
type IngestService struct {
	chunker   TextChunker
	embedder  Embedder
	index     VectorStore
	ledger    DocumentLedger
	batchSize int
	log       *zap.Logger
}

func NewIngestService(
	chunker TextChunker,
	embedder Embedder,
	index VectorStore,
	ledger DocumentLedger,
	batchSize int,
	log *zap.Logger,
) *IngestService {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &IngestService{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		ledger:    ledger,
		batchSize: batchSize,
		log:       log,
	}
}

// IngestDocument chunks, embeds and indexes one document and returns the
// number of chunks written. Re-ingesting the same document id fully replaces
// its prior entries: the old points are deleted only after every new
// embedding is computed, then the new set is written, and only then is the
// ledger row marked ingested. Any failure leaves the row non-ingested so the
// document is retried as a whole.
func (s *IngestService) IngestDocument(ctx context.Context, src model.SourceDocument) (int, error) {
	if strings.TrimSpace(src.ID) == "" {
		return 0, fmt.Errorf("%w: document id is empty", ErrInvalidInput)
	}

	row := &model.Document{
		ID:          src.ID,
		Source:      src.Source,
		Title:       src.Title,
		Category:    src.Category,
		ContentHash: contentHash(src.Content),
	}
	if err := s.ledger.BeginIngestion(row); err != nil {
		return 0, err
	}

	chunks := s.chunker.Chunk(src)
	entries, err := s.embedChunks(ctx, src, chunks)
	if err != nil {
		return 0, s.fail(src.ID, err)
	}

	// Replace semantics: drop the old points first so a shrunk chunk count
	// leaves no stale entries, then write the new set. A query racing this
	// window may see a partially updated document; that transient state is
	// accepted eventual consistency.
	if err := s.index.DeleteByDocumentID(ctx, src.ID); err != nil {
		return 0, s.fail(src.ID, err)
	}
	if err := s.index.Upsert(ctx, entries); err != nil {
		return 0, s.fail(src.ID, err)
	}

	if err := s.ledger.MarkIngested(src.ID, len(entries), time.Now()); err != nil {
		return 0, err
	}
	s.log.Info("document ingested",
		zap.String("document_id", src.ID),
		zap.Int("chunks", len(entries)))
	return len(entries), nil
}

// IngestAll runs the pipeline over a document set, continuing past
// per-document failures, and returns the number of documents ingested.
func (s *IngestService) IngestAll(ctx context.Context, docs []model.SourceDocument) int {
	ok := 0
	for _, doc := range docs {
		if _, err := s.IngestDocument(ctx, doc); err != nil {
			s.log.Error("ingestion failed",
				zap.String("document_id", doc.ID),
				zap.Error(err))
			continue
		}
		ok++
	}
	return ok
}

func (s *IngestService) ListDocuments() ([]model.Document, error) {
	return s.ledger.List()
}

// DeleteDocument removes a document's vectors and its ledger row.
func (s *IngestService) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.ledger.GetByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.index.DeleteByDocumentID(ctx, id); err != nil {
		return err
	}
	return s.ledger.Delete(id)
}

func (s *IngestService) embedChunks(ctx context.Context, src model.SourceDocument, chunks []model.Chunk) ([]vectorindex.Entry, error) {
	ingestedAt := time.Now().Unix()
	entries := make([]vectorindex.Entry, 0, len(chunks))

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d failed: %w", start, end-1, err)
		}

		for i, c := range batch {
			entries = append(entries, vectorindex.Entry{
				ChunkID: c.ID,
				Vector:  vectors[i],
				Payload: vectorindex.Payload{
					ChunkID:    c.ID,
					DocumentID: c.DocumentID,
					ChunkIndex: c.Index,
					Text:       c.Text,
					Source:     src.Source,
					Title:      src.Title,
					Category:   src.Category,
					Start:      c.Start,
					End:        c.End,
					IngestedAt: ingestedAt,
				},
			})
		}
	}
	return entries, nil
}

func (s *IngestService) fail(documentID string, cause error) error {
	if err := s.ledger.MarkFailed(documentID, cause.Error()); err != nil {
		s.log.Error("mark document failed errored",
			zap.String("document_id", documentID),
			zap.Error(err))
	}
	return fmt.Errorf("%w: %s: %v", ErrIngestionIncomplete, documentID, cause)
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
