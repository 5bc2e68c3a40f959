package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Store is a minimal REST client to Qdrant. Cosine distance; the collection
// is created on startup if missing.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID derives the Qdrant point id for a chunk. Qdrant only accepts UUID
// or integer ids, so the chunk id is mapped through UUIDv5: deterministic,
// which is what makes re-ingestion overwrite instead of duplicate.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// EnsureCollection creates the collection if it does not exist yet.
// Qdrant answers 200 for an existing collection with the same schema.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.doJSON(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

func (s *Store) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		points[i] = map[string]any{
			"id":      PointID(e.ChunkID),
			"vector":  e.Vector,
			"payload": e.Payload,
		}
	}
	body := map[string]any{"points": points}
	return s.doJSON(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	err := s.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), body, &resp)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		var payload Payload
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode qdrant payload failed: %w", err)
		}
		hits = append(hits, Hit{Score: r.Score, Payload: payload})
	}
	return hits, nil
}

// DeleteByDocumentID removes every point of the given document. Run before
// upserting a re-ingested document so a shrunk chunk count leaves no stale
// points behind.
func (s *Store) DeleteByDocumentID(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	return s.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil)
}

// Ping checks that the collection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil, nil)
}

func (s *Store) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal qdrant request failed: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build qdrant request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrIndexUnavailable, method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: qdrant %s %s: %s", ErrIndexUnavailable, method, url, resp.Status)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response failed: %w", err)
		}
	}
	return nil
}
