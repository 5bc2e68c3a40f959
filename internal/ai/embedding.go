package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JanhviHarwani/access-ed-backend/internal/retry"
)

// EmbeddingConfig holds API settings for text embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Dimension     int
	MaxInputChars int
	Timeout       time.Duration
}

// EmbeddingClient turns text into fixed-dimension vectors via a remote
// embedding service. Stateless; safe for concurrent use.
type EmbeddingClient struct {
	cfg        EmbeddingConfig
	httpClient *http.Client
	retry      retry.Policy
}

func NewEmbeddingClient(cfg EmbeddingConfig, policy retry.Policy) *EmbeddingClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmbeddingClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      policy,
	}
}

// Embed returns the embedding vector for a single text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order. Oversize or
// blank inputs are rejected with ErrInvalidInput rather than truncated:
// silently cutting text could drop the exact fact being indexed, and chunk
// sizing upstream is what keeps inputs within the service limit.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: text %d is empty", ErrInvalidInput, i)
		}
		if c.cfg.MaxInputChars > 0 && utf8.RuneCountInString(t) > c.cfg.MaxInputChars {
			return nil, fmt.Errorf("%w: text %d exceeds %d chars", ErrInvalidInput, i, c.cfg.MaxInputChars)
		}
	}

	var vectors [][]float32
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var reqErr error
		vectors, reqErr = c.requestEmbeddings(ctx, texts)
		return reqErr
	}, isTransient)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *EmbeddingClient) requestEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model": c.cfg.Model,
		"input": texts,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build embedding request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request failed: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read embedding response failed: %v", ErrServiceUnavailable, err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: embedding response status %d: %s", ErrServiceUnavailable, resp.StatusCode, string(raw))
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: embedding response status %d: %s", ErrInvalidInput, resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(parsed.Data))
	}

	// The API reports the input position of each vector; order by it so the
	// result always lines up with the input slice.
	sort.Slice(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})
	vectors := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		if c.cfg.Dimension > 0 && len(parsed.Data[i].Embedding) != c.cfg.Dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: want %d, got %d", c.cfg.Dimension, len(parsed.Data[i].Embedding))
		}
		vectors[i] = parsed.Data[i].Embedding
	}
	return vectors, nil
}
