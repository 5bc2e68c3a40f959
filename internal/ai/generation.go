package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JanhviHarwani/access-ed-backend/internal/retry"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationConfig holds API settings for chat completion (OpenAI-compatible).
type GenerationConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GenerationClient requests completions from a generative language service,
// whole or streamed. Stateless; safe for concurrent use.
type GenerationClient struct {
	cfg        GenerationConfig
	httpClient *http.Client
	retry      retry.Policy
}

func NewGenerationClient(cfg GenerationConfig, policy retry.Policy) *GenerationClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &GenerationClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      policy,
	}
}

// Complete returns the full completion for the given messages.
func (c *GenerationClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var answer string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var reqErr error
		answer, reqErr = c.requestCompletion(ctx, messages)
		return reqErr
	}, isTransient)
	return answer, err
}

func (c *GenerationClient) requestCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	reqBody := map[string]interface{}{
		"model":    c.cfg.Model,
		"messages": messages,
		"stream":   false,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	req, err := c.newRequest(ctx, bodyBytes)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: llm request failed: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read llm response failed: %v", ErrServiceUnavailable, err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: llm response status %d: %s", ErrServiceUnavailable, resp.StatusCode, string(raw))
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: llm response status %d: %s", ErrInvalidInput, resp.StatusCode, string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamComplete streams the completion, invoking onChunk for each delta,
// and returns the assembled full text. Streamed requests are not retried:
// chunks may already have reached the caller.
func (c *GenerationClient) StreamComplete(
	ctx context.Context,
	messages []ChatMessage,
	onChunk func(chunk string) error,
) (string, error) {
	reqBody := map[string]interface{}{
		"model":    c.cfg.Model,
		"messages": messages,
		"stream":   true,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm stream request failed: %w", err)
	}

	req, err := c.newRequest(ctx, bodyBytes)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: llm stream request failed: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: llm stream status %d: %s", ErrServiceUnavailable, resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var full strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		text := chunk.Choices[0].Delta.Content
		full.WriteString(text)
		if err := onChunk(text); err != nil {
			return "", err
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: scan llm stream failed: %v", ErrServiceUnavailable, err)
	}
	return full.String(), nil
}

func (c *GenerationClient) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return req, nil
}
