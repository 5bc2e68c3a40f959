package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/JanhviHarwani/access-ed-backend/internal/model"
)

// HistoryStore keeps the rolling conversation window for each chat session
// in Redis. The list is trimmed to the configured window on every append
// (oldest turn evicted) and expires with the session TTL, so history never
// outlives the session and prompts cannot grow without bound.
type HistoryStore struct {
	client *redisv9.Client
	window int
	ttl    time.Duration
}

func NewHistoryStore(client *redisv9.Client, window int, ttl time.Duration) *HistoryStore {
	if window <= 0 {
		window = 5
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &HistoryStore{client: client, window: window, ttl: ttl}
}

// Recent returns the retained turns for the session, oldest first.
func (s *HistoryStore) Recent(ctx context.Context, sessionID string) ([]model.ConversationTurn, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read history failed: %w", err)
	}

	turns := make([]model.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var turn model.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal history turn failed: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Append records a completed turn and evicts beyond the window.
func (s *HistoryStore) Append(ctx context.Context, sessionID string, turn model.ConversationTurn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal history turn failed: %w", err)
	}

	key := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.window), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append history failed: %w", err)
	}
	return nil
}

// Clear drops the session's history.
func (s *HistoryStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis clear history failed: %w", err)
	}
	return nil
}

func (s *HistoryStore) key(sessionID string) string {
	return "chat:history:" + sessionID
}
