package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"studymate/internal/model"
)

// TranscriptCache keeps the most recent messages of a chat so answers do not
// hit the database for history on every question.
type TranscriptCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewTranscriptCache(client *redisv9.Client, ttl time.Duration) *TranscriptCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &TranscriptCache{client: client, ttl: ttl}
}

func (c *TranscriptCache) Get(ctx context.Context, chatID string) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, transcriptKey(chatID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get transcript failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached transcript failed: %w", err)
	}
	return messages, true, nil
}

func (c *TranscriptCache) Set(ctx context.Context, chatID string, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal transcript cache failed: %w", err)
	}
	if err := c.client.Set(ctx, transcriptKey(chatID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set transcript failed: %w", err)
	}
	return nil
}

func (c *TranscriptCache) Delete(ctx context.Context, chatID string) error {
	if err := c.client.Del(ctx, transcriptKey(chatID)).Err(); err != nil {
		return fmt.Errorf("redis delete transcript failed: %w", err)
	}
	return nil
}

func transcriptKey(chatID string) string {
	return "chat:transcript:" + chatID
}
