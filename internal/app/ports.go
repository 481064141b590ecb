package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"studymate/internal/ai"
	"studymate/internal/model"
)

// LLM is the completion side of the model provider.
type LLM interface {
	Complete(ctx context.Context, messages []ai.ChatMessage, temperature float32) (string, error)
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type EmbeddingCache interface {
	Get(ctx context.Context, text string) ([]float32, bool, error)
	Set(ctx context.Context, text string, vec []float32) error
}

type TranscriptCache interface {
	Get(ctx context.Context, chatID string) ([]model.Message, bool, error)
	Set(ctx context.Context, chatID string, messages []model.Message) error
	Delete(ctx context.Context, chatID string) error
}

// JobPublisher hands background work to a queue consumer.
type JobPublisher interface {
	PublishJSON(ctx context.Context, queue string, v any) error
}

const maxUserIDLength = 64

// NormalizeUserID trims id and reports whether it is usable as an anonymous
// user id.
func NormalizeUserID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || utf8.RuneCountInString(id) > maxUserIDLength {
		return "", false
	}
	return id, true
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
