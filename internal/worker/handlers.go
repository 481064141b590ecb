package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"studymate/internal/model"
)

type TranscriptStore interface {
	AppendExchange(ctx context.Context, job model.TranscriptJob) error
}

type TitleGenerator interface {
	Generate(ctx context.Context, chatID string) (string, error)
}

// TranscriptHandler persists completed question/answer exchanges.
func TranscriptHandler(store TranscriptStore) Handler {
	return func(ctx context.Context, body []byte) error {
		var job model.TranscriptJob
		if err := json.Unmarshal(body, &job); err != nil {
			return fmt.Errorf("decode transcript job failed: %w", err)
		}
		return store.AppendExchange(ctx, job)
	}
}

// TitleHandler names a chat after its first document.
func TitleHandler(titles TitleGenerator, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, body []byte) error {
		var job model.TitleJob
		if err := json.Unmarshal(body, &job); err != nil {
			return fmt.Errorf("decode title job failed: %w", err)
		}
		title, err := titles.Generate(ctx, job.ChatID)
		if err != nil {
			return fmt.Errorf("generate title for chat %s failed: %w", job.ChatID, err)
		}
		logger.Debug("title job done", zap.String("chat_id", job.ChatID), zap.String("title", title))
		return nil
	}
}
