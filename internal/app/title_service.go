package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"studymate/internal/ai"
	"studymate/internal/repository"
)

const (
	titleSampleChunks = 3
	titleSampleLimit  = 3000

	titlePrompt = "Based on the following text from a document, create a short, descriptive title of 5 words or less. " +
		"Just return the title and nothing else."
)

type TitleService struct {
	chats  *ChatService
	chunks *repository.ChunkRepository
	llm    LLM
	logger *zap.Logger
}

func NewTitleService(chats *ChatService, chunks *repository.ChunkRepository, llm LLM, logger *zap.Logger) *TitleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TitleService{chats: chats, chunks: chunks, llm: llm, logger: logger}
}

// Generate names the chat after the opening text of its documents and stores
// the title.
func (s *TitleService) Generate(ctx context.Context, chatID string) (string, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return "", invalid("chat id is required")
	}

	sample, err := s.chunks.Sample(ctx, chatID, titleSampleChunks)
	if err != nil {
		return "", wrap(ErrStorageFailed, err)
	}
	if len(sample) == 0 {
		return "", ErrNoDocuments
	}
	parts := make([]string, len(sample))
	for i := range sample {
		parts[i] = sample[i].Content
	}
	text := truncateRunes(strings.Join(parts, "\n\n"), titleSampleLimit)

	raw, err := s.llm.Complete(ctx, []ai.ChatMessage{{Role: "user", Content: titlePrompt + "\n\nText:\n" + text}}, -1)
	if err != nil {
		return "", wrap(ErrUpstreamUnavailable, err)
	}
	title := cleanTitle(raw)
	if title == "" {
		return "", &MalformedResponseError{Raw: raw, Reason: "empty title"}
	}

	if err := s.chats.rename(ctx, chatID, title); err != nil {
		return "", err
	}
	s.logger.Info("chat titled", zap.String("chat_id", chatID), zap.String("title", title))
	return title, nil
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	title = strings.Trim(title, "\"'`*# ")
	title = strings.TrimPrefix(title, "Title:")
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), "\"'"))
	return truncateRunes(title, maxChatTitleRunes)
}
