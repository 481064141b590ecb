package app

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studymate/internal/model"
	"studymate/internal/repository"
)

const maxChatTitleRunes = 128

type ChatService struct {
	chats      *repository.ChatRepository
	messages   *repository.MessageRepository
	transcript TranscriptCache
	maxContext int
	logger     *zap.Logger
}

func NewChatService(
	chats *repository.ChatRepository,
	messages *repository.MessageRepository,
	transcript TranscriptCache,
	maxContext int,
	logger *zap.Logger,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		chats:      chats,
		messages:   messages,
		transcript: transcript,
		maxContext: maxContext,
		logger:     logger,
	}
}

func (s *ChatService) Create(ctx context.Context, title string) (*model.Chat, error) {
	title = truncateRunes(strings.TrimSpace(title), maxChatTitleRunes)
	if title == "" {
		title = model.DefaultChatTitle
	}
	chat := &model.Chat{ID: uuid.NewString(), Title: title}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	return chat, nil
}

func (s *ChatService) List(ctx context.Context, limit int) ([]model.Chat, error) {
	chats, err := s.chats.List(ctx, limit)
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	return chats, nil
}

// Resolve returns the chat to write into. An empty id creates a new chat; a
// well-formed id that is not stored yet is created under that id.
func (s *ChatService) Resolve(ctx context.Context, chatID string) (string, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		chat, err := s.Create(ctx, "")
		if err != nil {
			return "", err
		}
		return chat.ID, nil
	}
	if _, err := uuid.Parse(chatID); err != nil {
		return "", invalid("chat id %q is not a uuid", chatID)
	}
	if err := s.chats.CreateIfAbsent(ctx, &model.Chat{ID: chatID, Title: model.DefaultChatTitle}); err != nil {
		return "", wrap(ErrStorageFailed, err)
	}
	return chatID, nil
}

// Transcript returns the most recent messages of a chat, oldest first.
func (s *ChatService) Transcript(ctx context.Context, chatID string) ([]model.Message, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, invalid("chat id is required")
	}

	if s.transcript != nil {
		cached, ok, err := s.transcript.Get(ctx, chatID)
		if err != nil {
			s.logger.Warn("read transcript cache failed", zap.String("chat_id", chatID), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	messages, err := s.messages.ListRecentByChatID(ctx, chatID, s.maxContext)
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	if s.transcript != nil {
		if err := s.transcript.Set(ctx, chatID, messages); err != nil {
			s.logger.Warn("write transcript cache failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}
	return messages, nil
}

// AppendExchange stores a question and its answer and drops the cached
// transcript of the chat.
func (s *ChatService) AppendExchange(ctx context.Context, job model.TranscriptJob) error {
	if strings.TrimSpace(job.ChatID) == "" || strings.TrimSpace(job.Question) == "" {
		return invalid("transcript job needs a chat id and a question")
	}
	turns := []model.Message{
		{ChatID: job.ChatID, UserID: job.UserID, Role: model.RoleUser, Content: job.Question},
		{ChatID: job.ChatID, UserID: job.UserID, Role: model.RoleAssistant, Content: job.Answer},
	}
	for i := range turns {
		if err := s.messages.Create(ctx, &turns[i]); err != nil {
			return wrap(ErrStorageFailed, err)
		}
	}
	if s.transcript != nil {
		if err := s.transcript.Delete(ctx, job.ChatID); err != nil {
			s.logger.Warn("invalidate transcript cache failed", zap.String("chat_id", job.ChatID), zap.Error(err))
		}
	}
	return nil
}

func (s *ChatService) rename(ctx context.Context, chatID, title string) error {
	err := s.chats.UpdateTitle(ctx, chatID, title)
	if errors.Is(err, repository.ErrChatNotFound) {
		return invalid("chat %q not found", chatID)
	}
	if err != nil {
		return wrap(ErrStorageFailed, err)
	}
	return nil
}
