package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"studymate/internal/ai"
	"studymate/internal/model"
	"studymate/internal/vectorstore"
)

const (
	retrievalTopK    = 4
	contextSeparator = "\n---\n"

	answerInstructions = "You are a helpful study assistant. Use the following context from a document to answer " +
		"the user's question. If you don't know the answer from the context, say that you don't know. " +
		"Do not make up an answer."
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AnswerInput struct {
	ChatID   string
	ScopeKey string
	UserID   string
	Question string
	History  []Turn
}

// PreparedAnswer is everything needed to stream an answer. Prepare does all
// the work that can fail with a clean error before any byte is written.
type PreparedAnswer struct {
	ChatID   string
	UserID   string
	Question string
	Sources  []vectorstore.Hit
	Messages []ai.ChatMessage
}

type AnswerOptions struct {
	MaxContextMessage int
	TranscriptQueue   string
}

type AnswerService struct {
	chats     *ChatService
	embedder  Embedder
	cache     EmbeddingCache
	index     vectorstore.Index
	llm       LLM
	publisher JobPublisher
	opts      AnswerOptions
	logger    *zap.Logger
}

func NewAnswerService(
	chats *ChatService,
	embedder Embedder,
	cache EmbeddingCache,
	index vectorstore.Index,
	llm LLM,
	publisher JobPublisher,
	opts AnswerOptions,
	logger *zap.Logger,
) *AnswerService {
	if opts.MaxContextMessage <= 0 {
		opts.MaxContextMessage = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerService{
		chats:     chats,
		embedder:  embedder,
		cache:     cache,
		index:     index,
		llm:       llm,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

func (s *AnswerService) Prepare(ctx context.Context, input AnswerInput) (*PreparedAnswer, error) {
	chatID := strings.TrimSpace(input.ChatID)
	question := strings.TrimSpace(input.Question)
	if chatID == "" {
		return nil, invalid("chat id is required")
	}
	if question == "" {
		return nil, invalid("question is required")
	}

	filter := vectorstore.Filter{ChatID: chatID}
	if key := strings.TrimSpace(input.ScopeKey); key != "" {
		scopeChat, documentID, err := model.ParseScopeKey(key)
		if err != nil {
			return nil, wrap(ErrPayloadInvalid, err)
		}
		if scopeChat != chatID {
			return nil, invalid("scope key %q belongs to another chat", key)
		}
		filter.DocumentID = documentID
	}

	query, err := s.embedQuery(ctx, question)
	if err != nil {
		return nil, wrap(ErrUpstreamUnavailable, err)
	}
	hits, err := s.index.Search(ctx, filter, query, retrievalTopK)
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}

	history := input.History
	if len(history) == 0 {
		messages, err := s.chats.Transcript(ctx, chatID)
		if err != nil {
			s.logger.Warn("load transcript failed", zap.String("chat_id", chatID), zap.Error(err))
		}
		history = turnsFromMessages(messages)
	}
	if len(history) > s.opts.MaxContextMessage {
		history = history[len(history)-s.opts.MaxContextMessage:]
	}

	return &PreparedAnswer{
		ChatID:   chatID,
		UserID:   input.UserID,
		Question: question,
		Sources:  hits,
		Messages: buildAnswerPrompt(joinHits(hits), history, question),
	}, nil
}

// Stream forwards completion tokens to onToken and returns the full answer.
// An error from onToken or a cancelled ctx ends the stream and is returned
// unchanged; the exchange is only recorded when the stream completes.
func (s *AnswerService) Stream(ctx context.Context, p *PreparedAnswer, onToken func(string) error) (string, error) {
	var consumerErr error
	answer, err := s.llm.StreamComplete(ctx, p.Messages, func(token string) error {
		if err := onToken(token); err != nil {
			consumerErr = err
			return err
		}
		return nil
	})
	if consumerErr != nil {
		return "", consumerErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", wrap(ErrUpstreamUnavailable, err)
	}

	if s.publisher != nil {
		job := model.TranscriptJob{ChatID: p.ChatID, UserID: p.UserID, Question: p.Question, Answer: answer}
		if err := s.publisher.PublishJSON(ctx, s.opts.TranscriptQueue, job); err != nil {
			s.logger.Warn("publish transcript job failed", zap.String("chat_id", p.ChatID), zap.Error(err))
		}
	}
	return answer, nil
}

func (s *AnswerService) embedQuery(ctx context.Context, question string) ([]float32, error) {
	if s.cache != nil {
		vec, ok, err := s.cache.Get(ctx, question)
		if err != nil {
			s.logger.Warn("read embedding cache failed", zap.Error(err))
		} else if ok {
			return vec, nil
		}
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, question, vec); err != nil {
			s.logger.Warn("write embedding cache failed", zap.Error(err))
		}
	}
	return vec, nil
}

func joinHits(hits []vectorstore.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Chunk.Content
	}
	return strings.Join(parts, contextSeparator)
}

func turnsFromMessages(messages []model.Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

func buildAnswerPrompt(contextText string, history []Turn, question string) []ai.ChatMessage {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nChat History:\n")
	for _, t := range history {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		if t.Role == model.RoleAssistant {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")

	return []ai.ChatMessage{
		{Role: "system", Content: answerInstructions},
		{Role: "user", Content: b.String()},
	}
}
