package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"studymate/internal/ai"
	"studymate/internal/metrics"
	"studymate/internal/model"
	"studymate/internal/repository"
)

const (
	quizSampleChunks  = 15
	quizContextLimit  = 15000
	defaultQuizTemp   = 0.5
	quizFormatExample = `{
  "questions": [
    {
      "question_text": "string",
      "topic": "one of the topics from the list",
      "question_type": "MCQ" or "SAQ",
      "options": ["string", "string", "string", "string"] or null for SAQ,
      "correct_answer": "string (for MCQ it must exactly match one of the options)",
      "explanation": "string"
    }
  ]
}`
)

type GeneratedQuiz struct {
	QuizID    uint             `json:"quiz_id"`
	ChatID    string           `json:"chat_id"`
	Questions []model.Question `json:"questions"`
}

type QuizService struct {
	topics      *repository.TopicRepository
	chunks      *repository.ChunkRepository
	quizzes     *repository.QuizRepository
	llm         LLM
	temperature float32
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewQuizService(
	topics *repository.TopicRepository,
	chunks *repository.ChunkRepository,
	quizzes *repository.QuizRepository,
	llm LLM,
	temperature float64,
	m *metrics.Metrics,
	logger *zap.Logger,
) *QuizService {
	if temperature <= 0 {
		temperature = defaultQuizTemp
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{
		topics:      topics,
		chunks:      chunks,
		quizzes:     quizzes,
		llm:         llm,
		temperature: float32(temperature),
		metrics:     m,
		logger:      logger,
	}
}

// Generate asks the model for a quiz over the chat's documents and stores
// it. The quiz row is written before its questions; if the question insert
// fails the empty quiz row stays behind.
func (s *QuizService) Generate(ctx context.Context, chatID string) (quiz *GeneratedQuiz, err error) {
	defer func() { s.metrics.ObserveQuiz(err) }()

	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, invalid("chat id is required")
	}

	topics, err := s.topics.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	if topics == nil || len(topics.Topics) == 0 {
		return nil, ErrTopicsMissing
	}

	sample, err := s.chunks.Sample(ctx, chatID, quizSampleChunks)
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	if len(sample) == 0 {
		return nil, ErrNoDocuments
	}
	parts := make([]string, len(sample))
	for i := range sample {
		parts[i] = sample[i].Content
	}
	contextText := truncateRunes(strings.Join(parts, contextSeparator), quizContextLimit)

	raw, err := s.llm.Complete(ctx, buildQuizPrompt(topics.Topics, contextText), s.temperature)
	if err != nil {
		return nil, wrap(ErrUpstreamUnavailable, err)
	}
	parsed := ParseQuizResponse(raw)
	if err := parsed.Err(); err != nil {
		s.logger.Warn("quiz response rejected", zap.String("chat_id", chatID), zap.String("reason", parsed.Reason))
		return nil, err
	}

	row := &model.Quiz{ChatID: chatID}
	if err := s.quizzes.CreateQuiz(ctx, row); err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	questions := make([]model.Question, len(parsed.Questions))
	for i, d := range parsed.Questions {
		questions[i] = model.Question{
			QuizID:        row.ID,
			QuestionText:  d.QuestionText,
			QuestionType:  d.QuestionType,
			Options:       d.Options,
			CorrectAnswer: d.CorrectAnswer,
			Explanation:   d.Explanation,
			Topic:         d.Topic,
		}
	}
	if err := s.quizzes.CreateQuestions(ctx, questions); err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}

	stored, err := s.quizzes.ListQuestions(ctx, row.ID)
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	return &GeneratedQuiz{QuizID: row.ID, ChatID: chatID, Questions: stored}, nil
}

func buildQuizPrompt(topics []string, contextText string) []ai.ChatMessage {
	var b strings.Builder
	b.WriteString("You are an expert teacher. For each question, you MUST assign a \"topic\" by choosing the most relevant one from the provided list.\n")
	b.WriteString("Topic List: [")
	for i, t := range topics {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"` + t + `"`)
	}
	b.WriteString("]\n\n")
	b.WriteString("Based on the following context, generate a quiz with 2 Multiple Choice Questions and 1 Short Answer Question.\n")
	b.WriteString("Respond with JSON only, in exactly this format:\n")
	b.WriteString(quizFormatExample)
	b.WriteString("\n\nContext:\n")
	b.WriteString(contextText)

	return []ai.ChatMessage{{Role: "user", Content: b.String()}}
}
