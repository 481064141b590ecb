package app

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"studymate/internal/metrics"
	"studymate/internal/model"
	"studymate/internal/repository"
)

type GradeInput struct {
	QuizID  uint
	UserID  string
	Answers map[string]string
}

type QuestionResult struct {
	model.Question
	UserAnswer string `json:"user_answer"`
	IsCorrect  bool   `json:"is_correct"`
}

type GradeResult struct {
	Score       int               `json:"score"`
	Total       int               `json:"total"`
	Results     []QuestionResult  `json:"results"`
	UserAnswers map[string]string `json:"user_answers"`
}

type topicTally struct {
	correct int
	total   int
}

type GradingService struct {
	quizzes    *repository.QuizRepository
	attempts   *repository.AttemptRepository
	progress   *repository.ProgressRepository
	normalizer TopicNormalizer
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewGradingService(
	quizzes *repository.QuizRepository,
	attempts *repository.AttemptRepository,
	progress *repository.ProgressRepository,
	normalizer TopicNormalizer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *GradingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{
		quizzes:    quizzes,
		attempts:   attempts,
		progress:   progress,
		normalizer: normalizer,
		metrics:    m,
		logger:     logger,
	}
}

// Grade scores a submission, folds each question's topic into the topics the
// user already had before this submission and adds the per-topic tallies to their progress. The
// attempt row and the progress increments are written independently; one
// failing does not stop the other.
func (s *GradingService) Grade(ctx context.Context, input GradeInput) (result *GradeResult, err error) {
	defer func() { s.metrics.ObserveGrade(err) }()

	if input.QuizID == 0 {
		return nil, invalid("quiz id is required")
	}
	userID, ok := NormalizeUserID(input.UserID)
	if !ok {
		return nil, invalid("user id is required and must be at most %d characters", maxUserIDLength)
	}
	if input.Answers == nil {
		return nil, invalid("answers are required")
	}
	answers := input.Answers

	vocabulary, err := s.progress.ListTopicsByUser(ctx, userID)
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	questions, err := s.quizzes.ListQuestions(ctx, input.QuizID)
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	if len(questions) == 0 {
		return nil, invalid("quiz %d not found", input.QuizID)
	}

	tallies := make(map[string]*topicTally)
	var order []string
	results := make([]QuestionResult, len(questions))
	score := 0
	for i, q := range questions {
		answer, answered := answers[strconv.FormatUint(uint64(q.ID), 10)]
		correct := answered && strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))
		if correct {
			score++
		}
		results[i] = QuestionResult{Question: q, UserAnswer: answer, IsCorrect: correct}

		topic := s.normalizer.Normalize(q.Topic, vocabulary)
		if topic == "" {
			continue
		}
		tally, seen := tallies[topic]
		if !seen {
			tally = &topicTally{}
			tallies[topic] = tally
			order = append(order, topic)
		}
		tally.total++
		if correct {
			tally.correct++
		}
	}

	var g errgroup.Group
	for _, topic := range order {
		tally := tallies[topic]
		g.Go(func() error {
			return s.progress.Increment(ctx, userID, topic, tally.correct, tally.total)
		})
	}
	g.Go(func() error {
		return s.attempts.Create(ctx, &model.UserAttempt{
			QuizID:      input.QuizID,
			UserID:      userID,
			UserAnswers: datatypes.NewJSONType(answers),
			Score:       score,
			Total:       len(questions),
		})
	})
	if err := g.Wait(); err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}

	s.logger.Info("quiz graded",
		zap.Uint("quiz_id", input.QuizID),
		zap.String("user_id", userID),
		zap.Int("score", score),
		zap.Int("total", len(questions)),
	)
	return &GradeResult{Score: score, Total: len(questions), Results: results, UserAnswers: answers}, nil
}
