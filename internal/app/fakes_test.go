package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"studymate/internal/ai"
	"studymate/internal/model"
	"studymate/internal/platform/sqlite"
	"studymate/internal/repository"
	"studymate/internal/vectorstore"
)

var errUpstream = errors.New("provider overloaded")

// fakeLLM answers by recognising which prompt it was sent.
type fakeLLM struct {
	mu          sync.Mutex
	topics      string
	quiz        string
	title       string
	tokens      []string
	completeErr error
	prompts     []string
	streamed    [][]ai.ChatMessage
}

func (f *fakeLLM) Complete(_ context.Context, messages []ai.ChatMessage, _ float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prompt := messages[len(messages)-1].Content
	f.prompts = append(f.prompts, prompt)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	switch {
	case strings.Contains(prompt, "main topics"):
		return f.topics, nil
	case strings.Contains(prompt, "expert teacher"):
		return f.quiz, nil
	case strings.Contains(prompt, "descriptive title"):
		return f.title, nil
	}
	return "", errors.New("unexpected prompt")
}

func (f *fakeLLM) StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	f.mu.Lock()
	f.streamed = append(f.streamed, messages)
	tokens := f.tokens
	f.mu.Unlock()

	var b strings.Builder
	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := onChunk(tok); err != nil {
			return "", err
		}
		b.WriteString(tok)
	}
	return b.String(), nil
}

var embeddingVocabulary = []string{"gravity", "mass", "orbit", "ohm", "voltage", "current", "resistance", "weight"}

// fakeEmbedder maps text onto keyword counts, which is enough for cosine
// ranking to behave predictably.
type fakeEmbedder struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *fakeEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(embeddingVocabulary)+1)
	for i, word := range embeddingVocabulary {
		vec[i] = float32(strings.Count(lower, word))
	}
	vec[len(embeddingVocabulary)] = 0.01
	return vec
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errUpstream
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errUpstream
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

type publishedJob struct {
	queue string
	job   any
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []publishedJob
}

func (f *fakePublisher) PublishJSON(_ context.Context, queue string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, publishedJob{queue: queue, job: v})
	return nil
}

func (f *fakePublisher) published() []publishedJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedJob(nil), f.jobs...)
}

type fakeTranscriptCache struct {
	mu      sync.Mutex
	entries map[string][]model.Message
	deletes int
}

func (f *fakeTranscriptCache) Get(_ context.Context, chatID string) ([]model.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.entries[chatID]
	return m, ok, nil
}

func (f *fakeTranscriptCache) Set(_ context.Context, chatID string, messages []model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = map[string][]model.Message{}
	}
	f.entries[chatID] = messages
	return nil
}

func (f *fakeTranscriptCache) Delete(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, chatID)
	f.deletes++
	return nil
}

const (
	titleQueue      = "chat.title"
	transcriptQueue = "chat.message.persist"
)

type testEnv struct {
	db        *gorm.DB
	llm       *fakeLLM
	embedder  *fakeEmbedder
	publisher *fakePublisher
	cache     *fakeTranscriptCache

	docs     *repository.DocumentRepository
	topics   *repository.TopicRepository
	quizzes  *repository.QuizRepository
	progress *repository.ProgressRepository

	chats    *ChatService
	ingest   *IngestService
	answer   *AnswerService
	quiz     *QuizService
	grading  *GradingService
	progSvc  *ProgressService
	titleSvc *TitleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db: db,
		llm: &fakeLLM{
			topics: "```json\n[\"Gravity\", \"Mass\", \"Ohm's Law\"]\n```",
			title:  "\"Gravity Basics\"",
			tokens: []string{"Gravity ", "pulls ", "mass."},
		},
		embedder:  &fakeEmbedder{},
		publisher: &fakePublisher{},
		cache:     &fakeTranscriptCache{},
		docs:      repository.NewDocumentRepository(db),
		topics:    repository.NewTopicRepository(db),
		quizzes:   repository.NewQuizRepository(db),
		progress:  repository.NewProgressRepository(db),
	}
	chunks := repository.NewChunkRepository(db)
	index := vectorstore.NewSQLIndex(chunks, nil)

	env.chats = NewChatService(repository.NewChatRepository(db), repository.NewMessageRepository(db), env.cache, 20, nil)
	env.ingest = NewIngestService(env.chats, env.docs, env.topics, env.llm, env.embedder, index, env.publisher,
		IngestOptions{
			MaxUploadBytes:      3 << 20,
			MaxDocumentsPerChat: 5,
			ChunkSize:           1000,
			ChunkOverlap:        200,
			TitleQueue:          titleQueue,
			Extract:             fakeExtract,
		},
		nil, nil)
	env.answer = NewAnswerService(env.chats, env.embedder, nil, index, env.llm, env.publisher,
		AnswerOptions{MaxContextMessage: 20, TranscriptQueue: transcriptQueue}, nil)
	env.quiz = NewQuizService(env.topics, chunks, env.quizzes, env.llm, 0.5, nil, nil)
	env.grading = NewGradingService(env.quizzes, repository.NewAttemptRepository(db), env.progress,
		NewTopicNormalizer(DefaultTopicMatchThreshold), nil, nil)
	env.progSvc = NewProgressService(env.progress)
	env.titleSvc = NewTitleService(env.chats, chunks, env.llm, nil)
	return env
}

const pdfHeader = "%PDF-1.4\n"

// fakeExtract treats everything after the PDF header as the document text.
func fakeExtract(data []byte) (string, error) {
	body := strings.TrimPrefix(string(data), pdfHeader)
	if strings.HasPrefix(body, "CORRUPT") {
		return "", errors.New("xref table broken")
	}
	return body, nil
}

func pdf(text string) []byte {
	return []byte(pdfHeader + text)
}

const (
	gravityText = "Gravity is the force by which a planet draws objects toward its center. " +
		"The force of gravity keeps the planets in orbit around the sun. Mass is not the same as weight."
	ohmText = "Ohm's law states that the current through a conductor is proportional to the voltage. " +
		"Resistance is the ratio of voltage to current."
)

func (e *testEnv) mustIngest(t *testing.T, chatID, text string) *IngestResult {
	t.Helper()
	res, err := e.ingest.Ingest(context.Background(), IngestInput{
		ChatID:      chatID,
		FileName:    "notes.pdf",
		ContentType: "application/pdf",
		Data:        pdf(text),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	return res
}
