package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"studymate/internal/ai"
	"studymate/internal/metrics"
	"studymate/internal/model"
	"studymate/internal/pkg/llmjson"
	"studymate/internal/pkg/pdfextract"
	"studymate/internal/pkg/textsplit"
	"studymate/internal/repository"
	"studymate/internal/vectorstore"
)

const (
	topicSampleChunks = 5
	maxTopics         = 10

	topicPrompt = "Based on the following text from a document, extract a list of 5-10 main topics. " +
		"Return the list as a JSON array of strings and nothing else."
)

type IngestOptions struct {
	MaxUploadBytes      int64
	MaxDocumentsPerChat int
	ChunkSize           int
	ChunkOverlap        int
	TitleQueue          string
	// Extract overrides PDF text extraction. Nil uses pdfextract.
	Extract func([]byte) (string, error)
}

type IngestInput struct {
	ChatID      string
	UserID      string
	FileName    string
	ContentType string
	Data        []byte
}

type IngestResult struct {
	ChatID          string `json:"chat_id"`
	DocumentID      uint   `json:"document_id"`
	ScopeKey        string `json:"scope_key"`
	FileName        string `json:"file_name"`
	ChunkCount      int    `json:"chunk_count"`
	TopicsExtracted bool   `json:"topics_extracted"`
}

type IngestService struct {
	chats     *ChatService
	docs      *repository.DocumentRepository
	topics    *repository.TopicRepository
	llm       LLM
	embedder  Embedder
	index     vectorstore.Index
	publisher JobPublisher
	splitter  *textsplit.Splitter
	extract   func([]byte) (string, error)
	opts      IngestOptions
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewIngestService(
	chats *ChatService,
	docs *repository.DocumentRepository,
	topics *repository.TopicRepository,
	llm LLM,
	embedder Embedder,
	index vectorstore.Index,
	publisher JobPublisher,
	opts IngestOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) *IngestService {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 3 << 20
	}
	if opts.MaxDocumentsPerChat <= 0 {
		opts.MaxDocumentsPerChat = 5
	}
	if opts.Extract == nil {
		opts.Extract = pdfextract.ExtractText
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		chats:     chats,
		docs:      docs,
		topics:    topics,
		llm:       llm,
		embedder:  embedder,
		index:     index,
		publisher: publisher,
		splitter:  textsplit.New(opts.ChunkSize, opts.ChunkOverlap),
		extract:   opts.Extract,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// Ingest extracts, chunks, embeds and stores one PDF. Nothing is written
// unless every chunk has an embedding; topics extracted from a chat's first
// document are the one exception and are kept even if a later step fails.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (result *IngestResult, err error) {
	defer func() {
		chunks := 0
		if result != nil {
			chunks = result.ChunkCount
		}
		s.metrics.ObserveIngest(chunks, err)
	}()

	fileName, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	chatID, err := s.chats.Resolve(ctx, input.ChatID)
	if err != nil {
		return nil, err
	}
	existing, err := s.docs.CountByChatID(ctx, chatID)
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	if existing >= int64(s.opts.MaxDocumentsPerChat) {
		return nil, ErrDocumentLimit
	}
	firstDocument := existing == 0

	text, err := s.extract(input.Data)
	if err != nil {
		return nil, wrap(ErrExtractionFailed, err)
	}
	segments := s.splitter.Split(text)
	if len(segments) == 0 {
		return nil, ErrEmptyDocument
	}

	topicsExtracted := false
	if firstDocument {
		topicsExtracted = s.extractTopics(ctx, chatID, segments)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, segments)
	if err != nil {
		return nil, wrap(ErrUpstreamUnavailable, err)
	}
	if len(vectors) != len(segments) {
		return nil, wrap(ErrUpstreamUnavailable, errors.New("embedding count mismatch"))
	}

	chunks := make([]model.DocumentChunk, len(segments))
	for i := range segments {
		chunks[i] = model.DocumentChunk{Position: i, Source: fileName, Content: segments[i]}
		chunks[i].SetEmbedding(vectors[i])
	}
	doc := &model.Document{ChatID: chatID, FileName: fileName}
	err = s.docs.CreateWithChunks(ctx, doc, chunks, s.opts.MaxDocumentsPerChat, s.index.Save)
	if errors.Is(err, repository.ErrDocumentLimitReached) {
		return nil, ErrDocumentLimit
	}
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}

	s.logger.Info("document ingested",
		zap.String("chat_id", chatID),
		zap.Uint("document_id", doc.ID),
		zap.String("file_name", fileName),
		zap.Int("chunks", len(chunks)),
	)

	if firstDocument && s.publisher != nil {
		if err := s.publisher.PublishJSON(ctx, s.opts.TitleQueue, model.TitleJob{ChatID: chatID}); err != nil {
			s.logger.Warn("publish title job failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	return &IngestResult{
		ChatID:          chatID,
		DocumentID:      doc.ID,
		ScopeKey:        doc.ScopeKey(),
		FileName:        fileName,
		ChunkCount:      len(chunks),
		TopicsExtracted: topicsExtracted,
	}, nil
}

func (s *IngestService) validate(input IngestInput) (string, error) {
	if len(input.Data) == 0 {
		return "", invalid("file is empty")
	}
	if int64(len(input.Data)) > s.opts.MaxUploadBytes {
		return "", invalid("file exceeds %d bytes", s.opts.MaxUploadBytes)
	}

	fileName := filepath.Base(strings.TrimSpace(input.FileName))
	if fileName == "." || fileName == "/" || fileName == "" {
		fileName = "document.pdf"
	}

	contentType := strings.ToLower(strings.TrimSpace(input.ContentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	switch contentType {
	case "application/pdf":
	case "", "application/octet-stream":
		if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
			return "", invalid("only pdf files are accepted")
		}
	default:
		return "", invalid("unsupported content type %q", contentType)
	}
	if !pdfextract.IsPDF(input.Data) {
		return "", invalid("file is not a pdf")
	}
	return fileName, nil
}

// extractTopics never fails ingestion; it reports whether topics were stored.
func (s *IngestService) extractTopics(ctx context.Context, chatID string, segments []string) bool {
	n := min(topicSampleChunks, len(segments))
	prompt := topicPrompt + "\n\nText:\n" + strings.Join(segments[:n], "\n\n")

	raw, err := s.llm.Complete(ctx, []ai.ChatMessage{{Role: "user", Content: prompt}}, -1)
	if err != nil {
		s.logger.Warn("topic extraction failed", zap.String("chat_id", chatID), zap.Error(err))
		return false
	}
	topics, err := llmjson.StringList(raw, maxTopics)
	if err != nil {
		s.logger.Warn("topic list unparseable", zap.String("chat_id", chatID), zap.String("raw", raw), zap.Error(err))
		return false
	}
	if err := s.topics.CreateIfAbsent(ctx, &model.ChatTopics{ChatID: chatID, Topics: topics}); err != nil {
		s.logger.Warn("store topics failed", zap.String("chat_id", chatID), zap.Error(err))
		return false
	}
	return true
}
