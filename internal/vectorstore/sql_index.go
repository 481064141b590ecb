package vectorstore

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"studymate/internal/model"
)

var ErrEmptyFilter = errors.New("search filter requires a chat id")

type chunkLister interface {
	ListByScope(ctx context.Context, chatID string, documentID uint) ([]model.DocumentChunk, error)
}

// SQLIndex searches the embeddings kept on the chunk rows themselves with a
// brute-force cosine scan. It suits the per-chat corpus sizes this service
// handles (at most a handful of PDFs per chat).
type SQLIndex struct {
	chunks chunkLister
	logger *zap.Logger
}

func NewSQLIndex(chunks chunkLister, logger *zap.Logger) *SQLIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLIndex{chunks: chunks, logger: logger}
}

// Save is a no-op: the embeddings are written with the chunk rows.
func (s *SQLIndex) Save(context.Context, *model.Document, []model.DocumentChunk) error {
	return nil
}

// Search returns up to k chunks ordered by descending cosine similarity.
// Equal scores keep insertion order. Chunks whose stored embedding cannot be
// decoded are left out.
func (s *SQLIndex) Search(ctx context.Context, filter Filter, query []float32, k int) ([]Hit, error) {
	if filter.ChatID == "" {
		return nil, ErrEmptyFilter
	}
	if k <= 0 {
		return nil, nil
	}
	chunks, err := s.chunks.ListByScope(ctx, filter.ChatID, filter.DocumentID)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(chunks))
	for i := range chunks {
		vec, err := chunks[i].EmbeddingVector()
		if err != nil {
			s.logger.Warn("skip chunk with corrupt embedding",
				zap.String("chat_id", chunks[i].ChatID),
				zap.Uint("chunk_id", chunks[i].ID),
				zap.Error(err),
			)
			continue
		}
		hits = append(hits, Hit{Chunk: chunks[i], Score: CosineSimilarity(query, vec)})
	}
	rank(hits)
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// CosineSimilarity returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
