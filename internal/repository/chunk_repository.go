package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"studymate/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ListByScope returns the chunks of a chat in insertion order, narrowed to
// one document when documentID is non-zero.
func (r *ChunkRepository) ListByScope(ctx context.Context, chatID string, documentID uint) ([]model.DocumentChunk, error) {
	q := r.db.WithContext(ctx).Where("chat_id = ?", chatID)
	if documentID != 0 {
		q = q.Where("document_id = ?", documentID)
	}
	var chunks []model.DocumentChunk
	if err := q.Order("id ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by scope failed: %w", err)
	}
	return chunks, nil
}

// Sample returns up to limit leading chunks of a chat without embeddings.
func (r *ChunkRepository) Sample(ctx context.Context, chatID string, limit int) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	err := r.db.WithContext(ctx).
		Select("id", "chat_id", "document_id", "position", "source", "content", "created_at").
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Limit(limit).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("sample chunks failed: %w", err)
	}
	return chunks, nil
}
