package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studymate/internal/model"
)

// ErrDocumentLimitReached is returned by CreateWithChunks when the chat
// already holds the maximum number of documents.
var ErrDocumentLimitReached = errors.New("document limit reached")

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) CountByChatID(ctx context.Context, chatID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Where("chat_id = ?", chatID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count documents failed: %w", err)
	}
	return count, nil
}

func (r *DocumentRepository) ListByChatID(ctx context.Context, chatID string) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// CreateWithChunks writes the document and all of its chunks in one
// transaction. When maxDocs is positive the chat row is locked and the chat's
// document count is checked inside the same transaction. afterInsert, when set, runs once row ids are
// known; an error from it rolls everything back.
func (r *DocumentRepository) CreateWithChunks(
	ctx context.Context,
	doc *model.Document,
	chunks []model.DocumentChunk,
	maxDocs int,
	afterInsert func(ctx context.Context, doc *model.Document, chunks []model.DocumentChunk) error,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if maxDocs > 0 {
			if err := lockChat(tx, doc.ChatID).Error; err != nil {
				return fmt.Errorf("lock chat failed: %w", err)
			}
			var count int64
			if err := tx.Model(&model.Document{}).Where("chat_id = ?", doc.ChatID).Count(&count).Error; err != nil {
				return fmt.Errorf("count documents failed: %w", err)
			}
			if count >= int64(maxDocs) {
				return ErrDocumentLimitReached
			}
		}
		doc.ChunkCount = len(chunks)
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("create document failed: %w", err)
		}
		for i := range chunks {
			chunks[i].ChatID = doc.ChatID
			chunks[i].DocumentID = doc.ID
		}
		if len(chunks) > 0 {
			if err := tx.CreateInBatches(&chunks, 100).Error; err != nil {
				return fmt.Errorf("create document chunks failed: %w", err)
			}
		}
		if afterInsert != nil {
			return afterInsert(ctx, doc, chunks)
		}
		return nil
	})
	return err
}

// lockChat holds the chat row until the transaction ends so uploads to the
// same chat count their documents one at a time. SQLite drops the clause.
func lockChat(tx *gorm.DB, chatID string) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Take(&model.Chat{}, "id = ?", chatID)
}
