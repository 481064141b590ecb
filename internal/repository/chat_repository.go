package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studymate/internal/model"
)

var ErrChatNotFound = errors.New("chat not found")

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat) error {
	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return fmt.Errorf("create chat failed: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts chat unless a row with the same id exists.
func (r *ChatRepository) CreateIfAbsent(ctx context.Context, chat *model.Chat) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(chat).Error
	if err != nil {
		return fmt.Errorf("create chat failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat failed: %w", err)
	}
	return &chat, nil
}

func (r *ChatRepository) List(ctx context.Context, limit int) ([]model.Chat, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var chats []model.Chat
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list chats failed: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) UpdateTitle(ctx context.Context, id, title string) error {
	result := r.db.WithContext(ctx).Model(&model.Chat{}).Where("id = ?", id).Update("title", title)
	if result.Error != nil {
		return fmt.Errorf("update chat title failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}
