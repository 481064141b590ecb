package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studymate/internal/model"
)

type TopicRepository struct {
	db *gorm.DB
}

func NewTopicRepository(db *gorm.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// CreateIfAbsent stores the topic list unless the chat already has one.
// Topics are extracted once per chat and never replaced.
func (r *TopicRepository) CreateIfAbsent(ctx context.Context, topics *model.ChatTopics) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "chat_id"}}, DoNothing: true}).
		Create(topics).Error
	if err != nil {
		return fmt.Errorf("create chat topics failed: %w", err)
	}
	return nil
}

func (r *TopicRepository) GetByChatID(ctx context.Context, chatID string) (*model.ChatTopics, error) {
	var topics model.ChatTopics
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&topics).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat topics failed: %w", err)
	}
	return &topics, nil
}
