package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"studymate/internal/model"
)

type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *model.UserAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("create user attempt failed: %w", err)
	}
	return nil
}

func (r *AttemptRepository) ListByQuizID(ctx context.Context, quizID uint) ([]model.UserAttempt, error) {
	var attempts []model.UserAttempt
	if err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Order("id ASC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("list user attempts failed: %w", err)
	}
	return attempts, nil
}
