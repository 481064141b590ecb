package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studymate/internal/model"
)

var ErrInvalidIncrement = errors.New("invalid progress increment")

type ProgressRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db, now: time.Now}
}

// Increment adds the deltas to the (userID, topic) row, creating it with the
// deltas as initial values. It is a single upsert statement, so concurrent
// increments for the same pair never lose an update. It is the only write
// path for user progress.
func (r *ProgressRepository) Increment(ctx context.Context, userID, topic string, correctDelta, totalDelta int) error {
	if userID == "" || topic == "" {
		return fmt.Errorf("%w: user id and topic are required", ErrInvalidIncrement)
	}
	if correctDelta < 0 || totalDelta < 0 || correctDelta > totalDelta {
		return fmt.Errorf("%w: correct %d, total %d", ErrInvalidIncrement, correctDelta, totalDelta)
	}

	now := r.now()
	row := model.UserProgress{
		UserID:          userID,
		Topic:           topic,
		CorrectAttempts: correctDelta,
		TotalAttempts:   totalDelta,
		LastAttempted:   now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "topic"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"correct_attempts": gorm.Expr("correct_attempts + ?", correctDelta),
			"total_attempts":   gorm.Expr("total_attempts + ?", totalDelta),
			"last_attempted":   now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("increment user progress failed: %w", err)
	}
	return nil
}

// ListTopicsByUser returns the distinct topics the user has progress for,
// oldest first.
func (r *ProgressRepository) ListTopicsByUser(ctx context.Context, userID string) ([]string, error) {
	var topics []string
	err := r.db.WithContext(ctx).
		Model(&model.UserProgress{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Pluck("topic", &topics).Error
	if err != nil {
		return nil, fmt.Errorf("list user topics failed: %w", err)
	}
	return topics, nil
}

// List returns progress rows, most recently attempted first. An empty
// userID lists every user.
func (r *ProgressRepository) List(ctx context.Context, userID string) ([]model.UserProgress, error) {
	q := r.db.WithContext(ctx)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var rows []model.UserProgress
	if err := q.Order("last_attempted DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list user progress failed: %w", err)
	}
	return rows, nil
}
