package repository

import (
	"fmt"

	"gorm.io/gorm"

	"studymate/internal/model"
)

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Chat{},
		&model.Document{},
		&model.DocumentChunk{},
		&model.ChatTopics{},
		&model.Quiz{},
		&model.Question{},
		&model.UserAttempt{},
		&model.UserProgress{},
		&model.Message{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}
