package model

import (
	"time"

	"gorm.io/datatypes"
)

// UserAttempt records one quiz submission. Append-only.
type UserAttempt struct {
	ID          uint                                  `gorm:"primaryKey" json:"id"`
	QuizID      uint                                  `gorm:"not null;index" json:"quiz_id"`
	UserID      string                                `gorm:"size:64;not null;index" json:"user_id"`
	UserAnswers datatypes.JSONType[map[string]string] `json:"user_answers"`
	Score       int                                   `gorm:"not null" json:"score"`
	Total       int                                   `gorm:"not null" json:"total"`
	CreatedAt   time.Time                             `json:"created_at"`
}
