package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	QuestionTypeMCQ = "MCQ"
	QuestionTypeSAQ = "SAQ"
)

type Quiz struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    string    `gorm:"size:36;not null;index" json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Question is immutable after creation. Options is null for short-answer
// questions.
type Question struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	QuizID        uint                        `gorm:"not null;index" json:"quiz_id"`
	QuestionText  string                      `gorm:"type:text;not null" json:"question_text"`
	QuestionType  string                      `gorm:"size:8;not null" json:"question_type"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer string                      `gorm:"type:text;not null" json:"correct_answer"`
	Explanation   string                      `gorm:"type:text" json:"explanation"`
	Topic         string                      `gorm:"size:191;not null" json:"topic"`
	CreatedAt     time.Time                   `json:"created_at"`
}
