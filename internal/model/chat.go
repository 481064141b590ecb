package model

import "time"

const DefaultChatTitle = "New Chat"

// Chat is the root scope for documents, quizzes and the transcript.
type Chat struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:128;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
