package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChatTopics is the topic vocabulary extracted from the first document of a chat.
type ChatTopics struct {
	ChatID    string                      `gorm:"primaryKey;size:36" json:"chat_id"`
	Topics    datatypes.JSONSlice[string] `json:"topics"`
	CreatedAt time.Time                   `json:"created_at"`
}

func (ChatTopics) TableName() string {
	return "chat_topics"
}
