package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatID     string    `gorm:"size:36;not null;index" json:"chat_id"`
	FileName   string    `gorm:"size:255;not null" json:"file_name"`
	ChunkCount int       `gorm:"not null" json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func (d *Document) ScopeKey() string {
	return FormatScopeKey(d.ChatID, d.ID)
}

// FormatScopeKey joins a chat id and a document id into "<chat>/<document>".
func FormatScopeKey(chatID string, documentID uint) string {
	return fmt.Sprintf("%s/%d", chatID, documentID)
}

// ParseScopeKey splits a key produced by FormatScopeKey.
func ParseScopeKey(key string) (chatID string, documentID uint, err error) {
	chatID, rawID, ok := strings.Cut(strings.TrimSpace(key), "/")
	if !ok || chatID == "" {
		return "", 0, fmt.Errorf("malformed scope key %q", key)
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return "", 0, fmt.Errorf("malformed scope key %q", key)
	}
	return chatID, uint(id), nil
}
