package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocumentChunk is one overlapping text segment of an ingested document with
// its embedding. Rows are written once and never updated.
type DocumentChunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatID     string    `gorm:"size:36;not null;index:idx_chunk_scope,priority:1" json:"chat_id"`
	DocumentID uint      `gorm:"not null;index:idx_chunk_scope,priority:2" json:"document_id"`
	Position   int       `gorm:"not null" json:"position"`
	Source     string    `gorm:"size:255" json:"source"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Embedding  string    `gorm:"type:text" json:"-"` // JSON array of float32
	CreatedAt  time.Time `json:"created_at"`
}

// ScopeKey returns the composite key of the document the chunk belongs to.
func (c *DocumentChunk) ScopeKey() string {
	return FormatScopeKey(c.ChatID, c.DocumentID)
}

// EmbeddingVector parses the stored embedding. A chunk without one yields a
// nil slice and no error.
func (c *DocumentChunk) EmbeddingVector() ([]float32, error) {
	if c.Embedding == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(c.Embedding), &v); err != nil {
		return nil, fmt.Errorf("decode embedding of chunk %d: %w", c.ID, err)
	}
	return v, nil
}

// SetEmbedding stores the embedding as JSON.
func (c *DocumentChunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
