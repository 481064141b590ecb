package model

import "time"

// UserProgress holds cumulative per-topic counters. Rows are only ever
// changed through an atomic increment; CorrectAttempts <= TotalAttempts.
type UserProgress struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"size:64;not null;uniqueIndex:idx_progress_user_topic,priority:1" json:"user_id"`
	Topic           string    `gorm:"size:191;not null;uniqueIndex:idx_progress_user_topic,priority:2" json:"topic"`
	CorrectAttempts int       `gorm:"not null;default:0" json:"correct_attempts"`
	TotalAttempts   int       `gorm:"not null;default:0" json:"total_attempts"`
	LastAttempted   time.Time `gorm:"index" json:"last_attempted"`
	CreatedAt       time.Time `json:"created_at"`
}

func (UserProgress) TableName() string {
	return "user_progress"
}

// Mastery is the ratio of correct to total attempts, 0 when untouched.
func (p *UserProgress) Mastery() float64 {
	if p.TotalAttempts <= 0 {
		return 0
	}
	return float64(p.CorrectAttempts) / float64(p.TotalAttempts)
}
