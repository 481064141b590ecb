package app

import (
	"context"
	"strings"

	"studymate/internal/model"
	"studymate/internal/repository"
)

type ProgressView struct {
	model.UserProgress
	Mastery float64 `json:"mastery"`
}

type ProgressService struct {
	progress *repository.ProgressRepository
}

func NewProgressService(progress *repository.ProgressRepository) *ProgressService {
	return &ProgressService{progress: progress}
}

// List returns progress rows most recently attempted first. An empty userID
// lists every user.
func (s *ProgressService) List(ctx context.Context, userID string) ([]ProgressView, error) {
	rows, err := s.progress.List(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, wrap(ErrStorageFailed, err)
	}
	views := make([]ProgressView, len(rows))
	for i := range rows {
		views[i] = ProgressView{UserProgress: rows[i], Mastery: rows[i].Mastery()}
	}
	return views, nil
}
