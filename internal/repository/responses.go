package repository

import (
	"context"

	"voice-rating/internal/models"

	"gorm.io/gorm/clause"
)

// SaveTrialResponse stores a response. A second record for the same session
// slot is ignored, so a retried request cannot double-count a trial.
func (r *Repository) SaveTrialResponse(ctx context.Context, response *models.TrialResponse) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "block"}, {Name: "trial_index"}},
		DoNothing: true,
	}).Create(response).Error
}

// ResponseFilter narrows ListResponses; zero values match everything.
type ResponseFilter struct {
	ParticipantID string
	SessionID     string
	Gender        models.Gender
	Pitch         models.Pitch
}

func (r *Repository) ListResponses(ctx context.Context, filter ResponseFilter) ([]models.TrialResponse, error) {
	q := r.db.WithContext(ctx).Model(&models.TrialResponse{})
	if filter.ParticipantID != "" {
		q = q.Where("participant_id = ?", filter.ParticipantID)
	}
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if filter.Gender != "" {
		q = q.Where("gender = ?", filter.Gender)
	}
	if filter.Pitch != "" {
		q = q.Where("pitch = ?", filter.Pitch)
	}

	var responses []models.TrialResponse
	err := q.Order("completed_at, id").Find(&responses).Error
	return responses, err
}
