package repository

import (
	"context"

	"voice-rating/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveDemographics upserts all answers for a session in one transaction.
func (r *Repository) SaveDemographics(ctx context.Context, sessionID string, answers map[string]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for questionID, value := range answers {
			answer := models.DemographicAnswer{SessionID: sessionID, QuestionID: questionID, Value: value}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"value"}),
			}).Create(&answer).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetDemographics(ctx context.Context, sessionID string) (map[string]string, error) {
	var rows []models.DemographicAnswer
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Find(&rows).Error; err != nil {
		return nil, err
	}
	answers := make(map[string]string, len(rows))
	for _, row := range rows {
		answers[row.QuestionID] = row.Value
	}
	return answers, nil
}
