package repository

import (
	"context"
	"time"

	"voice-rating/internal/models"
)

func (r *Repository) CreateSession(ctx context.Context, session *models.ExperimentSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *Repository) GetSession(ctx context.Context, id string) (*models.ExperimentSession, error) {
	var session models.ExperimentSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *Repository) UpdateSessionPosition(ctx context.Context, id string, position int) error {
	return r.db.WithContext(ctx).Model(&models.ExperimentSession{}).
		Where("id = ?", id).
		Update("position", position).Error
}

// UpdateSessionStatus moves a session to status, stamping consent and
// completion times on the way.
func (r *Repository) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	updates := map[string]interface{}{"status": status}
	now := time.Now().UTC()
	switch status {
	case models.SessionStatusActive:
		updates["consented_at"] = now
	case models.SessionStatusCompleted:
		updates["completed_at"] = now
	}
	return r.db.WithContext(ctx).Model(&models.ExperimentSession{}).Where("id = ?", id).Updates(updates).Error
}

// AbandonStaleSessions marks sessions that have not moved since cutoff as
// abandoned and returns how many were affected.
func (r *Repository) AbandonStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.ExperimentSession{}).
		Where("status IN ? AND updated_at < ?", []models.SessionStatus{models.SessionStatusConsent, models.SessionStatusActive}, cutoff).
		Update("status", models.SessionStatusAbandoned)
	return result.RowsAffected, result.Error
}

// SessionCounts returns the number of sessions per status.
func (r *Repository) SessionCounts(ctx context.Context) (map[models.SessionStatus]int64, error) {
	var rows []struct {
		Status models.SessionStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.ExperimentSession{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.SessionStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
