package logger

import (
	"voice-rating/internal/models"

	"go.uber.org/zap"
)

// ResponseFields flattens a trial response into log fields, so a record whose
// save failed can still be recovered from the error log.
func ResponseFields(r *models.TrialResponse) []zap.Field {
	fields := []zap.Field{
		zap.String("session", r.SessionID),
		zap.String("participant", r.ParticipantID),
		zap.String("voice", r.Voice),
		zap.String("gender", string(r.Gender)),
		zap.String("pitch", string(r.Pitch)),
		zap.Int("block", r.Block),
		zap.Int("trial", r.TrialIndex),
		zap.Int("enthusiasm", r.Enthusiasm),
		zap.Int("dominance", r.Dominance),
		zap.Time("completed_at", r.CompletedAt),
	}
	if r.ReactionTimeMs != nil {
		fields = append(fields, zap.Int64("rt_ms", *r.ReactionTimeMs))
	}
	return fields
}
