package repository

import (
	"context"

	"voice-rating/internal/metrics"
)

// ConditionSummaries aggregates ratings per gender x pitch condition.
func (r *Repository) ConditionSummaries(ctx context.Context) ([]metrics.ConditionSummary, error) {
	var rows []metrics.ConditionSummary
	query := `
		SELECT
			gender,
			pitch,
			COUNT(*) AS n,
			AVG(enthusiasm) AS mean_enthusiasm,
			COALESCE(STDDEV_POP(enthusiasm), 0) AS sd_enthusiasm,
			AVG(dominance) AS mean_dominance,
			COALESCE(STDDEV_POP(dominance), 0) AS sd_dominance,
			COALESCE(AVG(reaction_time_ms), 0) AS mean_reaction_time_ms
		FROM trial_responses
		GROUP BY gender, pitch
		ORDER BY gender, pitch;
	`
	err := r.db.WithContext(ctx).Raw(query).Scan(&rows).Error
	return rows, err
}
