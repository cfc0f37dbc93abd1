package views

import (
	"fmt"

	"voice-rating/internal/metrics"
	"voice-rating/internal/models"
)

// ResultsPage is the data behind the researcher dashboard. The chart options
// are go-echarts option maps, embedded as JSON for the page script.
type ResultsPage struct {
	CSRFToken         string
	CSPNonce          string
	Summaries         []metrics.ConditionSummary
	SessionCounts     map[models.SessionStatus]int64
	EnthusiasmOptions any
	DominanceOptions  any
}

var statusOrder = []models.SessionStatus{
	models.SessionStatusConsent,
	models.SessionStatusActive,
	models.SessionStatusCompleted,
	models.SessionStatusDeclined,
	models.SessionStatusAbandoned,
}

func meanSD(mean, sd float64) string {
	return fmt.Sprintf("%.2f (%.2f)", mean, sd)
}
