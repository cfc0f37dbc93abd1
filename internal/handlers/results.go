package handlers

import (
	"encoding/csv"
	"math"
	"net/http"
	"strconv"
	"time"

	"voice-rating/internal/metrics"
	"voice-rating/internal/models"
	"voice-rating/internal/repository"
	"voice-rating/views"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"
)

var (
	chartGenders = []models.Gender{models.GenderFemale, models.GenderMale}
	chartPitches = []models.Pitch{models.PitchLow, models.PitchMid, models.PitchHigh, models.PitchLowUnsped}
)

// ShowResults renders per-condition means with one bar chart per rating scale.
func (h *ResearcherHandler) ShowResults(c *gin.Context) {
	ctx := c.Request.Context()

	summaries, err := h.store.ConditionSummaries(ctx)
	if err != nil {
		h.log.Error("Failed to load condition summaries", zap.Error(err))
		serverError(c, "Failed to load results")
		return
	}
	counts, err := h.store.SessionCounts(ctx)
	if err != nil {
		h.log.Error("Failed to load session counts", zap.Error(err))
		serverError(c, "Failed to load results")
		return
	}

	enthusiasmChart := generateRatingChart("Enthusiasm", summaries, func(s metrics.ConditionSummary) float64 { return s.MeanEnthusiasm })
	dominanceChart := generateRatingChart("Dominance", summaries, func(s metrics.ConditionSummary) float64 { return s.MeanDominance })

	page := views.ResultsPage{
		CSRFToken:         c.GetString(csrfTokenContextKey),
		CSPNonce:          c.GetString(cspNonceContextKey),
		Summaries:         summaries,
		SessionCounts:     counts,
		EnthusiasmOptions: enthusiasmChart.JSON(),
		DominanceOptions:  dominanceChart.JSON(),
	}
	render(c, h.log, http.StatusOK, "Results", views.Results(page))
}

// generateRatingChart plots the mean rating per pitch level, one series per gender.
func generateRatingChart(scale string, summaries []metrics.ConditionSummary, value func(metrics.ConditionSummary) float64) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    scale,
			Subtitle: "Mean rating by pitch and gender",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Min:  1,
			Max:  7,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	cells := make(map[models.Gender]map[models.Pitch]float64)
	present := make(map[models.Pitch]bool)
	for _, s := range summaries {
		if cells[s.Gender] == nil {
			cells[s.Gender] = make(map[models.Pitch]float64)
		}
		cells[s.Gender][s.Pitch] = math.Round(value(s)*100) / 100
		present[s.Pitch] = true
	}

	var pitches []models.Pitch
	labels := make([]string, 0, len(chartPitches))
	for _, p := range chartPitches {
		if present[p] {
			pitches = append(pitches, p)
			labels = append(labels, string(p))
		}
	}
	bar.SetXAxis(labels)

	for _, g := range chartGenders {
		items := make([]opts.BarData, 0, len(pitches))
		for _, p := range pitches {
			v, ok := cells[g][p]
			if !ok {
				items = append(items, opts.BarData{Value: "-"})
				continue
			}
			items = append(items, opts.BarData{Value: v})
		}
		bar.AddSeries(string(g), items)
	}
	return bar
}

var exportHeader = []string{
	"session_id", "participant_id", "voice", "gender", "pitch", "block", "trial_index",
	"enthusiasm", "dominance", "reaction_time_ms", "seek_corrections", "rate_corrections", "completed_at",
}

// ExportCSV streams the filtered trial responses as CSV.
func (h *ResearcherHandler) ExportCSV(c *gin.Context) {
	filter := repository.ResponseFilter{
		ParticipantID: c.Query("participant"),
		SessionID:     c.Query("session"),
		Gender:        models.Gender(c.Query("gender")),
		Pitch:         models.Pitch(c.Query("pitch")),
	}
	responses, err := h.store.ListResponses(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("Failed to list responses for export", zap.Error(err))
		serverError(c, "Failed to export responses")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="responses.csv"`)
	c.Status(http.StatusOK)
	if err := WriteResponsesCSV(csv.NewWriter(c.Writer), responses); err != nil {
		h.log.Error("Failed to write CSV export", zap.Error(err))
	}
}

// WriteResponsesCSV writes a header row and one row per response, then flushes.
func WriteResponsesCSV(w *csv.Writer, responses []models.TrialResponse) error {
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range responses {
		rt := ""
		if r.ReactionTimeMs != nil {
			rt = strconv.FormatInt(*r.ReactionTimeMs, 10)
		}
		row := []string{
			r.SessionID,
			r.ParticipantID,
			r.Voice,
			string(r.Gender),
			string(r.Pitch),
			strconv.Itoa(r.Block),
			strconv.Itoa(r.TrialIndex),
			strconv.Itoa(r.Enthusiasm),
			strconv.Itoa(r.Dominance),
			rt,
			strconv.Itoa(r.SeekCorrections),
			strconv.Itoa(r.RateCorrections),
			r.CompletedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
