package metrics

import (
	"math"
	"sort"

	"voice-rating/internal/models"
)

type MetricResult struct {
	Value      float64 `json:"value"`
	Calculated bool    `json:"calculated"`
	SampleSize int     `json:"sampleSize,omitempty"`
}

// ConditionSummary aggregates the ratings for one gender x pitch cell.
type ConditionSummary struct {
	Gender             models.Gender `gorm:"column:gender" json:"gender"`
	Pitch              models.Pitch  `gorm:"column:pitch" json:"pitch"`
	N                  int           `gorm:"column:n" json:"n"`
	MeanEnthusiasm     float64       `gorm:"column:mean_enthusiasm" json:"meanEnthusiasm"`
	SDEnthusiasm       float64       `gorm:"column:sd_enthusiasm" json:"sdEnthusiasm"`
	MeanDominance      float64       `gorm:"column:mean_dominance" json:"meanDominance"`
	SDDominance        float64       `gorm:"column:sd_dominance" json:"sdDominance"`
	MeanReactionTimeMs float64       `gorm:"column:mean_reaction_time_ms" json:"meanReactionTimeMs"`
}

// Mean returns the arithmetic mean, uncalculated for an empty sample.
func Mean(values []float64) MetricResult {
	if len(values) == 0 {
		return MetricResult{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return MetricResult{Value: sum / float64(len(values)), Calculated: true, SampleSize: len(values)}
}

// StdDev returns the population standard deviation; a single value has SD 0.
func StdDev(values []float64) MetricResult {
	if len(values) == 0 {
		return MetricResult{}
	}
	avg := Mean(values).Value
	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - avg
		sumSquaredDiff += diff * diff
	}
	return MetricResult{
		Value:      math.Sqrt(sumSquaredDiff / float64(len(values))),
		Calculated: true,
		SampleSize: len(values),
	}
}

// Summarize groups responses by gender and pitch. The result is sorted by
// gender, then pitch, matching the SQL aggregate.
func Summarize(responses []models.TrialResponse) []ConditionSummary {
	type key struct {
		gender models.Gender
		pitch  models.Pitch
	}
	type bucket struct {
		enthusiasm, dominance, rt []float64
	}

	buckets := make(map[key]*bucket)
	for _, r := range responses {
		k := key{r.Gender, r.Pitch}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		b.enthusiasm = append(b.enthusiasm, float64(r.Enthusiasm))
		b.dominance = append(b.dominance, float64(r.Dominance))
		if r.ReactionTimeMs != nil {
			b.rt = append(b.rt, float64(*r.ReactionTimeMs))
		}
	}

	summaries := make([]ConditionSummary, 0, len(buckets))
	for k, b := range buckets {
		summaries = append(summaries, ConditionSummary{
			Gender:             k.gender,
			Pitch:              k.pitch,
			N:                  len(b.enthusiasm),
			MeanEnthusiasm:     Mean(b.enthusiasm).Value,
			SDEnthusiasm:       StdDev(b.enthusiasm).Value,
			MeanDominance:      Mean(b.dominance).Value,
			SDDominance:        StdDev(b.dominance).Value,
			MeanReactionTimeMs: Mean(b.rt).Value,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Gender != summaries[j].Gender {
			return summaries[i].Gender < summaries[j].Gender
		}
		return summaries[i].Pitch < summaries[j].Pitch
	})
	return summaries
}
