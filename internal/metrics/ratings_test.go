package metrics

import (
	"math"
	"testing"

	"voice-rating/internal/models"
)

func TestMeanAndStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	mean := Mean(values)
	if !mean.Calculated || mean.Value != 5 || mean.SampleSize != 8 {
		t.Errorf("Unexpected mean %+v", mean)
	}

	sd := StdDev(values)
	if !sd.Calculated || sd.Value != 2 {
		t.Errorf("Expected SD 2, got %+v", sd)
	}
}

func TestEmptySample(t *testing.T) {
	if Mean(nil).Calculated {
		t.Error("Mean of empty sample should not be calculated")
	}
	if StdDev(nil).Calculated {
		t.Error("SD of empty sample should not be calculated")
	}
	if got := StdDev([]float64{3}).Value; got != 0 {
		t.Errorf("SD of single value should be 0, got %f", got)
	}
}

func TestSummarize(t *testing.T) {
	rt := int64(800)
	responses := []models.TrialResponse{
		{Gender: models.GenderMale, Pitch: models.PitchLow, Enthusiasm: 2, Dominance: 6, ReactionTimeMs: &rt},
		{Gender: models.GenderMale, Pitch: models.PitchLow, Enthusiasm: 4, Dominance: 6},
		{Gender: models.GenderFemale, Pitch: models.PitchHigh, Enthusiasm: 7, Dominance: 1},
	}

	summaries := Summarize(responses)
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 conditions, got %d", len(summaries))
	}

	female, male := summaries[0], summaries[1]
	if female.Gender != models.GenderFemale || female.N != 1 || female.MeanEnthusiasm != 7 {
		t.Errorf("Unexpected female summary %+v", female)
	}
	if male.N != 2 || male.MeanEnthusiasm != 3 || male.SDEnthusiasm != 1 {
		t.Errorf("Unexpected male summary %+v", male)
	}
	if male.MeanDominance != 6 || male.SDDominance != 0 {
		t.Errorf("Unexpected male dominance %+v", male)
	}
	if math.Abs(male.MeanReactionTimeMs-800) > 1e-9 {
		t.Errorf("Expected mean RT 800 from the one measured trial, got %f", male.MeanReactionTimeMs)
	}
}
