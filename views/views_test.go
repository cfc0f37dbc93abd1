package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"voice-rating/internal/models"
	"voice-rating/internal/sequence"
	"voice-rating/views/components"

	"github.com/a-h/templ"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func trialPage() UnitPage {
	return UnitPage{
		Unit:      sequence.Unit{Kind: sequence.UnitTrial, Block: 2, TotalBlocks: 3, TrialIndex: 4},
		Position:  9,
		Progress:  0.5,
		CSRFToken: "tok",
	}
}

func TestTrialHidesQuestionsUntilUnlocked(t *testing.T) {
	locked := renderString(t, Trial(trialPage(), "/audio/female_voice1_pitch2.wav", false))
	if !strings.Contains(locked, `<div id="rating-questions" hidden>`) {
		t.Errorf("Expected hidden questions while locked:\n%s", locked)
	}
	for _, want := range []string{`data-position="9"`, `value="9"`, "Block 2 of 3", `src="/audio/female_voice1_pitch2.wav"`, `style="width:50.0%"`} {
		if !strings.Contains(locked, want) {
			t.Errorf("Expected %q in trial markup", want)
		}
	}

	unlocked := renderString(t, Trial(trialPage(), "/audio/female_voice1_pitch2.wav", true))
	if !strings.Contains(unlocked, `<div id="rating-questions">`) {
		t.Errorf("Expected visible questions once unlocked")
	}
	if n := strings.Count(unlocked, `type="radio"`); n != 14 {
		t.Errorf("Expected 14 rating options, got %d", n)
	}
}

func TestDemographicsEscapesText(t *testing.T) {
	minAge := 18
	questions := []models.Question{
		{ID: "age", Title: "Age <years>", Type: "number", Required: true, Min: &minAge},
		{ID: "gender", Title: "Gender", Type: "radio", Options: []models.Option{{Value: "f", Label: "Female & other"}}},
	}
	out := renderString(t, Demographics(trialPage(), questions, `<script>alert(1)</script>`))

	if strings.Contains(out, "<script>") {
		t.Errorf("Message was not escaped:\n%s", out)
	}
	for _, want := range []string{"Age &lt;years&gt;", "Female &amp; other", `name="q_age" min="18" required`, `name="q_gender" value="f">`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in questionnaire markup:\n%s", want, out)
		}
	}
}

func TestLayoutWrapsChildren(t *testing.T) {
	ctx := templ.WithChildren(context.Background(), Declined())
	var buf bytes.Buffer
	if err := Layout("Study", "csrf\"tok", "n1").Render(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `<meta name="csrf-token" content="csrf&#34;tok">`) {
		t.Errorf("Expected escaped CSRF meta tag:\n%s", out)
	}
	if !strings.Contains(out, `<main id="content"><div class="terminal"><h2>Consent Not Given</h2>`) {
		t.Errorf("Expected child inside main:\n%s", out)
	}
}

func TestResultsEmbedsChartOptions(t *testing.T) {
	page := ResultsPage{
		CSPNonce:          "n1",
		SessionCounts:     map[models.SessionStatus]int64{models.SessionStatusCompleted: 2},
		EnthusiasmOptions: map[string]any{"title": "Enthusiasm"},
		DominanceOptions:  map[string]any{"title": "Dominance"},
	}
	out := renderString(t, Results(page))
	for _, want := range []string{`id="enthusiasm-options"`, `"title":"Enthusiasm"`, "<li>completed: 2</li>", `data-chart="dominance-options"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in results markup:\n%s", want, out)
		}
	}
}

func TestAlertClasses(t *testing.T) {
	out := renderString(t, components.Alert("Saved <ok>", "success"))
	if out != `<div class="alert alert-success" role="alert">Saved &lt;ok&gt;</div>` {
		t.Errorf("Unexpected alert markup %q", out)
	}
}
