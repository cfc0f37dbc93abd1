package simulate

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"voice-rating/internal/models"
	"voice-rating/internal/sequence"
	"voice-rating/internal/stimulus"
	"voice-rating/internal/trial"

	"go.uber.org/zap"
)

func buildTimeline(t *testing.T, rng *rand.Rand) (*stimulus.Plan, sequence.Timeline) {
	t.Helper()
	opts := stimulus.Options{UnspedLow: true, AudioPrefix: "/audio"}
	plan, err := stimulus.NewPlan(models.DefaultRoster(), opts, 3, rng)
	if err != nil {
		t.Fatalf("NewPlan failed: %v", err)
	}
	return plan, sequence.Build(plan, sequence.Options{})
}

func TestSimulatedSessionCoversPlan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	plan, timeline := buildTimeline(t, rng)

	behavior := DefaultBehavior()
	behavior.SeekAhead = 1
	behavior.RateChange = 1
	p := NewParticipant("s1", "P1", behavior, trial.DefaultSeekTolerance, rng, zap.NewNop())
	sink := &MemorySink{}

	result, err := sequence.NewRunner(p, sink, zap.NewNop()).Run(context.Background(), timeline)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != models.SessionStatusCompleted {
		t.Errorf("Expected completed, got %s", result.Status)
	}

	responses := sink.Responses()
	if len(responses) != 42 {
		t.Fatalf("Expected 42 responses, got %d", len(responses))
	}

	want := plan.Assignments()
	got := stimulus.AssignmentsFromResponses(responses)
	for k, n := range want {
		if got[k] != n {
			t.Errorf("Assignment %+v: expected %d, got %d", k, n, got[k])
		}
	}

	seeks, rates := p.Attempts()
	if seeks == 0 || rates == 0 {
		t.Fatalf("Expected seek and rate attempts, got %d and %d", seeks, rates)
	}
	corrections := 0
	for _, r := range responses {
		corrections += r.SeekCorrections
	}
	// Timeupdates that trail a rejected seek are not counted again.
	if corrections != seeks {
		t.Errorf("Expected %d seek corrections, got %d", seeks, corrections)
	}
	for _, r := range responses {
		if r.Enthusiasm < trial.MinRating || r.Enthusiasm > trial.MaxRating || r.Dominance < trial.MinRating || r.Dominance > trial.MaxRating {
			t.Errorf("Rating out of range: %+v", r)
		}
		if r.RateCorrections == 0 {
			t.Errorf("Expected rate corrections on %s/%s", r.Voice, r.Pitch)
		}
		if r.ReactionTimeMs == nil {
			t.Errorf("Expected reaction time on %s/%s", r.Voice, r.Pitch)
		}
	}
}

func TestSimulatedDecline(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, timeline := buildTimeline(t, rng)

	behavior := DefaultBehavior()
	behavior.DeclineConsent = true
	sink := &MemorySink{}
	result, err := sequence.NewRunner(NewParticipant("s1", "P1", behavior, trial.DefaultSeekTolerance, rng, zap.NewNop()), sink, zap.NewNop()).
		Run(context.Background(), timeline)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.SessionStatusDeclined || result.Presented != 1 {
		t.Errorf("Expected declined after one unit, got %+v", result)
	}
	if len(sink.Responses()) != 0 {
		t.Errorf("Expected no responses after decline")
	}
}

func TestCancelledRunEmitsNothing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	_, timeline := buildTimeline(t, rng)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &MemorySink{}
	result, err := sequence.NewRunner(NewParticipant("s1", "P1", DefaultBehavior(), trial.DefaultSeekTolerance, rng, zap.NewNop()), sink, zap.NewNop()).
		Run(ctx, timeline)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if result.Status != models.SessionStatusAbandoned || len(sink.Responses()) != 0 {
		t.Errorf("Expected abandoned with no responses, got %+v", result)
	}
}
