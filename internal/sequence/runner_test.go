package sequence

import (
	"context"
	"errors"
	"testing"

	"voice-rating/internal/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// scriptedPresenter answers every unit immediately.
type scriptedPresenter struct {
	decline   bool
	noReply   bool
	cancelAt  int
	cancel    context.CancelFunc
	presented []UnitKind
}

func (p *scriptedPresenter) Present(ctx context.Context, unit Unit) (Outcome, error) {
	p.presented = append(p.presented, unit.Kind)
	if p.cancel != nil && len(p.presented) == p.cancelAt {
		p.cancel()
	}
	switch unit.Kind {
	case UnitConsent:
		return Outcome{Consented: !p.decline}, nil
	case UnitTrial:
		if p.noReply {
			return Outcome{}, nil
		}
		return Outcome{Response: &models.TrialResponse{
			Voice:      unit.Stimulus.VoiceID,
			Gender:     unit.Stimulus.Gender,
			Pitch:      unit.Stimulus.Pitch,
			Block:      unit.Block,
			TrialIndex: unit.TrialIndex,
			Enthusiasm: 4,
			Dominance:  4,
		}}, nil
	}
	return Outcome{}, nil
}

type recordingSink struct {
	saved []*models.TrialResponse
	err   error
}

func (s *recordingSink) SaveTrialResponse(ctx context.Context, r *models.TrialResponse) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, r)
	return nil
}

func TestRunCompletes(t *testing.T) {
	tl := Build(testPlan(t, 3), Options{})
	sink := &recordingSink{}
	result, err := NewRunner(&scriptedPresenter{}, sink, zap.NewNop()).Run(context.Background(), tl)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.SessionStatusCompleted || result.Presented != len(tl) || result.Responses != 36 {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(sink.saved) != 36 {
		t.Errorf("Expected 36 saved responses, got %d", len(sink.saved))
	}
}

func TestRunStopsAfterDecline(t *testing.T) {
	p := &scriptedPresenter{decline: true}
	sink := &recordingSink{}
	result, err := NewRunner(p, sink, zap.NewNop()).Run(context.Background(), Build(testPlan(t, 3), Options{}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.SessionStatusDeclined || len(p.presented) != 1 || len(sink.saved) != 0 {
		t.Errorf("Expected decline to stop the run, got %+v after %v", result, p.presented)
	}
}

func TestRunRequiresResponsePerTrial(t *testing.T) {
	_, err := NewRunner(&scriptedPresenter{noReply: true}, &recordingSink{}, zap.NewNop()).
		Run(context.Background(), Build(testPlan(t, 3), Options{}))
	if err == nil {
		t.Error("Expected an error for a trial without a response")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Cancel while the first trial (after consent, instructions, block start) is shown.
	p := &scriptedPresenter{cancel: cancel, cancelAt: 4}
	sink := &recordingSink{}

	result, err := NewRunner(p, sink, zap.NewNop()).Run(ctx, Build(testPlan(t, 3), Options{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if result.Status != models.SessionStatusAbandoned {
		t.Errorf("Expected abandoned, got %s", result.Status)
	}
	if len(sink.saved) != 0 {
		t.Errorf("Expected the in-flight trial's response to be dropped, got %d", len(sink.saved))
	}
}

func TestRunLogsFailedSaveAndContinues(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	sink := &recordingSink{err: errors.New("disk full")}

	result, err := NewRunner(&scriptedPresenter{}, sink, zap.New(core)).Run(context.Background(), Build(testPlan(t, 1), Options{}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != models.SessionStatusCompleted {
		t.Errorf("Expected completion despite save failures, got %s", result.Status)
	}
	entries := logs.FilterMessage("Failed to save trial response").All()
	if len(entries) != 36 {
		t.Fatalf("Expected 36 error logs, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["enthusiasm"]; !ok {
		t.Errorf("Expected the full record in the log entry")
	}
}
