// Package simulate provides a scripted participant that runs a timeline
// against real trial state machines, for dry runs and end-to-end tests.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"voice-rating/internal/models"
	"voice-rating/internal/sequence"
	"voice-rating/internal/trial"

	"go.uber.org/zap"
)

var ErrNotUnlocked = errors.New("trial did not unlock after full playback")

// Behavior tunes the synthetic participant.
type Behavior struct {
	DeclineConsent bool
	// SeekAhead is the chance, per progress tick, of trying to skip forward.
	SeekAhead float64
	// RateChange is the chance, per progress tick, of speeding playback up.
	RateChange float64
	// ClipSeconds is the reported length of every clip.
	ClipSeconds float64
	// Tick is the spacing of timeupdate events. It is capped at
	// trial.DefaultProgressStep, as a browser's is.
	Tick float64
}

func DefaultBehavior() Behavior {
	return Behavior{SeekAhead: 0.1, RateChange: 0.05, ClipSeconds: 3, Tick: 0.25}
}

// Participant implements sequence.Presenter.
type Participant struct {
	SessionID     string
	ParticipantID string

	behavior  Behavior
	tolerance float64
	rng       *rand.Rand
	log       *zap.Logger

	seekAttempts int
	rateAttempts int
}

func NewParticipant(sessionID, participantID string, behavior Behavior, tolerance float64, rng *rand.Rand, log *zap.Logger) *Participant {
	if behavior.Tick <= 0 || behavior.Tick > trial.DefaultProgressStep {
		behavior.Tick = 0.25
	}
	if behavior.ClipSeconds <= 0 {
		behavior.ClipSeconds = 3
	}
	return &Participant{
		SessionID:     sessionID,
		ParticipantID: participantID,
		behavior:      behavior,
		tolerance:     tolerance,
		rng:           rng,
		log:           log,
	}
}

// Attempts returns how many seek-ahead and rate changes were tried.
func (p *Participant) Attempts() (seeks, rates int) {
	return p.seekAttempts, p.rateAttempts
}

func (p *Participant) Present(ctx context.Context, unit sequence.Unit) (sequence.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return sequence.Outcome{}, err
	}
	switch unit.Kind {
	case sequence.UnitConsent:
		return sequence.Outcome{Consented: !p.behavior.DeclineConsent}, nil
	case sequence.UnitTrial:
		return p.listenAndRate(ctx, unit)
	}
	return sequence.Outcome{}, nil
}

func (p *Participant) listenAndRate(ctx context.Context, unit sequence.Unit) (sequence.Outcome, error) {
	t := trial.New(*unit.Stimulus, unit.Block, unit.TrialIndex, unit.TotalBlocks, trial.WithSeekTolerance(p.tolerance))
	duration := p.behavior.ClipSeconds

	events := []trial.Event{
		{Type: trial.EventLoaded, Duration: duration},
		{Type: trial.EventPlay},
	}
	for _, ev := range events {
		if _, err := t.Apply(ev); err != nil {
			return sequence.Outcome{}, err
		}
	}

	for pos := p.behavior.Tick; pos < duration; pos += p.behavior.Tick {
		if err := ctx.Err(); err != nil {
			return sequence.Outcome{}, err
		}
		if _, err := t.Apply(trial.Event{Type: trial.EventTimeUpdate, Position: pos}); err != nil {
			return sequence.Outcome{}, err
		}
		if p.rng.Float64() < p.behavior.SeekAhead {
			p.seekAttempts++
			target := pos + p.tolerance + p.rng.Float64()*(duration-pos)
			// The element keeps playing from the target until the correction
			// comes back, so its timeupdates report the skipped-to position.
			fb, err := p.applyAll(t,
				trial.Event{Type: trial.EventSeeking, Position: target, Seeking: true},
				trial.Event{Type: trial.EventTimeUpdate, Position: target},
				trial.Event{Type: trial.EventTimeUpdate, Position: target + p.behavior.Tick},
			)
			if err != nil {
				return sequence.Outcome{}, err
			}
			pos = fb.Position
		}
		if p.rng.Float64() < p.behavior.RateChange {
			p.rateAttempts++
			if _, err := t.Apply(trial.Event{Type: trial.EventRateChange, Rate: 2}); err != nil {
				return sequence.Outcome{}, err
			}
		}
	}

	for _, ev := range []trial.Event{
		{Type: trial.EventTimeUpdate, Position: duration},
		{Type: trial.EventEnded, Position: duration},
	} {
		if _, err := t.Apply(ev); err != nil {
			return sequence.Outcome{}, err
		}
	}
	if !t.Unlocked() {
		return sequence.Outcome{}, fmt.Errorf("%w: block %d trial %d", ErrNotUnlocked, unit.Block, unit.TrialIndex)
	}

	ratings := trial.Ratings{
		Enthusiasm: trial.MinRating + p.rng.Intn(trial.MaxRating-trial.MinRating+1),
		Dominance:  trial.MinRating + p.rng.Intn(trial.MaxRating-trial.MinRating+1),
	}
	response, err := t.Submit(p.SessionID, p.ParticipantID, ratings)
	if err != nil {
		return sequence.Outcome{}, err
	}
	p.log.Debug("Simulated trial",
		zap.String("participant", p.ParticipantID),
		zap.String("voice", response.Voice),
		zap.String("pitch", string(response.Pitch)),
		zap.Int("seek_corrections", response.SeekCorrections),
	)
	return sequence.Outcome{Response: response}, nil
}

// applyAll sends events as one batch and returns the feedback of the last.
func (p *Participant) applyAll(t *trial.Trial, events ...trial.Event) (trial.Feedback, error) {
	var fb trial.Feedback
	for _, ev := range events {
		var err error
		if fb, err = t.Apply(ev); err != nil {
			return fb, err
		}
	}
	return fb, nil
}

// MemorySink collects responses in memory. It is safe for concurrent use.
type MemorySink struct {
	mu        sync.Mutex
	responses []models.TrialResponse
}

func (s *MemorySink) SaveTrialResponse(ctx context.Context, response *models.TrialResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, *response)
	return nil
}

// Responses returns a copy of everything saved so far.
func (s *MemorySink) Responses() []models.TrialResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TrialResponse, len(s.responses))
	copy(out, s.responses)
	return out
}
