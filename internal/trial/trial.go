// Package trial implements the gated playback trial: the rating questions
// stay locked until the clip has been played through to its natural end
// without skipping ahead.
package trial

import (
	"errors"
	"fmt"
	"time"

	"voice-rating/internal/models"
)

type State int

const (
	StateLoaded State = iota
	StatePlaying
	StateUnlocked
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StateUnlocked:
		return "unlocked"
	case StateSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// EventType enumerates the media-element triggers the trial reacts to.
type EventType string

const (
	EventLoaded     EventType = "loaded"
	EventPlay       EventType = "play"
	EventPause      EventType = "pause"
	EventTimeUpdate EventType = "timeupdate"
	EventSeeking    EventType = "seeking"
	EventRateChange EventType = "ratechange"
	EventEnded      EventType = "ended"
)

// Event is one media notification reported by the client.
type Event struct {
	Type     EventType `json:"type"`
	Position float64   `json:"position"`
	Seeking  bool      `json:"seeking,omitempty"`
	Rate     float64   `json:"rate,omitempty"`
	Duration float64   `json:"duration,omitempty"`
}

// Feedback tells the client how to correct its audio element.
type Feedback struct {
	State     string  `json:"state"`
	Position  float64 `json:"position"`
	Rate      float64 `json:"rate"`
	MaxPlayed float64 `json:"maxPlayed"`
	Corrected bool    `json:"corrected"`
	Unlocked  bool    `json:"unlocked"`
}

const (
	DefaultSeekTolerance = 0.05
	// DefaultProgressStep is the largest forward move, on top of the seek
	// tolerance, that one timeupdate may make. Browsers fire timeupdate every
	// 250ms or faster during playback.
	DefaultProgressStep = 0.5
	MinRating            = 1
	MaxRating            = 7
)

var (
	ErrLocked           = errors.New("ratings are locked until the audio has finished")
	ErrAlreadySubmitted = errors.New("trial already submitted")
	ErrInvalidRating    = errors.New("ratings must be between 1 and 7")
	ErrUnknownEvent     = errors.New("unknown media event")
)

// Ratings are the two answers collected per trial.
type Ratings struct {
	Enthusiasm int
	Dominance  int
}

func (r Ratings) Validate() error {
	if r.Enthusiasm < MinRating || r.Enthusiasm > MaxRating || r.Dominance < MinRating || r.Dominance > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

// Trial is the state machine for a single stimulus. It is not safe for
// concurrent use; callers serialize access (see Registry).
type Trial struct {
	Stimulus    models.StimulusDescriptor
	Block       int
	TrialIndex  int
	TotalBlocks int

	state           State
	position        float64
	maxPlayed       float64
	duration        float64
	tolerance       float64
	step            float64
	snapPending     bool
	seekCorrections int
	rateCorrections int
	unlockedAt      time.Time
	now             func() time.Time
}

type Option func(*Trial)

// WithSeekTolerance overrides how far past maxPlayed a seek may land.
func WithSeekTolerance(tolerance float64) Option {
	return func(t *Trial) { t.tolerance = tolerance }
}

// WithProgressStep overrides how far one timeupdate may move past maxPlayed.
func WithProgressStep(step float64) Option {
	return func(t *Trial) { t.step = step }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Trial) { t.now = now }
}

// New creates a trial in the Loaded state with playback pinned to 1.0.
func New(stimulus models.StimulusDescriptor, block, trialIndex, totalBlocks int, opts ...Option) *Trial {
	t := &Trial{
		Stimulus:    stimulus,
		Block:       block,
		TrialIndex:  trialIndex,
		TotalBlocks: totalBlocks,
		state:       StateLoaded,
		tolerance:   DefaultSeekTolerance,
		step:        DefaultProgressStep,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trial) State() State { return t.state }

func (t *Trial) MaxPlayed() float64 { return t.maxPlayed }

func (t *Trial) Position() float64 { return t.position }

func (t *Trial) SeekCorrections() int { return t.seekCorrections }

// Unlocked reports whether the rating questions may be shown.
func (t *Trial) Unlocked() bool {
	return t.state == StateUnlocked || t.state == StateSubmitted
}

// Apply dispatches one media event and returns the correction the client must apply.
func (t *Trial) Apply(ev Event) (Feedback, error) {
	corrected := false
	switch ev.Type {
	case EventLoaded:
		t.SetDuration(ev.Duration)
	case EventPlay:
		t.Play()
	case EventPause:
		t.Pause(ev.Position)
		corrected = t.position != ev.Position
	case EventTimeUpdate:
		t.TimeUpdate(ev.Position, ev.Seeking)
		corrected = t.position != ev.Position
	case EventSeeking:
		pos := t.Seek(ev.Position)
		corrected = pos != ev.Position
	case EventRateChange:
		corrected = t.RateChange(ev.Rate) != ev.Rate
	case EventEnded:
		t.End(ev.Position)
	default:
		return t.feedback(false), fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	return t.feedback(corrected), nil
}

func (t *Trial) feedback(corrected bool) Feedback {
	return Feedback{
		State:     t.state.String(),
		Position:  t.position,
		Rate:      1.0,
		MaxPlayed: t.maxPlayed,
		Corrected: corrected,
		Unlocked:  t.Unlocked(),
	}
}

// SetDuration records the clip length once the client knows it.
func (t *Trial) SetDuration(d float64) {
	if d > 0 {
		t.duration = d
	}
}

// Play moves a freshly loaded trial into Playing.
func (t *Trial) Play() {
	if t.state == StateLoaded {
		t.state = StatePlaying
	}
}

// TimeUpdate records natural playback progress and reports whether the
// position was accepted. Updates reported while the element is seeking never
// raise maxPlayed.
func (t *Trial) TimeUpdate(position float64, seeking bool) bool {
	if !t.track(position, seeking) {
		return false
	}
	if t.state == StateLoaded && !seeking && position > 0 {
		t.state = StatePlaying
	}
	return true
}

// Pause records where playback stopped. maxPlayed and the state are kept
// unless the pause position is ordinary progress.
func (t *Trial) Pause(position float64) bool {
	return t.track(position, false)
}

// track moves the play-head to a reported position. A position further past
// maxPlayed than playback could have carried it is a skip: the play-head
// stays at maxPlayed and the update is rejected. Rejected updates that
// follow a correction are the client catching up and are not counted again.
func (t *Trial) track(position float64, seeking bool) bool {
	if position < 0 {
		position = 0
	}
	limit := t.maxPlayed + t.tolerance
	if !seeking {
		limit += t.step
	}
	if position > limit {
		if !t.snapPending {
			t.seekCorrections++
			t.snapPending = true
		}
		t.position = t.maxPlayed
		return false
	}

	t.position = position
	if !seeking {
		t.snapPending = false
		if position > t.maxPlayed {
			t.maxPlayed = position
		}
	}
	return true
}

// Seek validates a requested play-head position. Anything past
// maxPlayed+tolerance snaps back to maxPlayed; rewinding is always allowed.
func (t *Trial) Seek(position float64) float64 {
	if position > t.maxPlayed+t.tolerance {
		t.seekCorrections++
		t.snapPending = true
		position = t.maxPlayed
	}
	if position < 0 {
		position = 0
	}
	t.position = position
	return position
}

// RateChange pins playback to normal speed and returns the enforced rate.
func (t *Trial) RateChange(rate float64) float64 {
	if rate != 1.0 {
		t.rateCorrections++
	}
	return 1.0
}

// End handles the natural end-of-media event at position. It reports
// whether this call unlocked the ratings; repeated end events are no-ops.
// The end position counts as progress when playback could have reached it.
// Without duration metadata the end position stands in for the clip length;
// with neither, any playback is enough.
func (t *Trial) End(position float64) bool {
	if t.state != StatePlaying {
		return false
	}
	if position > t.maxPlayed && position <= t.maxPlayed+t.tolerance+t.step {
		t.maxPlayed = position
		t.position = position
	}
	length := t.duration
	if length <= 0 {
		length = position
	}
	if length > 0 && t.maxPlayed < length-t.tolerance {
		return false
	}
	t.state = StateUnlocked
	t.unlockedAt = t.now()
	return true
}

// Submit accepts the ratings and produces the trial's single response record.
func (t *Trial) Submit(sessionID, participantID string, r Ratings) (*models.TrialResponse, error) {
	switch t.state {
	case StateSubmitted:
		return nil, ErrAlreadySubmitted
	case StateUnlocked:
	default:
		return nil, ErrLocked
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	completedAt := t.now()
	rt := completedAt.Sub(t.unlockedAt).Milliseconds()
	t.state = StateSubmitted

	return &models.TrialResponse{
		SessionID:       sessionID,
		ParticipantID:   participantID,
		Voice:           t.Stimulus.VoiceID,
		Gender:          t.Stimulus.Gender,
		Pitch:           t.Stimulus.Pitch,
		Block:           t.Block,
		TrialIndex:      t.TrialIndex,
		Enthusiasm:      r.Enthusiasm,
		Dominance:       r.Dominance,
		ReactionTimeMs:  &rt,
		SeekCorrections: t.seekCorrections,
		RateCorrections: t.rateCorrections,
		CompletedAt:     completedAt.UTC(),
	}, nil
}
