package trial

import (
	"errors"
	"testing"
	"time"

	"voice-rating/internal/models"
)

var testStimulus = models.StimulusDescriptor{
	VoiceID:   "M2",
	Gender:    models.GenderMale,
	Pitch:     models.PitchHigh,
	AudioPath: "/audio/male_voice2_pitch3.wav",
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTrial(clock *fakeClock) *Trial {
	return New(testStimulus, 2, 5, 3, WithClock(clock.Now))
}

// advanceTo plays forward from maxPlayed in 0.25s timeupdates.
func advanceTo(t *testing.T, tr *Trial, to float64) {
	t.Helper()
	for pos := tr.MaxPlayed() + 0.25; pos < to; pos += 0.25 {
		if !tr.TimeUpdate(pos, false) {
			t.Fatalf("Timeupdate at %.2f rejected", pos)
		}
	}
	if !tr.TimeUpdate(to, false) {
		t.Fatalf("Timeupdate at %.2f rejected", to)
	}
}

func playThrough(t *testing.T, tr *Trial, duration float64) {
	t.Helper()
	tr.SetDuration(duration)
	tr.Play()
	advanceTo(t, tr, duration)
}

func TestNewTrialStartsLoaded(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})

	if tr.State() != StateLoaded {
		t.Errorf("Expected loaded, got %s", tr.State())
	}
	if tr.MaxPlayed() != 0 {
		t.Errorf("Expected maxPlayed 0, got %f", tr.MaxPlayed())
	}
	if tr.Unlocked() {
		t.Error("New trial should be locked")
	}
}

func TestNoResponseBeforeUnlock(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	ratings := Ratings{Enthusiasm: 4, Dominance: 4}

	if _, err := tr.Submit("s", "p", ratings); !errors.Is(err, ErrLocked) {
		t.Errorf("Loaded: expected ErrLocked, got %v", err)
	}

	tr.Play()
	advanceTo(t, tr, 1.0)
	if _, err := tr.Submit("s", "p", ratings); !errors.Is(err, ErrLocked) {
		t.Errorf("Playing: expected ErrLocked, got %v", err)
	}
}

func TestSeekAheadSnapsBack(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	tr.Play()
	advanceTo(t, tr, 1.5)

	attempts := []float64{1.6, 3.0, 10.0, 2.0, 1.56}
	for _, target := range attempts {
		got := tr.Seek(target)
		if got > tr.MaxPlayed() {
			t.Errorf("Seek to %.2f landed at %.2f, beyond maxPlayed %.2f", target, got, tr.MaxPlayed())
		}
	}
	if tr.SeekCorrections() != len(attempts) {
		t.Errorf("Expected %d corrections, got %d", len(attempts), tr.SeekCorrections())
	}
}

func TestSeekWithinToleranceAllowed(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	tr.Play()
	advanceTo(t, tr, 2.0)

	if got := tr.Seek(2.04); got != 2.04 {
		t.Errorf("Expected seek within tolerance to stand, got %.2f", got)
	}
	if got := tr.Seek(0.5); got != 0.5 {
		t.Errorf("Expected rewind to stand, got %.2f", got)
	}
	if tr.SeekCorrections() != 0 {
		t.Errorf("Expected no corrections, got %d", tr.SeekCorrections())
	}
}

func TestMaxPlayedNeverDecreases(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	tr.Play()
	advanceTo(t, tr, 3.0)

	tr.Apply(Event{Type: EventPause, Position: 3.0})
	tr.Seek(0.5)
	tr.TimeUpdate(0.5, false)
	tr.Apply(Event{Type: EventPlay})
	tr.TimeUpdate(0.75, false)

	if tr.MaxPlayed() != 3.0 {
		t.Errorf("Expected maxPlayed 3.0 after rewind, got %f", tr.MaxPlayed())
	}
}

func TestSeekingTimeUpdateDoesNotAdvanceMaxPlayed(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	tr.Play()
	advanceTo(t, tr, 1.0)
	tr.TimeUpdate(8.0, true)

	if tr.MaxPlayed() != 1.0 {
		t.Errorf("Expected maxPlayed 1.0, got %f", tr.MaxPlayed())
	}
}

func TestRewindDoesNotUnlock(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	tr.SetDuration(5.0)
	tr.Play()
	advanceTo(t, tr, 4.0)
	tr.Seek(0)
	tr.TimeUpdate(4.0, false)

	if tr.Unlocked() {
		t.Error("Trial unlocked without an end event")
	}
}

func TestEndUnlocksExactlyOnce(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	playThrough(t, tr, 4.0)

	transitions := 0
	for i := 0; i < 5; i++ {
		if tr.End(4.0) {
			transitions++
		}
	}
	if transitions != 1 {
		t.Errorf("Expected exactly one unlock transition, got %d", transitions)
	}
	if tr.State() != StateUnlocked {
		t.Errorf("Expected unlocked, got %s", tr.State())
	}
}

func TestEndIgnoredWhenLoaded(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	if tr.End(0) {
		t.Error("End should not unlock a trial that never played")
	}
}

func TestEndRejectedWhenClipNotHeard(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	tr.SetDuration(6.0)
	tr.Play()
	advanceTo(t, tr, 2.0)

	if tr.End(6.0) {
		t.Error("End should be rejected when maxPlayed is short of the duration")
	}
	if tr.State() != StatePlaying {
		t.Errorf("Expected playing, got %s", tr.State())
	}
}

func TestRateIsPinned(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})

	fb, err := tr.Apply(Event{Type: EventRateChange, Rate: 2.0})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if fb.Rate != 1.0 || !fb.Corrected {
		t.Errorf("Expected rate pinned to 1.0 with correction, got %+v", fb)
	}

	fb, _ = tr.Apply(Event{Type: EventRateChange, Rate: 1.0})
	if fb.Corrected {
		t.Error("Rate 1.0 should not be reported as corrected")
	}
}

func TestSubmitEmitsSingleResponse(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tr := newTestTrial(clock)
	playThrough(t, tr, 3.0)
	tr.Seek(9.0)
	tr.End(3.0)
	clock.Advance(1500 * time.Millisecond)

	resp, err := tr.Submit("session-1", "P1", Ratings{Enthusiasm: 6, Dominance: 2})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if resp.Voice != "M2" || resp.Gender != models.GenderMale || resp.Pitch != models.PitchHigh {
		t.Errorf("Unexpected stimulus fields %+v", resp)
	}
	if resp.Block != 2 || resp.TrialIndex != 5 {
		t.Errorf("Expected block 2 trial 5, got block %d trial %d", resp.Block, resp.TrialIndex)
	}
	if resp.Enthusiasm != 6 || resp.Dominance != 2 {
		t.Errorf("Unexpected ratings %d/%d", resp.Enthusiasm, resp.Dominance)
	}
	if resp.ReactionTimeMs == nil || *resp.ReactionTimeMs != 1500 {
		t.Errorf("Expected reaction time 1500ms, got %v", resp.ReactionTimeMs)
	}
	if resp.SeekCorrections != 1 {
		t.Errorf("Expected 1 seek correction, got %d", resp.SeekCorrections)
	}
	if !resp.CompletedAt.Equal(clock.t) {
		t.Errorf("Expected completion at %v, got %v", clock.t, resp.CompletedAt)
	}

	if _, err := tr.Submit("session-1", "P1", Ratings{Enthusiasm: 6, Dominance: 2}); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSubmitValidatesRatings(t *testing.T) {
	tests := []struct {
		name    string
		ratings Ratings
		wantErr bool
	}{
		{"both valid", Ratings{1, 7}, false},
		{"enthusiasm missing", Ratings{0, 4}, true},
		{"dominance too high", Ratings{4, 8}, true},
		{"negative", Ratings{-1, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTrial(&fakeClock{t: time.Now()})
			playThrough(t, tr, 2.0)
			tr.End(2.0)

			_, err := tr.Submit("s", "p", tt.ratings)
			if tt.wantErr && !errors.Is(err, ErrInvalidRating) {
				t.Errorf("Expected ErrInvalidRating, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error %v", err)
			}
			// A rejected submission leaves the trial open for a corrected one.
			if tt.wantErr && tr.State() != StateUnlocked {
				t.Errorf("Expected trial to stay unlocked, got %s", tr.State())
			}
		})
	}
}

func TestApplyUnknownEvent(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	if _, err := tr.Apply(Event{Type: "volumechange"}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Expected ErrUnknownEvent, got %v", err)
	}
}

func TestApplyFullPlayback(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	events := []Event{
		{Type: EventLoaded, Duration: 2.0},
		{Type: EventPlay},
		{Type: EventTimeUpdate, Position: 0.25},
		{Type: EventTimeUpdate, Position: 0.5},
		{Type: EventTimeUpdate, Position: 0.75},
		{Type: EventTimeUpdate, Position: 1.0},
		{Type: EventSeeking, Position: 1.9},
		{Type: EventSeeking, Position: 1.0},
		{Type: EventTimeUpdate, Position: 1.25},
		{Type: EventTimeUpdate, Position: 1.5},
		{Type: EventTimeUpdate, Position: 1.75},
		{Type: EventEnded, Position: 2.0},
		{Type: EventEnded, Position: 2.0},
	}

	var fb Feedback
	for _, ev := range events {
		var err error
		fb, err = tr.Apply(ev)
		if err != nil {
			t.Fatalf("Apply(%s) failed: %v", ev.Type, err)
		}
	}
	if !fb.Unlocked || fb.State != "unlocked" {
		t.Errorf("Expected unlocked feedback, got %+v", fb)
	}
}

func TestTimeUpdatesAfterRejectedSeekDoNotUnlock(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	events := []Event{
		{Type: EventLoaded, Duration: 30},
		{Type: EventPlay},
		{Type: EventTimeUpdate, Position: 0.25},
		{Type: EventTimeUpdate, Position: 0.5},
		{Type: EventTimeUpdate, Position: 0.75},
		{Type: EventTimeUpdate, Position: 1.0},
		{Type: EventSeeking, Position: 29.8, Seeking: true},
		{Type: EventTimeUpdate, Position: 29.9},
		{Type: EventTimeUpdate, Position: 30.0},
		{Type: EventEnded, Position: 30.0},
	}

	var fb Feedback
	for _, ev := range events {
		var err error
		if fb, err = tr.Apply(ev); err != nil {
			t.Fatalf("Apply(%s) failed: %v", ev.Type, err)
		}
		if fb.Position > tr.MaxPlayed() {
			t.Errorf("After %s at %.2f: play-head %.2f beyond maxPlayed %.2f", ev.Type, ev.Position, fb.Position, tr.MaxPlayed())
		}
	}

	if tr.Unlocked() {
		t.Fatalf("Unlocked after hearing %.2fs of a 30s clip", tr.MaxPlayed())
	}
	if tr.MaxPlayed() != 1.0 {
		t.Errorf("Expected maxPlayed 1.0, got %.2f", tr.MaxPlayed())
	}
	if tr.SeekCorrections() != 1 {
		t.Errorf("Expected one correction for the drag, got %d", tr.SeekCorrections())
	}
	if fb.Position != 1.0 {
		t.Errorf("Expected play-head held at 1.0, got %+v", fb)
	}
}

func TestTimeUpdateJumpIsRejected(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	tr.SetDuration(10)
	tr.Play()
	advanceTo(t, tr, 2.0)

	fb, _ := tr.Apply(Event{Type: EventTimeUpdate, Position: 9.0})
	if !fb.Corrected || fb.Position != 2.0 {
		t.Errorf("Expected jump snapped to 2.0, got %+v", fb)
	}
	if tr.SeekCorrections() != 1 {
		t.Errorf("Expected 1 correction, got %d", tr.SeekCorrections())
	}

	// Playback resumes from the snapped position.
	advanceTo(t, tr, 2.5)
	if tr.MaxPlayed() != 2.5 {
		t.Errorf("Expected maxPlayed 2.5, got %.2f", tr.MaxPlayed())
	}
}

func TestEndPositionCountsAsFinalProgress(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		heard    float64
		end      float64
		unlock   bool
	}{
		{"last timeupdate short of the end", 4.0, 3.75, 4.0, true},
		{"no duration metadata", 0, 3.75, 4.0, true},
		{"end far past what was heard", 4.0, 1.0, 4.0, false},
		{"skipped end without duration", 0, 1.0, 4.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTrial(&fakeClock{t: time.Now()})
			tr.SetDuration(tt.duration)
			tr.Play()
			advanceTo(t, tr, tt.heard)

			if got := tr.End(tt.end); got != tt.unlock {
				t.Errorf("End(%.2f) after %.2fs: expected %t, got %t", tt.end, tt.heard, tt.unlock, got)
			}
		})
	}
}

func TestPauseIsBounded(t *testing.T) {
	tr := newTestTrial(&fakeClock{t: time.Now()})
	tr.Play()
	advanceTo(t, tr, 1.0)

	tests := []struct {
		reported float64
		want     float64
	}{
		{-3.0, 0},
		{0.5, 0.5},
		{20.0, 1.0},
	}
	for _, tt := range tests {
		fb, err := tr.Apply(Event{Type: EventPause, Position: tt.reported})
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if fb.Position != tt.want {
			t.Errorf("Pause at %.2f: expected position %.2f, got %.2f", tt.reported, tt.want, fb.Position)
		}
		if fb.Corrected == (tt.reported == tt.want) {
			t.Errorf("Pause at %.2f: unexpected corrected=%t", tt.reported, fb.Corrected)
		}
	}
	if tr.MaxPlayed() != 1.0 {
		t.Errorf("Expected maxPlayed 1.0, got %.2f", tr.MaxPlayed())
	}
}

func TestRegistryReplacesStaleTrial(t *testing.T) {
	reg := NewRegistry()
	created := 0
	create := func() *Trial {
		created++
		return newTestTrial(&fakeClock{t: time.Now()})
	}
	noop := func(*Trial) error { return nil }

	reg.With("a", 3, create, noop)
	reg.With("a", 3, create, noop)
	if created != 1 {
		t.Errorf("Expected 1 trial for same position, got %d", created)
	}

	reg.With("a", 4, create, noop)
	if created != 2 {
		t.Errorf("Expected new trial after position change, got %d creations", created)
	}
	if reg.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", reg.Len())
	}

	reg.Remove("a")
	if reg.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", reg.Len())
	}
}

func TestRegistrySweep(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	reg := NewRegistry()
	reg.now = clock.Now
	create := func() *Trial { return newTestTrial(clock) }
	noop := func(*Trial) error { return nil }

	reg.With("old", 1, create, noop)
	clock.Advance(time.Hour)
	reg.With("fresh", 1, create, noop)

	evicted := reg.Sweep(30 * time.Minute)
	if len(evicted) != 1 || evicted[0] != "old" {
		t.Errorf("Expected only 'old' evicted, got %v", evicted)
	}
	if reg.Len() != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", reg.Len())
	}
}
