package stimulus

import (
	"math/rand"
	"testing"

	"voice-rating/internal/models"
)

func TestBuildCrossProduct(t *testing.T) {
	stimuli := Build(models.DefaultRoster(), Options{AudioPrefix: "audio_files"})

	if len(stimuli) != 36 {
		t.Fatalf("Expected 36 stimuli, got %d", len(stimuli))
	}

	first := stimuli[0]
	if first.VoiceID != "F1" || first.Pitch != models.PitchLow {
		t.Errorf("Expected F1/low first, got %s/%s", first.VoiceID, first.Pitch)
	}
	if first.AudioPath != "audio_files/female_voice1_pitch1.wav" {
		t.Errorf("Unexpected audio path %s", first.AudioPath)
	}

	last := stimuli[len(stimuli)-1]
	if last.AudioPath != "audio_files/male_voice6_pitch3.wav" {
		t.Errorf("Unexpected audio path %s", last.AudioPath)
	}

	for _, s := range stimuli {
		wantGender := models.GenderFemale
		if s.VoiceID[0] == 'M' {
			wantGender = models.GenderMale
		}
		if s.Gender != wantGender {
			t.Errorf("Voice %s has gender %s, want %s", s.VoiceID, s.Gender, wantGender)
		}
	}
}

func TestBuildUnspedLowMaleOnly(t *testing.T) {
	stimuli := Build(models.DefaultRoster(), Options{UnspedLow: true})

	if len(stimuli) != 42 {
		t.Fatalf("Expected 42 stimuli, got %d", len(stimuli))
	}

	unsped := 0
	for _, s := range stimuli {
		if s.Pitch != models.PitchLowUnsped {
			continue
		}
		unsped++
		if s.Gender != models.GenderMale {
			t.Errorf("Unsped low stimulus for non-male voice %s", s.VoiceID)
		}
	}
	if unsped != 6 {
		t.Errorf("Expected 6 unsped low stimuli, got %d", unsped)
	}
	if stimuli[36].AudioPath != "male_voice1_pitch4.wav" {
		t.Errorf("Unexpected unsped path %s", stimuli[36].AudioPath)
	}
}

func TestBuildUnspedLowConfiguredGenders(t *testing.T) {
	opts := Options{UnspedLow: true, UnspedLowGenders: []models.Gender{models.GenderFemale, models.GenderMale}}
	if got := len(Build(models.DefaultRoster(), opts)); got != 48 {
		t.Errorf("Expected 48 stimuli, got %d", got)
	}
}

func TestPartitionCoversSetExactlyOnce(t *testing.T) {
	stimuli := Build(models.DefaultRoster(), Options{})
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 50; run++ {
		blocks, err := Partition(Shuffle(stimuli, rng), 3)
		if err != nil {
			t.Fatalf("Partition failed: %v", err)
		}
		if len(blocks) != 3 {
			t.Fatalf("Expected 3 blocks, got %d", len(blocks))
		}

		seen := make(map[models.StimulusDescriptor]int)
		for i, b := range blocks {
			if b.Index != i+1 {
				t.Errorf("Block %d has index %d", i, b.Index)
			}
			if len(b.Stimuli) != 12 {
				t.Errorf("Block %d has %d stimuli, want 12", b.Index, len(b.Stimuli))
			}
			for _, s := range b.Stimuli {
				seen[s]++
			}
		}
		if len(seen) != len(stimuli) {
			t.Fatalf("Blocks cover %d distinct stimuli, want %d", len(seen), len(stimuli))
		}
		for s, n := range seen {
			if n != 1 {
				t.Errorf("Stimulus %+v appears %d times", s, n)
			}
		}
	}
}

func TestPartitionRemainderInLastBlock(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		sizes []int
	}{
		{"unsped variant", 42, []int{14, 14, 14}},
		{"remainder one", 37, []int{12, 12, 13}},
		{"remainder two", 38, []int{12, 12, 14}},
		{"fewer than blocks", 2, []int{0, 0, 2}},
		{"empty", 0, []int{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stimuli := make([]models.StimulusDescriptor, tt.n)
			for i := range stimuli {
				stimuli[i] = models.StimulusDescriptor{VoiceID: string(rune('A' + i%26)), AudioPath: string(rune(i))}
			}
			blocks, err := Partition(stimuli, 3)
			if err != nil {
				t.Fatalf("Partition failed: %v", err)
			}
			for i, want := range tt.sizes {
				if got := len(blocks[i].Stimuli); got != want {
					t.Errorf("Block %d: expected %d stimuli, got %d", i+1, want, got)
				}
			}
		})
	}
}

func TestPartitionRejectsZeroBlocks(t *testing.T) {
	if _, err := Partition(nil, 0); err != ErrInvalidBlockCount {
		t.Errorf("Expected ErrInvalidBlockCount, got %v", err)
	}
}

func TestShuffleLeavesInputUntouched(t *testing.T) {
	stimuli := Build(models.DefaultRoster(), Options{})
	original := append([]models.StimulusDescriptor(nil), stimuli...)

	Shuffle(stimuli, rand.New(rand.NewSource(7)))

	for i := range stimuli {
		if stimuli[i] != original[i] {
			t.Fatalf("Input mutated at %d", i)
		}
	}
}

func TestShuffleIsUniformOverSmallSet(t *testing.T) {
	stimuli := []models.StimulusDescriptor{{VoiceID: "A"}, {VoiceID: "B"}, {VoiceID: "C"}}
	rng := rand.New(rand.NewSource(42))
	counts := make(map[string]int)

	const runs = 60000
	for i := 0; i < runs; i++ {
		s := Shuffle(stimuli, rng)
		counts[s[0].VoiceID+s[1].VoiceID+s[2].VoiceID]++
	}

	if len(counts) != 6 {
		t.Fatalf("Expected all 6 permutations, saw %d", len(counts))
	}
	for perm, n := range counts {
		// Expected 10000 each; allow a generous band.
		if n < 9000 || n > 11000 {
			t.Errorf("Permutation %s occurred %d times", perm, n)
		}
	}
}

func TestPlanFromOrderRoundTrip(t *testing.T) {
	roster := models.DefaultRoster()
	plan, err := NewPlan(roster, Options{}, 3, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("NewPlan failed: %v", err)
	}

	rebuilt, err := PlanFromOrder(roster, Options{}, 3, plan.StoredOrder())
	if err != nil {
		t.Fatalf("PlanFromOrder failed: %v", err)
	}

	for i := range plan.Blocks {
		for j := range plan.Blocks[i].Stimuli {
			if plan.Blocks[i].Stimuli[j] != rebuilt.Blocks[i].Stimuli[j] {
				t.Fatalf("Block %d position %d differs after rebuild", i+1, j)
			}
		}
	}
}

func TestPlanFromOrderRejectsBadOrder(t *testing.T) {
	roster := models.DefaultRoster()

	if _, err := PlanFromOrder(roster, Options{}, 3, []int64{0, 1}); err == nil {
		t.Error("Expected error for short order")
	}

	order := make([]int64, 36)
	if _, err := PlanFromOrder(roster, Options{}, 3, order); err == nil {
		t.Error("Expected error for repeated indices")
	}
}

func TestAssignmentsFromResponsesMatchPlan(t *testing.T) {
	plan, err := NewPlan(models.DefaultRoster(), Options{}, 3, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("NewPlan failed: %v", err)
	}

	var responses []models.TrialResponse
	for _, b := range plan.Blocks {
		for _, s := range b.Stimuli {
			responses = append(responses, models.TrialResponse{Voice: s.VoiceID, Gender: s.Gender, Pitch: s.Pitch, Block: b.Index})
		}
	}

	want := plan.Assignments()
	got := AssignmentsFromResponses(responses)
	if len(got) != len(want) {
		t.Fatalf("Expected %d assignments, got %d", len(want), len(got))
	}
	for a, n := range want {
		if got[a] != n {
			t.Errorf("Assignment %+v: expected %d, got %d", a, n, got[a])
		}
	}
}
