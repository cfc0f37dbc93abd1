package models

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

type Pitch string

const (
	PitchLow       Pitch = "low"
	PitchMid       Pitch = "mid"
	PitchHigh      Pitch = "high"
	PitchLowUnsped Pitch = "low_unsped"
)

// Voice is one speaker in the roster.
type Voice struct {
	ID     string `yaml:"id"`
	Gender Gender `yaml:"gender"`
}

// FileIndex is the numeric part of the voice id used in audio file names ("M3" -> "3").
func (v Voice) FileIndex() string {
	return strings.TrimLeftFunc(v.ID, unicode.IsLetter)
}

// Roster is the fixed set of voices and pitch levels an experiment draws from.
type Roster struct {
	Voices      []Voice       `yaml:"voices"`
	PitchLevels []Pitch       `yaml:"pitch_levels"`
	PitchMap    map[Pitch]int `yaml:"pitch_map"`
}

// DefaultRoster returns the 12-voice, 3-pitch roster the study was designed around.
func DefaultRoster() *Roster {
	return &Roster{
		Voices: []Voice{
			{ID: "F1", Gender: GenderFemale},
			{ID: "F2", Gender: GenderFemale},
			{ID: "F3", Gender: GenderFemale},
			{ID: "F4", Gender: GenderFemale},
			{ID: "F5", Gender: GenderFemale},
			{ID: "F6", Gender: GenderFemale},
			{ID: "M1", Gender: GenderMale},
			{ID: "M2", Gender: GenderMale},
			{ID: "M3", Gender: GenderMale},
			{ID: "M4", Gender: GenderMale},
			{ID: "M5", Gender: GenderMale},
			{ID: "M6", Gender: GenderMale},
		},
		PitchLevels: []Pitch{PitchLow, PitchMid, PitchHigh},
		PitchMap:    defaultPitchMap(),
	}
}

func defaultPitchMap() map[Pitch]int {
	return map[Pitch]int{
		PitchLow:       1,
		PitchMid:       2,
		PitchHigh:      3,
		PitchLowUnsped: 4,
	}
}

// LoadRoster reads and parses a stimuli YAML file. Missing pitch mappings
// fall back to the default suffix table.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stimuli file: %w", err)
	}

	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stimuli YAML: %w", err)
	}

	if roster.PitchMap == nil {
		roster.PitchMap = make(map[Pitch]int)
	}
	for pitch, suffix := range defaultPitchMap() {
		if _, ok := roster.PitchMap[pitch]; !ok {
			roster.PitchMap[pitch] = suffix
		}
	}

	if err := roster.Validate(); err != nil {
		return nil, err
	}
	return &roster, nil
}

// Validate checks that the roster can produce a stimulus set.
func (r *Roster) Validate() error {
	if len(r.Voices) == 0 {
		return fmt.Errorf("roster has no voices")
	}
	if len(r.PitchLevels) == 0 {
		return fmt.Errorf("roster has no pitch levels")
	}
	seen := make(map[string]bool, len(r.Voices))
	for _, v := range r.Voices {
		if v.Gender != GenderFemale && v.Gender != GenderMale {
			return fmt.Errorf("voice %q has unknown gender %q", v.ID, v.Gender)
		}
		if v.FileIndex() == "" {
			return fmt.Errorf("voice %q has no numeric index", v.ID)
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate voice %q", v.ID)
		}
		seen[v.ID] = true
	}
	for _, p := range r.PitchLevels {
		if _, ok := r.PitchMap[p]; !ok {
			return fmt.Errorf("pitch level %q has no file suffix", p)
		}
	}
	return nil
}

// StimulusDescriptor identifies one audio clip. It is built once and never mutated.
type StimulusDescriptor struct {
	VoiceID   string `json:"voice"`
	Gender    Gender `json:"gender"`
	Pitch     Pitch  `json:"pitch"`
	AudioPath string `json:"file"`
}

// AudioFileName builds the clip name from gender, voice index and pitch suffix.
func AudioFileName(v Voice, suffix int) string {
	return fmt.Sprintf("%s_voice%s_pitch%d.wav", strings.ToLower(string(v.Gender)), v.FileIndex(), suffix)
}

// Block is one contiguous slice of the shuffled stimulus set. Index is 1-based.
type Block struct {
	Index   int
	Stimuli []StimulusDescriptor
}
