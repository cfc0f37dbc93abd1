// Package sequence lays a session out as a strictly linear timeline of
// presentation units and drives it through a Presenter.
package sequence

import (
	"errors"
	"fmt"

	"voice-rating/internal/models"
	"voice-rating/internal/stimulus"
)

type UnitKind string

const (
	UnitConsent      UnitKind = "consent"
	UnitDemographics UnitKind = "demographics"
	UnitInstructions UnitKind = "instructions"
	UnitBlockStart   UnitKind = "block_start"
	UnitTrial        UnitKind = "trial"
	UnitBreak        UnitKind = "break"
	UnitCompletion   UnitKind = "completion"
)

var (
	ErrUnexpectedUnit = errors.New("action does not match the current unit")
	ErrOutOfRange     = errors.New("timeline position out of range")
)

// Unit is one screen of the session. Block and TrialIndex are 1-based; both
// are zero for units outside a block.
type Unit struct {
	Kind        UnitKind
	Block       int
	TotalBlocks int
	TrialIndex  int
	Stimulus    *models.StimulusDescriptor
}

// Options toggle optional timeline sections.
type Options struct {
	Demographics bool
}

// Timeline is the ordered list of units for one session.
type Timeline []Unit

// Build lays out consent, optional demographics, instructions, each block
// (announcement, trials, then a break unless it is the last block) and the
// completion screen.
func Build(plan *stimulus.Plan, opts Options) Timeline {
	total := len(plan.Blocks)
	timeline := Timeline{{Kind: UnitConsent}}
	if opts.Demographics {
		timeline = append(timeline, Unit{Kind: UnitDemographics})
	}
	timeline = append(timeline, Unit{Kind: UnitInstructions, TotalBlocks: total})

	for i, block := range plan.Blocks {
		timeline = append(timeline, Unit{Kind: UnitBlockStart, Block: block.Index, TotalBlocks: total})
		for j := range block.Stimuli {
			timeline = append(timeline, Unit{
				Kind:        UnitTrial,
				Block:       block.Index,
				TotalBlocks: total,
				TrialIndex:  j + 1,
				Stimulus:    &block.Stimuli[j],
			})
		}
		if i < total-1 {
			timeline = append(timeline, Unit{Kind: UnitBreak, Block: block.Index, TotalBlocks: total})
		}
	}

	return append(timeline, Unit{Kind: UnitCompletion, TotalBlocks: total})
}

// At returns the unit at position.
func (t Timeline) At(position int) (Unit, error) {
	if position < 0 || position >= len(t) {
		return Unit{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, position, len(t))
	}
	return t[position], nil
}

// Expect returns the unit at position when its kind is one of kinds.
func (t Timeline) Expect(position int, kinds ...UnitKind) (Unit, error) {
	unit, err := t.At(position)
	if err != nil {
		return Unit{}, err
	}
	for _, k := range kinds {
		if unit.Kind == k {
			return unit, nil
		}
	}
	return unit, fmt.Errorf("%w: at %s", ErrUnexpectedUnit, unit.Kind)
}

// Next returns the position after position, clamped to the completion unit.
func (t Timeline) Next(position int) int {
	if position+1 >= len(t) {
		return len(t) - 1
	}
	return position + 1
}

// Trials counts the trial units.
func (t Timeline) Trials() int {
	n := 0
	for _, u := range t {
		if u.Kind == UnitTrial {
			n++
		}
	}
	return n
}

// Progress is the fraction of the timeline before position, for the progress bar.
func (t Timeline) Progress(position int) float64 {
	if len(t) <= 1 {
		return 1
	}
	if position >= len(t)-1 {
		return 1
	}
	return float64(position) / float64(len(t)-1)
}
