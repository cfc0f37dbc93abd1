// Package stimulus builds the voice x pitch stimulus set and splits it into
// randomized blocks.
package stimulus

import (
	"errors"
	"fmt"
	"math/rand"
	"path"

	"voice-rating/internal/models"
)

var ErrInvalidBlockCount = errors.New("block count must be at least 1")

// Options control which descriptors Build emits.
type Options struct {
	// UnspedLow appends one low_unsped descriptor per voice whose gender is listed
	// in UnspedLowGenders.
	UnspedLow        bool
	UnspedLowGenders []models.Gender
	// AudioPrefix is joined in front of every generated file name.
	AudioPrefix string
}

func (o Options) unspedFor(g models.Gender) bool {
	if !o.UnspedLow {
		return false
	}
	genders := o.UnspedLowGenders
	if len(genders) == 0 {
		genders = []models.Gender{models.GenderMale}
	}
	for _, candidate := range genders {
		if candidate == g {
			return true
		}
	}
	return false
}

// Build enumerates the full voice x pitch cross product, voice-major. Extra
// unsped-low descriptors follow the cross product in roster order.
func Build(roster *models.Roster, opts Options) []models.StimulusDescriptor {
	stimuli := make([]models.StimulusDescriptor, 0, len(roster.Voices)*(len(roster.PitchLevels)+1))
	for _, voice := range roster.Voices {
		for _, pitch := range roster.PitchLevels {
			stimuli = append(stimuli, describe(roster, voice, pitch, opts.AudioPrefix))
		}
	}
	for _, voice := range roster.Voices {
		if opts.unspedFor(voice.Gender) {
			stimuli = append(stimuli, describe(roster, voice, models.PitchLowUnsped, opts.AudioPrefix))
		}
	}
	return stimuli
}

func describe(roster *models.Roster, voice models.Voice, pitch models.Pitch, prefix string) models.StimulusDescriptor {
	file := models.AudioFileName(voice, roster.PitchMap[pitch])
	if prefix != "" {
		file = path.Join(prefix, file)
	}
	return models.StimulusDescriptor{
		VoiceID:   voice.ID,
		Gender:    voice.Gender,
		Pitch:     pitch,
		AudioPath: file,
	}
}

// Permutation returns a uniformly random ordering of the indices 0..n-1.
func Permutation(n int, rng *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// Shuffle returns a shuffled copy of stimuli; the input is left untouched.
func Shuffle(stimuli []models.StimulusDescriptor, rng *rand.Rand) []models.StimulusDescriptor {
	shuffled := make([]models.StimulusDescriptor, len(stimuli))
	for i, idx := range Permutation(len(stimuli), rng) {
		shuffled[i] = stimuli[idx]
	}
	return shuffled
}

// Partition splits stimuli into exactly count contiguous blocks of size
// len/count. Remainder stimuli land in the final block.
func Partition(stimuli []models.StimulusDescriptor, count int) ([]models.Block, error) {
	if count < 1 {
		return nil, ErrInvalidBlockCount
	}
	size := len(stimuli) / count
	blocks := make([]models.Block, count)
	for i := 0; i < count; i++ {
		start := i * size
		end := start + size
		if i == count-1 {
			end = len(stimuli)
		}
		blocks[i] = models.Block{Index: i + 1, Stimuli: stimuli[start:end]}
	}
	return blocks, nil
}

// Plan is the shuffled, partitioned stimulus set for one session.
type Plan struct {
	Stimuli []models.StimulusDescriptor // built order
	Order   []int                       // presentation order as indices into Stimuli
	Blocks  []models.Block
}

// NewPlan builds, shuffles and partitions a fresh stimulus set.
func NewPlan(roster *models.Roster, opts Options, blocks int, rng *rand.Rand) (*Plan, error) {
	stimuli := Build(roster, opts)
	return planFromOrder(stimuli, Permutation(len(stimuli), rng), blocks)
}

// PlanFromOrder rebuilds a plan from a stored presentation order.
func PlanFromOrder(roster *models.Roster, opts Options, blocks int, order []int64) (*Plan, error) {
	stimuli := Build(roster, opts)
	if len(order) != len(stimuli) {
		return nil, fmt.Errorf("stored order has %d entries, stimulus set has %d", len(order), len(stimuli))
	}
	idx := make([]int, len(order))
	seen := make([]bool, len(stimuli))
	for i, v := range order {
		if v < 0 || int(v) >= len(stimuli) || seen[v] {
			return nil, fmt.Errorf("stored order is not a permutation at position %d", i)
		}
		seen[v] = true
		idx[i] = int(v)
	}
	return planFromOrder(stimuli, idx, blocks)
}

func planFromOrder(stimuli []models.StimulusDescriptor, order []int, blocks int) (*Plan, error) {
	shuffled := make([]models.StimulusDescriptor, len(order))
	for i, idx := range order {
		shuffled[i] = stimuli[idx]
	}
	partitioned, err := Partition(shuffled, blocks)
	if err != nil {
		return nil, err
	}
	return &Plan{Stimuli: stimuli, Order: order, Blocks: partitioned}, nil
}

// StoredOrder converts the order into the integer array persisted with a session.
func (p *Plan) StoredOrder() []int64 {
	order := make([]int64, len(p.Order))
	for i, v := range p.Order {
		order[i] = int64(v)
	}
	return order
}

// Assignment is the (voice, pitch, block) triple a stimulus was presented in.
type Assignment struct {
	Voice string
	Pitch models.Pitch
	Block int
}

// Assignments lists the triple for every stimulus in the plan.
func (p *Plan) Assignments() map[Assignment]int {
	out := make(map[Assignment]int)
	for _, block := range p.Blocks {
		for _, s := range block.Stimuli {
			out[Assignment{Voice: s.VoiceID, Pitch: s.Pitch, Block: block.Index}]++
		}
	}
	return out
}

// AssignmentsFromResponses reconstructs the triples from recorded responses.
func AssignmentsFromResponses(responses []models.TrialResponse) map[Assignment]int {
	out := make(map[Assignment]int)
	for _, r := range responses {
		out[Assignment{Voice: r.Voice, Pitch: r.Pitch, Block: r.Block}]++
	}
	return out
}
