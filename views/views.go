// Package views holds the templ components for every page. The *_templ.go
// files are generated from the .templ sources with `templ generate`.
package views

//go:generate go run github.com/a-h/templ/cmd/templ@v0.2.793 generate

import (
	"fmt"

	"voice-rating/internal/sequence"
)

// UnitPage carries what every timeline screen needs.
type UnitPage struct {
	Unit      sequence.Unit
	Position  int
	Progress  float64
	CSRFToken string
}

type ratingScale struct {
	name, prompt, anchors string
}

var ratingScales = []ratingScale{
	{"enthusiasm", "On a scale of 1 to 7, how enthusiastic does this person sound to you?", "(1 = Not enthusiastic at all, 7 = Very enthusiastic)"},
	{"dominance", "On a scale of 1 to 7, how dominant does this person sound to you?", "(1 = Not dominant at all, 7 = Very dominant)"},
}

var ratingPoints = []int{1, 2, 3, 4, 5, 6, 7}

func progressWidth(p float64) string {
	return fmt.Sprintf("width:%.1f%%", p*100)
}
