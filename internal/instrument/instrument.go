// Package instrument holds the static definitions of the standardized
// questionnaires: items, response options, per-option scores, reverse-scored
// items, subscales and the score-to-category tables.
package instrument

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownInstrument means a registry lookup used an id that was never
	// defined. It indicates a mismatch between the resolver table and the
	// registry and is a programming error.
	ErrUnknownInstrument = errors.New("unknown instrument")

	// ErrInvalidItem and ErrInvalidOption are returned by ItemScore for
	// indices outside the instrument definition.
	ErrInvalidItem   = errors.New("item index out of range")
	ErrInvalidOption = errors.New("option index out of range")
)

// Range maps an inclusive score interval to a category label.
type Range struct {
	Min   int    `yaml:"min"`
	Max   int    `yaml:"max"`
	Label string `yaml:"label"`
}

// Contains reports whether score lies within the inclusive bounds.
func (r Range) Contains(score int) bool {
	return score >= r.Min && score <= r.Max
}

// Subscale is an independently scored component of a multi-dimensional
// instrument. Its score is the sum of Items multiplied by Multiplier.
type Subscale struct {
	Name            string            `yaml:"name"`
	Items           []int             `yaml:"items"`
	Multiplier      int               `yaml:"multiplier"`
	Ranges          []Range           `yaml:"ranges"`
	Recommendations map[string]string `yaml:"recommendations"`
}

// Instrument is an immutable questionnaire definition. Instances handed out
// by a Registry are shared and must not be modified.
type Instrument struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	Description     string            `yaml:"description"`
	Stem            string            `yaml:"stem"`
	Items           []string          `yaml:"items"`
	Options         []string          `yaml:"options"`
	Scores          []int             `yaml:"scores"`
	Binary          bool              `yaml:"binary"`
	ReverseScored   []int             `yaml:"reverse_scored"`
	Ranges          []Range           `yaml:"ranges"`
	Subscales       []Subscale        `yaml:"subscales"`
	Recommendations map[string]string `yaml:"recommendations"`

	reverse map[int]bool
}

// HasSubscales reports whether the instrument is scored per subscale rather
// than as a single total.
func (in *Instrument) HasSubscales() bool {
	return len(in.Subscales) > 0
}

// IsReverseScored reports whether item is flagged for reverse scoring.
func (in *Instrument) IsReverseScored(item int) bool {
	return in.reverse[item]
}

// ItemScore returns the score contributed by choosing option on item, after
// reverse-scoring adjustment. Reverse-scored items take the mirrored score
// scores[len-1-option]; on binary true/false instruments they take
// 1 - scores[option].
func (in *Instrument) ItemScore(item, option int) (int, error) {
	if item < 0 || item >= len(in.Items) {
		return 0, fmt.Errorf("%s item %d: %w", in.ID, item, ErrInvalidItem)
	}
	if option < 0 || option >= len(in.Scores) {
		return 0, fmt.Errorf("%s option %d: %w", in.ID, option, ErrInvalidOption)
	}
	if !in.reverse[item] {
		return in.Scores[option], nil
	}
	if in.Binary {
		return 1 - in.Scores[option], nil
	}
	return in.Scores[len(in.Scores)-1-option], nil
}

// ItemScoreBounds returns the lowest and highest score attainable on item.
func (in *Instrument) ItemScoreBounds(item int) (lo, hi int) {
	for opt := range in.Scores {
		s, _ := in.ItemScore(item, opt)
		if opt == 0 || s < lo {
			lo = s
		}
		if opt == 0 || s > hi {
			hi = s
		}
	}
	return lo, hi
}

// Allows reports whether score can be produced by some option on item.
func (in *Instrument) Allows(item, score int) bool {
	for opt := range in.Scores {
		if s, err := in.ItemScore(item, opt); err == nil && s == score {
			return true
		}
	}
	return false
}

// TotalBounds returns the attainable total for a single-scale instrument.
func (in *Instrument) TotalBounds() (lo, hi int) {
	for i := range in.Items {
		l, h := in.ItemScoreBounds(i)
		lo += l
		hi += h
	}
	return lo, hi
}

// SubscaleBounds returns the attainable (multiplied) score of a subscale.
func (in *Instrument) SubscaleBounds(sub Subscale) (lo, hi int) {
	for _, i := range sub.Items {
		l, h := in.ItemScoreBounds(i)
		lo += l
		hi += h
	}
	return lo * sub.Multiplier, hi * sub.Multiplier
}

// Category resolves a total against a range table.
func Category(ranges []Range, score int) (string, bool) {
	for _, r := range ranges {
		if r.Contains(score) {
			return r.Label, true
		}
	}
	return "", false
}
