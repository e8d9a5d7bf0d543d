// Package scoring turns a completed response vector into scores and
// category labels. Scoring is a pure function of the instrument definition
// and the responses.
package scoring

import (
	"errors"
	"fmt"
	"strings"

	"mindtriage/internal/instrument"
)

var (
	// ErrResponseCount means the response vector does not have one entry
	// per item.
	ErrResponseCount = errors.New("response count does not match item count")
	// ErrInvalidScore means a response is not a score any option of that
	// item can produce.
	ErrInvalidScore = errors.New("response is not a permissible score")
	// ErrScoreOutOfRange means a range table has no entry for a computed
	// score. Tables are validated at load, so this is an invariant violation.
	ErrScoreOutOfRange = errors.New("score outside every category range")
)

// SubscaleScore is the multiplied score and category of one subscale.
type SubscaleScore struct {
	Name           string `json:"name"`
	Score          int    `json:"score"`
	Category       string `json:"category"`
	Recommendation string `json:"recommendation,omitempty"`
}

// Result is the outcome of one completed instrument. It is created once
// when the last item is answered and never modified afterwards.
type Result struct {
	InstrumentID   string          `json:"instrument_id"`
	Name           string          `json:"name"`
	Total          int             `json:"total"`
	Category       string          `json:"category,omitempty"`
	Recommendation string          `json:"recommendation,omitempty"`
	Subscales      []SubscaleScore `json:"subscales,omitempty"`
}

// HasSubscales reports whether the result is per subscale.
func (r Result) HasSubscales() bool {
	return len(r.Subscales) > 0
}

// Scores maps subscale name to score, or "total" to the total for
// single-scale instruments.
func (r Result) Scores() map[string]int {
	if !r.HasSubscales() {
		return map[string]int{"total": r.Total}
	}
	out := make(map[string]int, len(r.Subscales))
	for _, s := range r.Subscales {
		out[s.Name] = s.Score
	}
	return out
}

// Lines renders one "label: score (category)" line per scale.
func (r Result) Lines() []string {
	if !r.HasSubscales() {
		return []string{fmt.Sprintf("Score: %d (%s)", r.Total, r.Category)}
	}
	lines := make([]string, 0, len(r.Subscales))
	for _, s := range r.Subscales {
		lines = append(lines, fmt.Sprintf("%s: %d (%s)", titleCase(s.Name), s.Score, s.Category))
	}
	return lines
}

// Recommendations lists the advisory text for every scale, in order.
func (r Result) Recommendations() []string {
	if !r.HasSubscales() {
		if r.Recommendation == "" {
			return nil
		}
		return []string{r.Recommendation}
	}
	var out []string
	for _, s := range r.Subscales {
		if s.Recommendation != "" {
			out = append(out, fmt.Sprintf("%s: %s", titleCase(s.Name), s.Recommendation))
		}
	}
	return out
}

// Clone returns a deep copy so callers cannot reach shared slices.
func (r Result) Clone() Result {
	r.Subscales = append([]SubscaleScore(nil), r.Subscales...)
	return r
}

// Score computes the result for a complete response vector. Responses are
// the per-item scores after reverse-scoring adjustment.
func Score(in *instrument.Instrument, responses []int) (Result, error) {
	if len(responses) != len(in.Items) {
		return Result{}, fmt.Errorf("%s: %w: got %d want %d", in.ID, ErrResponseCount, len(responses), len(in.Items))
	}
	for i, s := range responses {
		if !in.Allows(i, s) {
			return Result{}, fmt.Errorf("%s item %d: %w: %d", in.ID, i, ErrInvalidScore, s)
		}
	}

	res := Result{InstrumentID: in.ID, Name: in.Name}
	if !in.HasSubscales() {
		for _, s := range responses {
			res.Total += s
		}
		label, ok := instrument.Category(in.Ranges, res.Total)
		if !ok {
			return Result{}, fmt.Errorf("%s total %d: %w", in.ID, res.Total, ErrScoreOutOfRange)
		}
		res.Category = label
		res.Recommendation = in.Recommendations[label]
		return res, nil
	}

	res.Subscales = make([]SubscaleScore, 0, len(in.Subscales))
	for _, sub := range in.Subscales {
		sum := 0
		for _, i := range sub.Items {
			sum += responses[i]
		}
		score := sum * sub.Multiplier
		label, ok := instrument.Category(sub.Ranges, score)
		if !ok {
			return Result{}, fmt.Errorf("%s %s score %d: %w", in.ID, sub.Name, score, ErrScoreOutOfRange)
		}
		res.Total += score
		res.Subscales = append(res.Subscales, SubscaleScore{
			Name:           sub.Name,
			Score:          score,
			Category:       label,
			Recommendation: sub.Recommendations[label],
		})
	}
	return res, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
