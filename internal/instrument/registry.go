package instrument

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed instruments.yaml
var instrumentsYAML []byte

// ConditionRule maps a condition keyword to the instrument administered for
// it. Rules are matched in declaration order.
type ConditionRule struct {
	Keyword    string `yaml:"keyword"`
	Instrument string `yaml:"instrument"`
}

type document struct {
	Instruments []*Instrument   `yaml:"instruments"`
	Conditions  []ConditionRule `yaml:"conditions"`
}

// Registry is the read-only set of instrument definitions plus the condition
// table that selects among them. It is built once at startup.
type Registry struct {
	byID       map[string]*Instrument
	order      []string
	conditions []ConditionRule
}

// LoadRegistry parses the embedded instrument definitions.
func LoadRegistry() (*Registry, error) {
	return ParseRegistry(instrumentsYAML)
}

// MustLoadRegistry is LoadRegistry for program start-up and tests; the
// embedded data is validated at build time by the package tests.
func MustLoadRegistry() *Registry {
	r, err := LoadRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRegistry decodes and validates a YAML registry document.
func ParseRegistry(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}
	if len(doc.Instruments) == 0 {
		return nil, errors.New("decode instruments: no instruments defined")
	}
	r := &Registry{byID: make(map[string]*Instrument, len(doc.Instruments))}
	for _, in := range doc.Instruments {
		if _, dup := r.byID[in.ID]; dup {
			return nil, fmt.Errorf("instrument %q defined twice", in.ID)
		}
		in.reverse = make(map[int]bool, len(in.ReverseScored))
		for _, i := range in.ReverseScored {
			in.reverse[i] = true
		}
		if err := validate(in); err != nil {
			return nil, fmt.Errorf("instrument %q: %w", in.ID, err)
		}
		r.byID[in.ID] = in
		r.order = append(r.order, in.ID)
	}
	for _, c := range doc.Conditions {
		if c.Keyword == "" {
			return nil, errors.New("condition rule with empty keyword")
		}
		if _, ok := r.byID[c.Instrument]; !ok {
			return nil, fmt.Errorf("condition %q: %w: %q", c.Keyword, ErrUnknownInstrument, c.Instrument)
		}
	}
	r.conditions = doc.Conditions
	return r, nil
}

// Get returns the instrument with the given id.
func (r *Registry) Get(id string) (*Instrument, error) {
	in, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, id)
	}
	return in, nil
}

// IDs lists instrument ids in definition order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Conditions returns a copy of the condition keyword table.
func (r *Registry) Conditions() []ConditionRule {
	return append([]ConditionRule(nil), r.conditions...)
}

func validate(in *Instrument) error {
	switch {
	case in.ID == "":
		return errors.New("missing id")
	case len(in.Items) == 0:
		return errors.New("no items")
	case len(in.Options) == 0:
		return errors.New("no options")
	case len(in.Options) != len(in.Scores):
		return fmt.Errorf("%d options but %d scores", len(in.Options), len(in.Scores))
	}
	if in.Binary {
		if len(in.Scores) != 2 {
			return errors.New("binary instrument needs exactly two options")
		}
		for _, s := range in.Scores {
			if s != 0 && s != 1 {
				return fmt.Errorf("binary instrument score %d not in {0,1}", s)
			}
		}
	}
	for _, i := range in.ReverseScored {
		if i < 0 || i >= len(in.Items) {
			return fmt.Errorf("reverse-scored item %d out of range", i)
		}
	}
	if !in.HasSubscales() {
		lo, hi := in.TotalBounds()
		return validateRanges(in.Ranges, lo, hi)
	}
	if len(in.Ranges) > 0 {
		return errors.New("subscale instrument must not define a total range table")
	}
	seen := make(map[int]string)
	for _, sub := range in.Subscales {
		if sub.Name == "" {
			return errors.New("subscale without name")
		}
		if sub.Multiplier <= 0 {
			return fmt.Errorf("subscale %q: multiplier must be positive", sub.Name)
		}
		for _, i := range sub.Items {
			if i < 0 || i >= len(in.Items) {
				return fmt.Errorf("subscale %q: item %d out of range", sub.Name, i)
			}
			if other, dup := seen[i]; dup {
				return fmt.Errorf("item %d shared by subscales %q and %q", i, other, sub.Name)
			}
			seen[i] = sub.Name
		}
		lo, hi := in.SubscaleBounds(sub)
		if err := validateRanges(sub.Ranges, lo, hi); err != nil {
			return fmt.Errorf("subscale %q: %w", sub.Name, err)
		}
	}
	return nil
}

// validateRanges checks that ranges are ordered, contiguous and cover
// [lo, hi].
func validateRanges(ranges []Range, lo, hi int) error {
	if len(ranges) == 0 {
		return errors.New("empty range table")
	}
	if !sort.SliceIsSorted(ranges, func(i, j int) bool { return ranges[i].Min < ranges[j].Min }) {
		return errors.New("range table not ordered")
	}
	for i, r := range ranges {
		if r.Label == "" {
			return fmt.Errorf("range %d-%d has no label", r.Min, r.Max)
		}
		if r.Min > r.Max {
			return fmt.Errorf("range %d-%d inverted", r.Min, r.Max)
		}
		if i > 0 && r.Min != ranges[i-1].Max+1 {
			return fmt.Errorf("gap or overlap between %d and %d", ranges[i-1].Max, r.Min)
		}
	}
	if ranges[0].Min > lo || ranges[len(ranges)-1].Max < hi {
		return fmt.Errorf("ranges %d-%d do not cover attainable %d-%d", ranges[0].Min, ranges[len(ranges)-1].Max, lo, hi)
	}
	return nil
}
