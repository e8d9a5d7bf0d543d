// Package resolver turns the free-text condition labels produced by
// screening into an ordered queue of instruments still to administer.
package resolver

import (
	"strings"

	"mindtriage/internal/instrument"
)

// normalMarkers are labels the screening model uses to say nothing was
// found. They never map to an instrument.
var normalMarkers = []string{"normal", "none", "no issue", "no issues", "healthy"}

// Resolver matches condition labels against a fixed keyword table.
type Resolver struct {
	rules []instrument.ConditionRule
}

// New builds a resolver over rules. Rules are copied and lower-cased; their
// order decides the queue order when one label matches several keywords.
func New(rules []instrument.ConditionRule) *Resolver {
	r := &Resolver{rules: make([]instrument.ConditionRule, 0, len(rules))}
	for _, rule := range rules {
		kw := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if kw == "" {
			continue
		}
		r.rules = append(r.rules, instrument.ConditionRule{Keyword: kw, Instrument: rule.Instrument})
	}
	return r
}

// FromRegistry builds a resolver over the registry's condition table.
func FromRegistry(reg *instrument.Registry) *Resolver {
	return New(reg.Conditions())
}

// Resolve returns the instruments matching conditions, in first-seen order,
// without duplicates and without anything in scored or equal to excluding.
// Labels matching no keyword are skipped.
func (r *Resolver) Resolve(conditions []string, scored map[string]bool, excluding string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range conditions {
		label := strings.ToLower(strings.TrimSpace(c))
		if label == "" {
			continue
		}
		for _, rule := range r.rules {
			id := rule.Instrument
			if !strings.Contains(label, rule.Keyword) {
				continue
			}
			if seen[id] || scored[id] || id == excluding {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// IsNormal reports whether label is a no-issue marker.
func IsNormal(label string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, m := range normalMarkers {
		if l == m {
			return true
		}
	}
	return false
}

// OnlyNormal reports whether conditions carry a no-issue marker and nothing
// else. Blank labels are ignored.
func OnlyNormal(conditions []string) bool {
	normal := false
	for _, c := range conditions {
		switch {
		case strings.TrimSpace(c) == "":
		case IsNormal(c):
			normal = true
		default:
			return false
		}
	}
	return normal
}

// Clinical drops no-issue markers and blank labels, keeping order.
func Clinical(conditions []string) []string {
	var out []string
	for _, c := range conditions {
		if strings.TrimSpace(c) == "" || IsNormal(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
