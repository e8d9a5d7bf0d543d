package core

import (
	"encoding/json"
	"strings"
)

// Signal is the structured marker the screening model emits when it has
// gathered enough information.
type Signal struct {
	ScreeningComplete  bool     `json:"screening_complete"`
	PossibleConditions []string `json:"possible_conditions"`
	Notes              string   `json:"notes"`
}

type rawSignal struct {
	ScreeningComplete  *bool    `json:"screening_complete"`
	PossibleConditions []string `json:"possible_conditions"`
	Notes              string   `json:"notes"`
}

// ExtractSignal finds the first balanced {...} span in text that decodes as
// a Signal. Prose before and after the object is ignored. The second return
// value is false when no such object exists; that is not an error.
func ExtractSignal(text string) (Signal, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := matchBrace(text, start); ok {
			var raw rawSignal
			if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err == nil && raw.ScreeningComplete != nil {
				return Signal{
					ScreeningComplete:  *raw.ScreeningComplete,
					PossibleConditions: raw.PossibleConditions,
					Notes:              raw.Notes,
				}, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return Signal{}, false
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside JSON strings.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
