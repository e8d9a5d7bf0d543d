package session

import (
	"strings"

	"mindtriage/internal/scoring"
	"mindtriage/pkg"
)

// Item is the questionnaire item currently awaiting an answer.
type Item struct {
	InstrumentID   string   `json:"instrument_id"`
	InstrumentName string   `json:"instrument_name"`
	Stem           string   `json:"stem,omitempty"`
	Number         int      `json:"number"`
	Count          int      `json:"count"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
}

// View is a read-only snapshot for rendering.
type View struct {
	ID              string           `json:"id"`
	Phase           pkg.Phase        `json:"phase"`
	Busy            bool             `json:"busy"`
	Halted          bool             `json:"halted"`
	ReportGenerated bool             `json:"report_generated"`
	Conditions      []string         `json:"conditions,omitempty"`
	Item            *Item            `json:"active_item,omitempty"`
	Pending         []string         `json:"pending,omitempty"`
	Results         []scoring.Result `json:"results"`
	Transcript      []pkg.Message    `json:"transcript"`
}

// Phase returns the current phase.
func (s *Session) Phase() pkg.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Phase
}

// ActiveItem returns the item awaiting an answer, if any.
func (s *Session) ActiveItem() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeItem()
}

func (s *Session) activeItem() (Item, bool) {
	if s.st.Phase != pkg.PhaseAssessment || s.st.Active == "" {
		return Item{}, false
	}
	in, err := s.eng.Registry.Get(s.st.Active)
	if err != nil || s.st.Cursor >= len(in.Items) {
		return Item{}, false
	}
	return Item{
		InstrumentID:   in.ID,
		InstrumentName: in.Name,
		Stem:           in.Stem,
		Number:         s.st.Cursor + 1,
		Count:          len(in.Items),
		Question:       in.Items[s.st.Cursor],
		Options:        append([]string(nil), in.Options...),
	}, true
}

// Transcript returns a copy of every message so far.
func (s *Session) Transcript() []pkg.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pkg.Message(nil), s.st.Transcript...)
}

// Results returns the completed results in completion order.
func (s *Session) Results() []scoring.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedResults()
}

// Report returns the report text and whether the language model produced
// it. The text is empty until a report exists.
func (s *Session) Report() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Report, s.st.ReportGenerated
}

// View snapshots the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:              s.id,
		Phase:           s.st.Phase,
		Busy:            s.busy,
		Halted:          s.st.Halted,
		ReportGenerated: s.st.ReportGenerated,
		Conditions:      s.conditions(),
		Pending:         append([]string(nil), s.st.Pending...),
		Results:         s.orderedResults(),
		Transcript:      append([]pkg.Message(nil), s.st.Transcript...),
	}
	if item, ok := s.activeItem(); ok {
		v.Item = &item
	}
	return v
}

func trimMessage(text string) string {
	return strings.TrimSpace(text)
}
