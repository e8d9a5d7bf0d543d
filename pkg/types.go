package pkg

import "time"

// Phase is where a session is in the triage flow.
type Phase string

const (
	PhaseScreening      Phase = "screening"
	PhaseAssessment     Phase = "assessment"
	PhaseAwaitingReport Phase = "awaiting_report"
	PhaseReport         Phase = "report"
	PhaseFollowUp       Phase = "follow_up"
)

// MessageRole describes who authored a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessageKind tags transcript entries so structured questionnaire turns can
// be kept out of the conversational context sent to the language model.
type MessageKind string

const (
	KindChat   MessageKind = "chat"
	KindNotice MessageKind = "notice"
	KindItem   MessageKind = "assessment_item"
	KindAnswer MessageKind = "assessment_answer"
	KindResult MessageKind = "assessment_result"
	KindReport MessageKind = "report"
	KindError  MessageKind = "error"
)

// Narrative reports whether the message belongs in the conversation history
// given to the language model.
func (k MessageKind) Narrative() bool {
	switch k {
	case KindItem, KindAnswer, KindError:
		return false
	}
	return true
}

// Message is one transcript entry.
type Message struct {
	Role      MessageRole `json:"role"`
	Kind      MessageKind `json:"kind"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// ChatRequest carries a free-text message from the user.
type ChatRequest struct {
	Content string `json:"content"`
}

// AnswerRequest selects a response option for the current questionnaire
// item by index.
type AnswerRequest struct {
	Option *int `json:"option"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
