// Package session is the per-conversation state machine: screening, then
// questionnaires, then the report, then open follow-up. One Session owns
// one State; actions are processed one at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mindtriage/internal/core"
	"mindtriage/internal/instrument"
	"mindtriage/internal/llm"
	"mindtriage/internal/platform/logger"
	"mindtriage/internal/resolver"
	"mindtriage/internal/scoring"
	"mindtriage/pkg"
)

var (
	// ErrBusy means a language-model call for this session is in flight.
	ErrBusy = errors.New("session is busy")
	// ErrWrongPhase means the action is not valid in the current phase.
	ErrWrongPhase = errors.New("action not allowed in current phase")
	// ErrInvalidOption means the answer index is not one of the item's options.
	ErrInvalidOption = errors.New("invalid answer option")
	// ErrEmptyMessage is returned for blank user messages.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrHalted means the language model rejected our credentials. Only
	// Restart clears it.
	ErrHalted = errors.New("session halted")
	// ErrSuperseded means a restart discarded the action while it waited on
	// the language model.
	ErrSuperseded = errors.New("session restarted while action was in progress")
)

// Dialogue is the language-model side of a session.
type Dialogue interface {
	Screen(ctx context.Context, history []llm.Message, input string) (core.ScreenResult, error)
	FollowUp(ctx context.Context, history []llm.Message, input string) (string, error)
	ComposeReport(ctx context.Context, in core.ReportInput) (string, error)
	Fallback(in core.ReportInput) string
}

// Recorder receives every report once it has been added to the transcript.
type Recorder interface {
	RecordReport(ctx context.Context, rec Record) error
}

// Record is what a Recorder is given.
type Record struct {
	SessionID  string
	Conditions []string
	Notes      string
	Results    []scoring.Result
	Report     string
	Fallback   bool
	CreatedAt  time.Time
}

// Engine bundles the shared, read-only collaborators of every session.
type Engine struct {
	Dialogue Dialogue
	Registry *instrument.Registry
	Resolver *resolver.Resolver
}

// Options tunes a session.
type Options struct {
	// AutoReport composes the report as soon as the last questionnaire is
	// done instead of waiting for TriggerReport.
	AutoReport bool
	Recorder   Recorder
	Log        *logger.Logger
	Now        func() time.Time
}

// State is the mutable aggregate of one conversation.
type State struct {
	Phase           pkg.Phase
	Transcript      []pkg.Message
	Outcome         *core.Outcome
	Results         map[string]scoring.Result
	Completed       []string
	Active          string
	Cursor          int
	Responses       []int
	Pending         []string
	ReportGenerated bool
	Report          string
	Halted          bool
}

// Session is the handle to one conversation.
type Session struct {
	id   string
	eng  Engine
	opts Options
	log  *logger.Logger

	mu     sync.Mutex
	st     State
	busy   bool
	gen    uint64
	cancel context.CancelFunc
}

// New starts a session in the screening phase with the welcome messages.
func New(id string, eng Engine, opts Options) *Session {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		id:   id,
		eng:  eng,
		opts: opts,
		log:  opts.Log.With("session_id", id),
	}
	s.st = s.initialState()
	return s
}

func (s *Session) initialState() State {
	st := State{Phase: pkg.PhaseScreening, Results: make(map[string]scoring.Result)}
	now := s.opts.Now()
	st.Transcript = append(st.Transcript,
		pkg.Message{Role: pkg.RoleAssistant, Kind: pkg.KindNotice, Content: welcomeMessage, CreatedAt: now},
		pkg.Message{Role: pkg.RoleAssistant, Kind: pkg.KindChat, Content: greetingMessage, CreatedAt: now},
	)
	return st
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SubmitMessage handles a free-text message. During screening and follow-up
// it goes to the language model; in other phases it is answered with
// guidance. Transient model failures become an apology in the transcript and
// return nil.
func (s *Session) SubmitMessage(ctx context.Context, text string) error {
	text = trimMessage(text)
	if text == "" {
		return ErrEmptyMessage
	}
	rec, err := s.locked(func() (*Record, error) {
		if err := s.ready(); err != nil {
			return nil, err
		}
		history := s.narrative()
		s.add(pkg.RoleUser, pkg.KindChat, text)
		switch s.st.Phase {
		case pkg.PhaseScreening:
			return s.screen(ctx, history, text)
		case pkg.PhaseFollowUp:
			return nil, s.followUp(ctx, history, text)
		case pkg.PhaseAssessment:
			s.say(pkg.KindNotice, assessmentGuidance)
		case pkg.PhaseAwaitingReport:
			s.say(pkg.KindNotice, awaitingGuidance)
		default:
			return nil, fmt.Errorf("%w: %s", ErrWrongPhase, s.st.Phase)
		}
		return nil, nil
	})
	s.record(ctx, rec)
	return err
}

// SubmitAnswer records the option chosen for the current item. Finishing an
// instrument scores it and moves on to the next one or to the report.
func (s *Session) SubmitAnswer(ctx context.Context, option int) error {
	rec, err := s.locked(func() (*Record, error) {
		if err := s.ready(); err != nil {
			return nil, err
		}
		if s.st.Phase != pkg.PhaseAssessment {
			return nil, fmt.Errorf("%w: answer during %s", ErrWrongPhase, s.st.Phase)
		}
		return s.answer(ctx, option)
	})
	s.record(ctx, rec)
	return err
}

// TriggerReport composes the report when the session is waiting for it.
func (s *Session) TriggerReport(ctx context.Context) error {
	rec, err := s.locked(func() (*Record, error) {
		if err := s.ready(); err != nil {
			return nil, err
		}
		if s.st.Phase != pkg.PhaseAwaitingReport {
			return nil, fmt.Errorf("%w: report requested during %s", ErrWrongPhase, s.st.Phase)
		}
		return s.runReport(ctx)
	})
	s.record(ctx, rec)
	return err
}

// Restart discards all state and starts over. An in-flight model call is
// cancelled and its result ignored.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.busy = false
	s.st = s.initialState()
	s.log.Info("session restarted")
}

func (s *Session) locked(fn func() (*Record, error)) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Session) ready() error {
	switch {
	case s.busy:
		return ErrBusy
	case s.st.Halted:
		return ErrHalted
	}
	return nil
}

// unlocked runs fn with the lock released and the session marked busy. It
// reports false when a restart happened meanwhile; the caller must then
// leave the state alone.
func (s *Session) unlocked(ctx context.Context, fn func(ctx context.Context)) bool {
	cctx, cancel := context.WithCancel(ctx)
	gen := s.gen
	s.busy = true
	s.cancel = cancel
	s.mu.Unlock()
	fn(cctx)
	s.mu.Lock()
	cancel()
	if gen != s.gen {
		return false
	}
	s.busy = false
	s.cancel = nil
	return true
}

func (s *Session) screen(ctx context.Context, history []llm.Message, text string) (*Record, error) {
	var res core.ScreenResult
	var err error
	if !s.unlocked(ctx, func(c context.Context) { res, err = s.eng.Dialogue.Screen(c, history, text) }) {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, s.callFailed(err)
	}
	if res.Outcome == nil {
		s.say(pkg.KindChat, res.Reply)
		return nil, nil
	}
	return s.applyOutcome(ctx, res.Outcome)
}

func (s *Session) followUp(ctx context.Context, history []llm.Message, text string) error {
	var reply string
	var err error
	if !s.unlocked(ctx, func(c context.Context) { reply, err = s.eng.Dialogue.FollowUp(c, history, text) }) {
		return ErrSuperseded
	}
	if err != nil {
		return s.callFailed(err)
	}
	s.say(pkg.KindChat, reply)
	return nil
}

// callFailed applies the error policy for conversational calls.
func (s *Session) callFailed(err error) error {
	if llm.IsAuthentication(err) {
		s.st.Halted = true
		s.say(pkg.KindError, authFailureMessage)
		s.log.Error("language model rejected credentials, halting session", "error", err.Error())
		return fmt.Errorf("%w: %w", ErrHalted, err)
	}
	s.say(pkg.KindError, apology(err))
	s.log.Warn("language model call failed", "phase", string(s.st.Phase), "error", err.Error())
	return nil
}

func (s *Session) applyOutcome(ctx context.Context, out *core.Outcome) (*Record, error) {
	s.st.Outcome = out
	s.say(pkg.KindNotice, screeningAck)
	s.log.Info("screening complete", "conditions", len(out.Conditions))

	clinical := resolver.Clinical(out.Conditions)
	if len(clinical) == 0 {
		s.say(pkg.KindNotice, normalMessage)
		return s.runReport(ctx)
	}
	queue := s.eng.Resolver.Resolve(clinical, s.scored(), "")
	if len(queue) == 0 {
		s.say(pkg.KindNotice, unmatchedAdvisory)
		return s.enterReport(ctx)
	}
	in, err := s.activate(queue[0])
	if err != nil {
		return nil, err
	}
	s.st.Pending = queue[1:]
	s.say(pkg.KindNotice, fmt.Sprintf(assessmentIntro, in.Name))
	return nil, nil
}

func (s *Session) activate(id string) (*instrument.Instrument, error) {
	in, err := s.eng.Registry.Get(id)
	if err != nil {
		s.log.Error("resolver returned an unregistered instrument", "instrument", id, "error", err.Error())
		return nil, err
	}
	s.st.Phase = pkg.PhaseAssessment
	s.st.Active = id
	s.st.Cursor = 0
	s.st.Responses = make([]int, 0, len(in.Items))
	return in, nil
}

func (s *Session) answer(ctx context.Context, option int) (*Record, error) {
	in, err := s.eng.Registry.Get(s.st.Active)
	if err != nil {
		return nil, err
	}
	if option < 0 || option >= len(in.Options) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidOption, option, len(in.Options))
	}
	score, err := in.ItemScore(s.st.Cursor, option)
	if err != nil {
		return nil, err
	}
	s.say(pkg.KindItem, questionLine(s.st.Cursor+1, in.Items[s.st.Cursor]))
	s.add(pkg.RoleUser, pkg.KindAnswer, answerLine(in.Options[option]))
	s.st.Responses = append(s.st.Responses, score)
	s.st.Cursor++
	if s.st.Cursor < len(in.Items) {
		return nil, nil
	}
	return s.finishInstrument(ctx, in)
}

func (s *Session) finishInstrument(ctx context.Context, in *instrument.Instrument) (*Record, error) {
	if _, done := s.st.Results[in.ID]; !done {
		res, err := scoring.Score(in, s.st.Responses)
		if err != nil {
			s.log.Error("scoring failed", "instrument", in.ID, "error", err.Error())
			return nil, err
		}
		s.st.Results[in.ID] = res
		s.st.Completed = append(s.st.Completed, in.ID)
		s.say(pkg.KindResult, resultMessage(res))
		s.log.Info("instrument scored", "instrument", in.ID, "total", res.Total)
	}
	s.st.Active = ""
	s.st.Cursor = 0
	s.st.Responses = nil

	queue := s.eng.Resolver.Resolve(s.clinical(), s.scored(), in.ID)
	if len(queue) > 0 {
		next, err := s.activate(queue[0])
		if err != nil {
			return nil, err
		}
		s.st.Pending = queue[1:]
		s.say(pkg.KindNotice, fmt.Sprintf(nextQuestionnaire, next.Name))
		return nil, nil
	}
	s.st.Pending = nil
	s.say(pkg.KindNotice, allQuestionnairesDone)
	return s.enterReport(ctx)
}

// enterReport moves to report composition, either right away or after the
// user asks for it.
func (s *Session) enterReport(ctx context.Context) (*Record, error) {
	if s.opts.AutoReport {
		return s.runReport(ctx)
	}
	s.st.Phase = pkg.PhaseAwaitingReport
	s.say(pkg.KindNotice, reportReady)
	return nil, nil
}

func (s *Session) runReport(ctx context.Context) (*Record, error) {
	s.st.Phase = pkg.PhaseReport
	s.say(pkg.KindNotice, generatingReport)
	in := core.ReportInput{
		History:    s.narrative(),
		Results:    s.orderedResults(),
		Conditions: s.conditions(),
		Date:       s.opts.Now(),
	}

	var text string
	var err error
	if !s.unlocked(ctx, func(c context.Context) { text, err = s.eng.Dialogue.ComposeReport(c, in) }) {
		return nil, ErrSuperseded
	}
	if err != nil && llm.IsAuthentication(err) {
		return nil, s.callFailed(err)
	}
	fallback := err != nil
	if fallback {
		s.log.Warn("using fallback report", "error", err.Error())
		text = s.eng.Dialogue.Fallback(in)
	}
	s.st.Report = text
	s.st.ReportGenerated = !fallback
	s.say(pkg.KindReport, text)
	s.st.Phase = pkg.PhaseFollowUp
	s.say(pkg.KindNotice, followUpInvitation)

	rec := &Record{
		SessionID:  s.id,
		Conditions: in.Conditions,
		Results:    in.Results,
		Report:     text,
		Fallback:   fallback,
		CreatedAt:  in.Date,
	}
	if s.st.Outcome != nil {
		rec.Notes = s.st.Outcome.Notes
	}
	return rec, nil
}

func (s *Session) record(ctx context.Context, rec *Record) {
	if rec == nil || s.opts.Recorder == nil {
		return
	}
	if err := s.opts.Recorder.RecordReport(context.WithoutCancel(ctx), *rec); err != nil {
		s.log.Warn("archiving report failed", "error", err.Error())
	}
}

func (s *Session) say(kind pkg.MessageKind, content string) {
	s.add(pkg.RoleAssistant, kind, content)
}

func (s *Session) add(role pkg.MessageRole, kind pkg.MessageKind, content string) {
	s.st.Transcript = append(s.st.Transcript, pkg.Message{
		Role:      role,
		Kind:      kind,
		Content:   content,
		CreatedAt: s.opts.Now(),
	})
}

// narrative is the conversation history for the language model, without
// questionnaire turns.
func (s *Session) narrative() []llm.Message {
	out := make([]llm.Message, 0, len(s.st.Transcript))
	for _, m := range s.st.Transcript {
		if !m.Kind.Narrative() {
			continue
		}
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (s *Session) scored() map[string]bool {
	out := make(map[string]bool, len(s.st.Results))
	for id := range s.st.Results {
		out[id] = true
	}
	return out
}

func (s *Session) conditions() []string {
	if s.st.Outcome == nil {
		return nil
	}
	return append([]string(nil), s.st.Outcome.Conditions...)
}

func (s *Session) clinical() []string {
	return resolver.Clinical(s.conditions())
}

func (s *Session) orderedResults() []scoring.Result {
	out := make([]scoring.Result, 0, len(s.st.Completed))
	for _, id := range s.st.Completed {
		out = append(out, s.st.Results[id].Clone())
	}
	return out
}
