package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mindtriage/internal/core"
	"mindtriage/internal/instrument"
	"mindtriage/internal/llm"
	"mindtriage/internal/resolver"
	"mindtriage/pkg"
)

type reply struct {
	text string
	err  error
}

// fakeModel answers each prompt kind from its own script and records the
// requests it saw.
type fakeModel struct {
	mu       sync.Mutex
	screen   []reply
	followUp []reply
	report   []reply
	calls    map[string]int
	seen     []llm.Request
}

func (f *fakeModel) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.seen = append(f.seen, req)
	var kind string
	var script []reply
	switch req.Messages[0].Content {
	case core.ScreeningPrompt:
		kind, script = "screen", f.screen
	case core.FollowUpPrompt:
		kind, script = "follow_up", f.followUp
	case core.ReportPrompt:
		kind, script = "report", f.report
	}
	i := f.calls[kind]
	f.calls[kind]++
	if i >= len(script) {
		return "", errors.New("no scripted reply for " + kind)
	}
	return script[i].text, script[i].err
}

func (f *fakeModel) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

type memRecorder struct {
	mu   sync.Mutex
	recs []Record
}

func (m *memRecorder) RecordReport(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func testEngine(client llm.Client) Engine {
	reg := instrument.MustLoadRegistry()
	opts := core.DefaultOptions()
	opts.Retry = llm.RetryPolicy{MaxRetries: 2, Delay: time.Millisecond}
	return Engine{
		Dialogue: core.NewOrchestrator(client, reg, nil, opts),
		Registry: reg,
		Resolver: resolver.FromRegistry(reg),
	}
}

func complete(conds ...string) string {
	q := make([]string, len(conds))
	for i, c := range conds {
		q[i] = `"` + c + `"`
	}
	return `Thanks. {"screening_complete": true, "possible_conditions": [` + strings.Join(q, ", ") + `], "notes": "test"}`
}

func answerAll(t *testing.T, s *Session, option int) {
	t.Helper()
	item, ok := s.ActiveItem()
	if !ok {
		t.Fatalf("no active item in phase %s", s.Phase())
	}
	id := item.InstrumentID
	for n := item.Number; n <= item.Count; n++ {
		if err := s.SubmitAnswer(context.Background(), option); err != nil {
			t.Fatalf("%s answer %d: %v", id, n, err)
		}
	}
}

func lastMessage(s *Session) pkg.Message {
	tr := s.Transcript()
	return tr[len(tr)-1]
}

func TestNewSessionWelcomes(t *testing.T) {
	s := New("s1", testEngine(&fakeModel{}), Options{})
	if s.Phase() != pkg.PhaseScreening {
		t.Fatalf("phase: want=screening got=%s", s.Phase())
	}
	if n := len(s.Transcript()); n != 2 {
		t.Fatalf("transcript: want=2 welcome messages got=%d", n)
	}
	if _, ok := s.ActiveItem(); ok {
		t.Fatalf("no item should be active during screening")
	}
}

func TestScreeningContinuation(t *testing.T) {
	model := &fakeModel{screen: []reply{{text: "How long has this been going on?"}}}
	s := New("s1", testEngine(model), Options{})
	if err := s.SubmitMessage(context.Background(), "  I feel low  "); err != nil {
		t.Fatalf("SubmitMessage: %v", err)
	}
	if s.Phase() != pkg.PhaseScreening {
		t.Fatalf("phase: want=screening got=%s", s.Phase())
	}
	if got := lastMessage(s).Content; got != "How long has this been going on?" {
		t.Fatalf("last message: got=%q", got)
	}
	msgs := model.seen[0].Messages
	if last := msgs[len(msgs)-1]; last.Role != llm.RoleUser || last.Content != "I feel low" {
		t.Fatalf("input turn: got=%+v", last)
	}
	for _, m := range msgs[1 : len(msgs)-1] {
		if m.Content == "I feel low" {
			t.Fatalf("input must not be duplicated in history")
		}
	}
	if err := s.SubmitMessage(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("blank: want ErrEmptyMessage got=%v", err)
	}
}

func TestScreeningQueuesInstrumentsInConditionOrder(t *testing.T) {
	model := &fakeModel{screen: []reply{{text: complete("depression", "anxiety")}}}
	s := New("s1", testEngine(model), Options{})
	if err := s.SubmitMessage(context.Background(), "I can't sleep and I worry"); err != nil {
		t.Fatalf("SubmitMessage: %v", err)
	}
	v := s.View()
	if v.Phase != pkg.PhaseAssessment {
		t.Fatalf("phase: want=assessment got=%s", v.Phase)
	}
	if v.Item == nil || v.Item.InstrumentID != "PHQ-9" || v.Item.Number != 1 || v.Item.Count != 9 {
		t.Fatalf("active item: got=%+v", v.Item)
	}
	if len(v.Pending) != 1 || v.Pending[0] != "GAD-7" {
		t.Fatalf("pending: want=[GAD-7] got=%v", v.Pending)
	}
	if len(v.Item.Options) != 4 || v.Item.Options[0] != "Not at all" {
		t.Fatalf("options: got=%v", v.Item.Options)
	}
}

func TestFullFlowUserTriggeredReport(t *testing.T) {
	model := &fakeModel{
		screen:   []reply{{text: complete("depression", "anxiety")}},
		report:   []reply{{text: "# Mental Health Assessment Report"}},
		followUp: []reply{{text: "Your PHQ-9 score was 0."}},
	}
	rec := &memRecorder{}
	s := New("s1", testEngine(model), Options{Recorder: rec})
	ctx := context.Background()
	if err := s.SubmitMessage(ctx, "hello"); err != nil {
		t.Fatalf("SubmitMessage: %v", err)
	}

	answerAll(t, s, 0)
	if item, _ := s.ActiveItem(); item.InstrumentID != "GAD-7" || item.Number != 1 {
		t.Fatalf("after PHQ-9: want GAD-7 item 1 got=%+v", item)
	}
	results := s.Results()
	if len(results) != 1 || results[0].Total != 0 || results[0].Category != "None-minimal depression" {
		t.Fatalf("PHQ-9 result: got=%+v", results)
	}

	answerAll(t, s, 3)
	if s.Phase() != pkg.PhaseAwaitingReport {
		t.Fatalf("phase: want=awaiting_report got=%s", s.Phase())
	}
	if err := s.SubmitMessage(ctx, "what now?"); err != nil {
		t.Fatalf("SubmitMessage while awaiting: %v", err)
	}
	if lastMessage(s).Content != awaitingGuidance {
		t.Fatalf("awaiting message: got=%q", lastMessage(s).Content)
	}

	if err := s.TriggerReport(ctx); err != nil {
		t.Fatalf("TriggerReport: %v", err)
	}
	if s.Phase() != pkg.PhaseFollowUp {
		t.Fatalf("phase: want=follow_up got=%s", s.Phase())
	}
	text, generated := s.Report()
	if !generated || text != "# Mental Health Assessment Report" {
		t.Fatalf("report: got=%q generated=%v", text, generated)
	}
	if len(rec.recs) != 1 || rec.recs[0].Fallback || len(rec.recs[0].Results) != 2 {
		t.Fatalf("recorder: got=%+v", rec.recs)
	}

	// questionnaire turns stay out of the report context
	for _, req := range model.seen {
		if req.Messages[0].Content != core.ReportPrompt {
			continue
		}
		for _, m := range req.Messages {
			if strings.HasPrefix(m.Content, "My answer:") || strings.HasPrefix(m.Content, "Question ") {
				t.Fatalf("report prompt contains questionnaire turn %q", m.Content)
			}
		}
	}

	if err := s.SubmitMessage(ctx, "what does it mean?"); err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if lastMessage(s).Content != "Your PHQ-9 score was 0." || s.Phase() != pkg.PhaseFollowUp {
		t.Fatalf("follow-up reply: got=%q phase=%s", lastMessage(s).Content, s.Phase())
	}
}

func TestAssessmentTranscriptEntries(t *testing.T) {
	model := &fakeModel{screen: []reply{{text: complete("depression")}}}
	s := New("s1", testEngine(model), Options{})
	_ = s.SubmitMessage(context.Background(), "hi")
	before := len(s.Transcript())
	if err := s.SubmitAnswer(context.Background(), 2); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	tr := s.Transcript()[before:]
	if len(tr) != 2 {
		t.Fatalf("entries: want=2 got=%d", len(tr))
	}
	if tr[0].Kind != pkg.KindItem || tr[0].Content != "Question 1: Little interest or pleasure in doing things" {
		t.Fatalf("question entry: got=%+v", tr[0])
	}
	if tr[1].Role != pkg.RoleUser || tr[1].Kind != pkg.KindAnswer || tr[1].Content != "My answer: More than half the days" {
		t.Fatalf("answer entry: got=%+v", tr[1])
	}
}

func TestFreeTextDuringAssessmentIsNotSentToModel(t *testing.T) {
	model := &fakeModel{screen: []reply{{text: complete("stress")}}}
	s := New("s1", testEngine(model), Options{})
	_ = s.SubmitMessage(context.Background(), "hi")
	if err := s.SubmitMessage(context.Background(), "can I skip this?"); err != nil {
		t.Fatalf("SubmitMessage: %v", err)
	}
	if lastMessage(s).Content != assessmentGuidance {
		t.Fatalf("want guidance got=%q", lastMessage(s).Content)
	}
	if model.count("screen") != 1 || len(model.seen) != 1 {
		t.Fatalf("model calls: want=1 got=%d", len(model.seen))
	}
	if item, _ := s.ActiveItem(); item.Number != 1 {
		t.Fatalf("cursor moved: got item %d", item.Number)
	}
}

func TestPhaseGuards(t *testing.T) {
	model := &fakeModel{screen: []reply{{text: complete("anxiety")}}}
	s := New("s1", testEngine(model), Options{})
	ctx := context.Background()
	if err := s.SubmitAnswer(ctx, 0); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("answer in screening: want ErrWrongPhase got=%v", err)
	}
	if err := s.TriggerReport(ctx); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("report in screening: want ErrWrongPhase got=%v", err)
	}
	_ = s.SubmitMessage(ctx, "hi")
	for _, bad := range []int{-1, 4} {
		if err := s.SubmitAnswer(ctx, bad); !errors.Is(err, ErrInvalidOption) {
			t.Fatalf("option %d: want ErrInvalidOption got=%v", bad, err)
		}
	}
	if err := s.TriggerReport(ctx); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("report in assessment: want ErrWrongPhase got=%v", err)
	}
}

func TestNormalOutcomeGoesStraightToReport(t *testing.T) {
	model := &fakeModel{
		screen: []reply{{text: complete("normal")}},
		report: []reply{{text: "all good"}},
	}
	s := New("s1", testEngine(model), Options{})
	if err := s.SubmitMessage(context.Background(), "I'm fine"); err != nil {
		t.Fatalf("SubmitMessage: %v", err)
	}
	if s.Phase() != pkg.PhaseFollowUp {
		t.Fatalf("phase: want=follow_up got=%s", s.Phase())
	}
	if len(s.Results()) != 0 {
		t.Fatalf("no questionnaire should have been scored")
	}
	if text, ok := s.Report(); !ok || text != "all good" {
		t.Fatalf("report: got=%q ok=%v", text, ok)
	}
}

func TestNormalWithConditionStillAssesses(t *testing.T) {
	model := &fakeModel{screen: []reply{{text: complete("normal", "anxiety")}}}
	s := New("s1", testEngine(model), Options{})
	_ = s.SubmitMessage(context.Background(), "hi")
	if item, ok := s.ActiveItem(); !ok || item.InstrumentID != "GAD-7" {
		t.Fatalf("want GAD-7 active got=%+v ok=%v", item, ok)
	}
}

func TestUnmatchedConditionsAdvise(t *testing.T) {
	model := &fakeModel{screen: []reply{{text: complete("insomnia")}}}
	s := New("s1", testEngine(model), Options{})
	_ = s.SubmitMessage(context.Background(), "hi")
	if s.Phase() != pkg.PhaseAwaitingReport {
		t.Fatalf("phase: want=awaiting_report got=%s", s.Phase())
	}
	found := false
	for _, m := range s.Transcript() {
		if m.Content == unmatchedAdvisory {
			found = true
		}
	}
	if !found {
		t.Fatalf("advisory message missing")
	}
}

func TestTransientErrorKeepsPhase(t *testing.T) {
	model := &fakeModel{screen: []reply{{err: errors.New("connection reset")}, {text: "Tell me more."}}}
	s := New("s1", testEngine(model), Options{})
	if err := s.SubmitMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("SubmitMessage: want nil got=%v", err)
	}
	last := lastMessage(s)
	if last.Kind != pkg.KindError || !strings.Contains(last.Content, "connection reset") {
		t.Fatalf("apology: got=%+v", last)
	}
	if s.Phase() != pkg.PhaseScreening {
		t.Fatalf("phase: want=screening got=%s", s.Phase())
	}
	if err := s.SubmitMessage(context.Background(), "hi again"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if lastMessage(s).Content != "Tell me more." {
		t.Fatalf("retry reply: got=%q", lastMessage(s).Content)
	}
}

func TestAuthenticationHaltsUntilRestart(t *testing.T) {
	model := &fakeModel{screen: []reply{
		{err: &llm.AuthenticationError{Err: errors.New("401 invalid token")}},
		{text: "Welcome back."},
	}}
	s := New("s1", testEngine(model), Options{})
	err := s.SubmitMessage(context.Background(), "hi")
	if !errors.Is(err, ErrHalted) || !llm.IsAuthentication(err) {
		t.Fatalf("want ErrHalted wrapping AuthenticationError got=%v", err)
	}
	if err := s.SubmitMessage(context.Background(), "hello?"); !errors.Is(err, ErrHalted) {
		t.Fatalf("after halt: want ErrHalted got=%v", err)
	}
	if !s.View().Halted {
		t.Fatalf("view should report halted")
	}
	s.Restart()
	if err := s.SubmitMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("after restart: %v", err)
	}
}

func TestReportFailureFallsBack(t *testing.T) {
	boom := &llm.TransientError{Err: errors.New("upstream timeout")}
	model := &fakeModel{
		screen: []reply{{text: complete("depression")}},
		report: []reply{{err: boom}, {err: boom}, {err: boom}},
	}
	rec := &memRecorder{}
	s := New("s1", testEngine(model), Options{AutoReport: true, Recorder: rec})
	_ = s.SubmitMessage(context.Background(), "hi")
	answerAll(t, s, 1)

	if s.Phase() != pkg.PhaseFollowUp {
		t.Fatalf("phase: want=follow_up got=%s", s.Phase())
	}
	if model.count("report") != 3 {
		t.Fatalf("report attempts: want=3 got=%d", model.count("report"))
	}
	text, generated := s.Report()
	if generated {
		t.Fatalf("fallback must not count as generated")
	}
	if !strings.Contains(text, "Score: 9 (Mild depression)") || !strings.Contains(text, "could not be generated") {
		t.Fatalf("fallback report: got=%q", text)
	}
	if len(rec.recs) != 1 || !rec.recs[0].Fallback {
		t.Fatalf("recorder: got=%+v", rec.recs)
	}
}

func TestRestartResetsState(t *testing.T) {
	model := &fakeModel{screen: []reply{{text: complete("depression")}}}
	s := New("s1", testEngine(model), Options{})
	_ = s.SubmitMessage(context.Background(), "hi")
	_ = s.SubmitAnswer(context.Background(), 1)
	s.Restart()
	v := s.View()
	if v.Phase != pkg.PhaseScreening || v.Item != nil || len(v.Results) != 0 || len(v.Transcript) != 2 || v.Conditions != nil {
		t.Fatalf("state not reset: %+v", v)
	}
}

// blockingModel holds every call until released.
type blockingModel struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingModel) Complete(ctx context.Context, _ llm.Request) (string, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return "late reply", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestBusyAndRestartDiscardsInFlight(t *testing.T) {
	model := &blockingModel{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := New("s1", testEngine(model), Options{})

	done := make(chan error, 1)
	go func() { done <- s.SubmitMessage(context.Background(), "first") }()
	<-model.started

	if err := s.SubmitMessage(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("concurrent message: want ErrBusy got=%v", err)
	}
	if err := s.SubmitAnswer(context.Background(), 0); !errors.Is(err, ErrBusy) {
		t.Fatalf("concurrent answer: want ErrBusy got=%v", err)
	}
	if !s.View().Busy {
		t.Fatalf("view should report busy")
	}

	s.Restart()
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("in-flight call: want ErrSuperseded got=%v", err)
	}
	tr := s.Transcript()
	if len(tr) != 2 {
		t.Fatalf("stale completion leaked into transcript: %+v", tr)
	}
	if s.View().Busy {
		t.Fatalf("restart should clear busy")
	}
}

func TestResultStoredOnceWhenRequeued(t *testing.T) {
	model := &fakeModel{screen: []reply{{text: complete("depression")}}}
	s := New("s1", testEngine(model), Options{})
	_ = s.SubmitMessage(context.Background(), "hi")
	answerAll(t, s, 0)

	// force the finished instrument back in as if it had been re-queued
	s.mu.Lock()
	if _, err := s.activate("PHQ-9"); err != nil {
		s.mu.Unlock()
		t.Fatalf("activate: %v", err)
	}
	s.mu.Unlock()
	answerAll(t, s, 3)

	results := s.Results()
	if len(results) != 1 || results[0].Total != 0 {
		t.Fatalf("results: want one PHQ-9 total 0 got=%+v", results)
	}
	n := 0
	for _, m := range s.Transcript() {
		if m.Kind == pkg.KindResult {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("result messages: want=1 got=%d", n)
	}
}
