// Package core builds the prompts for the screening, follow-up and report
// phases, calls the language model and interprets what comes back.
package core

import (
	"context"
	"strings"
	"time"

	"mindtriage/internal/instrument"
	"mindtriage/internal/llm"
	"mindtriage/internal/platform/logger"
)

// Sampling holds the generation parameters for one kind of call.
type Sampling struct {
	Temperature float32
	MaxTokens   int
}

// Options tunes the orchestrator. Zero fields take the defaults.
type Options struct {
	Chat   Sampling
	Report Sampling
	Retry  llm.RetryPolicy
	Now    func() time.Time
}

// DefaultOptions returns the stock sampling and retry settings.
func DefaultOptions() Options {
	return Options{
		Chat:   Sampling{Temperature: 0.7, MaxTokens: 1000},
		Report: Sampling{Temperature: 0.5, MaxTokens: 2000},
		Retry:  llm.RetryPolicy{MaxRetries: 2, Delay: 2 * time.Second, AttemptTimeout: 60 * time.Second},
		Now:    time.Now,
	}
}

// Orchestrator talks to the language model on behalf of a session. It holds
// no per-session state and is safe for concurrent use.
type Orchestrator struct {
	llm    llm.Client
	reg    *instrument.Registry
	log    *logger.Logger
	chat   Sampling
	report Sampling
	retry  llm.RetryPolicy
	now    func() time.Time
}

// NewOrchestrator wires the collaborator, the instrument registry used to
// describe results and a logger.
func NewOrchestrator(client llm.Client, reg *instrument.Registry, log *logger.Logger, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.Chat.MaxTokens == 0 {
		opts.Chat = def.Chat
	}
	if opts.Report.MaxTokens == 0 {
		opts.Report = def.Report
	}
	if opts.Retry == (llm.RetryPolicy{}) {
		opts.Retry = def.Retry
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		llm:    client,
		reg:    reg,
		log:    log,
		chat:   opts.Chat,
		report: opts.Report,
		retry:  opts.Retry,
		now:    opts.Now,
	}
}

// Registry returns the instrument registry results are described against.
func (o *Orchestrator) Registry() *instrument.Registry { return o.reg }

// Outcome is the parsed end of screening.
type Outcome struct {
	Conditions []string `json:"conditions"`
	Notes      string   `json:"notes,omitempty"`
}

// ScreenResult is either continuation text (Outcome nil) or a completed
// screening.
type ScreenResult struct {
	Reply   string
	Outcome *Outcome
}

// Screen sends the next intake turn. history is the narrative conversation
// so far, without input.
func (o *Orchestrator) Screen(ctx context.Context, history []llm.Message, input string) (ScreenResult, error) {
	reply, err := o.converse(ctx, ScreeningPrompt, history, input)
	if err != nil {
		return ScreenResult{}, err
	}
	sig, ok := ExtractSignal(reply)
	if !ok || !sig.ScreeningComplete {
		return ScreenResult{Reply: reply}, nil
	}
	return ScreenResult{Outcome: &Outcome{Conditions: cleanConditions(sig.PossibleConditions), Notes: sig.Notes}}, nil
}

// FollowUp answers a question after the report.
func (o *Orchestrator) FollowUp(ctx context.Context, history []llm.Message, input string) (string, error) {
	return o.converse(ctx, FollowUpPrompt, history, input)
}

func (o *Orchestrator) converse(ctx context.Context, system string, history []llm.Message, input string) (string, error) {
	out, err := o.llm.Complete(ctx, llm.Request{
		Messages:    buildPrompt(system, history, input),
		Temperature: o.chat.Temperature,
		MaxTokens:   o.chat.MaxTokens,
	})
	if err != nil {
		return "", llm.Classify(err)
	}
	return out, nil
}

func buildPrompt(system string, history []llm.Message, input string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range history {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: input})
}

func cleanConditions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
