package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mindtriage/internal/llm"
	"mindtriage/internal/scoring"
)

// DateLayout is how report dates are printed.
const DateLayout = "January 2, 2006"

// ReportInput is everything the report is composed from. Results are in
// completion order.
type ReportInput struct {
	History    []llm.Message
	Results    []scoring.Result
	Conditions []string
	Date       time.Time
}

// ComposeReport asks the model for the narrative report, retrying per the
// configured policy. Retry warnings are logged; the caller decides what to
// do once the policy gives up.
func (o *Orchestrator) ComposeReport(ctx context.Context, in ReportInput) (string, error) {
	if in.Date.IsZero() {
		in.Date = o.now()
	}
	digest := ResultsDigest(in.Results, o.describe, in.Conditions)
	input := fmt.Sprintf("Generate a comprehensive report based on our conversation and the following assessment results:\n%s\nInclude today's date (%s) in the report header.",
		digest, in.Date.Format(DateLayout))
	req := llm.Request{
		Messages:    buildPrompt(ReportPrompt, in.History, input),
		Temperature: o.report.Temperature,
		MaxTokens:   o.report.MaxTokens,
	}

	out, err := o.retry.Do(ctx, func(actx context.Context) (string, error) {
		text, err := o.llm.Complete(actx, req)
		if err != nil {
			return "", llm.Classify(err)
		}
		if strings.TrimSpace(text) == "" {
			return "", &llm.TransientError{Err: errors.New("empty report")}
		}
		return text, nil
	}, func(attempt int, err error, next time.Duration) {
		o.log.Warn("report generation attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", o.retry.Attempts(),
			"retry_in", next.String(),
			"error", err.Error(),
		)
	})
	if err != nil {
		o.log.Error("report generation failed", "attempts", o.retry.Attempts(), "error", err.Error())
		return "", err
	}
	return out, nil
}

// Fallback builds the deterministic report used when composition fails.
func (o *Orchestrator) Fallback(in ReportInput) string {
	if in.Date.IsZero() {
		in.Date = o.now()
	}
	return FallbackReport(ResultsTable(in.Results, o.describe), in.Date)
}

func (o *Orchestrator) describe(id string) (string, string) {
	if o.reg == nil {
		return id, ""
	}
	in, err := o.reg.Get(id)
	if err != nil {
		return id, ""
	}
	return in.Name, in.Description
}

// Describer returns the display name and description of an instrument id.
type Describer func(id string) (name, description string)

// ResultsTable lists each result with its score lines.
func ResultsTable(results []scoring.Result, describe Describer) string {
	if len(results) == 0 {
		return "No questionnaires were completed.\n"
	}
	var b strings.Builder
	for _, r := range results {
		name, desc := r.Name, ""
		if describe != nil {
			name, desc = describe(r.InstrumentID)
		}
		if desc != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", name, desc)
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		for _, line := range r.Lines() {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}

// ResultsDigest is the results block given to the report prompt.
func ResultsDigest(results []scoring.Result, describe Describer, conditions []string) string {
	conds := "No specific conditions identified"
	if len(conditions) > 0 {
		conds = strings.Join(conditions, ", ")
	}
	return "Assessment Results Summary:\n" + ResultsTable(results, describe) +
		"\nPossible conditions identified during screening: " + conds + "\n"
}

// FallbackReport renders the tabulated results with a note that the full
// report could not be produced.
func FallbackReport(table string, date time.Time) string {
	var b strings.Builder
	b.WriteString("# Mental Health Report\n\n")
	fmt.Fprintf(&b, "## Date: %s\n\n", date.Format(DateLayout))
	b.WriteString("### Assessment Results\n")
	b.WriteString(table)
	b.WriteString("\n### Note\n")
	b.WriteString("The complete report could not be generated. You can start a new conversation to try again.\n\n")
	b.WriteString("This report is not a substitute for a professional psychiatric evaluation. Please consult a mental health professional for a full assessment.\n")
	return b.String()
}
