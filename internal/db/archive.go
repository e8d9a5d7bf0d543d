package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mindtriage/internal/platform/logger"
	"mindtriage/internal/session"
)

// Archive stores every composed report and announces it. It implements
// session.Recorder.
type Archive struct {
	repo     *Repository
	notifier *Notifier
	log      *logger.Logger
}

// NewArchive wires the repository and an optional notifier.
func NewArchive(repo *Repository, notifier *Notifier, log *logger.Logger) *Archive {
	if log == nil {
		log = logger.Nop()
	}
	return &Archive{repo: repo, notifier: notifier, log: log}
}

// RecordReport saves rec. A failed notification is logged, not returned,
// since the report is already stored.
func (a *Archive) RecordReport(ctx context.Context, rec session.Record) error {
	id, err := uuid.Parse(rec.SessionID)
	if err != nil {
		return fmt.Errorf("archive report: session id: %w", err)
	}
	rep := &ArchivedReport{
		SessionID:  id,
		Conditions: rec.Conditions,
		Notes:      rec.Notes,
		Results:    rec.Results,
		Report:     rec.Report,
		Fallback:   rec.Fallback,
		CreatedAt:  rec.CreatedAt.UTC(),
	}
	if err := a.repo.SaveReport(ctx, rep); err != nil {
		return fmt.Errorf("archive report: %w", err)
	}
	a.log.Info("report archived", "session_id", rec.SessionID, "report_id", rep.ID, "fallback", rec.Fallback)
	if a.notifier == nil {
		return nil
	}
	if err := a.notifier.Notify(ctx, rec.SessionID); err != nil {
		a.log.Warn("report notification failed", "session_id", rec.SessionID, "error", err.Error())
	}
	return nil
}
