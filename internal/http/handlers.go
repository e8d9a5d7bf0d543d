// Package http exposes triage sessions over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mindtriage/internal/platform/logger"
	"mindtriage/internal/report"
	"mindtriage/internal/session"
	"mindtriage/pkg"
)

// Server bundles together the dependencies required by HTTP handlers. It
// implements http.Handler so it can be passed to http.Server.
type Server struct {
	store  *Store
	pdf    *report.Renderer
	log    *logger.Logger
	router chi.Router
}

// NewServer builds the router. pdf may be nil, in which case report export
// answers 501.
func NewServer(store *Store, pdf *report.Renderer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{store: store, pdf: pdf, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/messages", s.handlePostMessage)
			r.Post("/answers", s.handlePostAnswer)
			r.Post("/report", s.handleTriggerReport)
			r.Post("/restart", s.handleRestart)
			r.Get("/report.pdf", s.handleReportPDF)
		})
	})
	s.router = r
	return s
}

// ServeHTTP dispatches to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.store.Len()})
}

// handleCreateSession starts a session and returns its initial view.
func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.store.Create()
	s.log.Info("session created", "session_id", sess.ID())
	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req pkg.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	s.respond(w, sess, sess.SubmitMessage(detach(r), req.Content))
}

func (s *Server) handlePostAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req pkg.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be {\"option\": <index>}")
		return
	}
	s.respond(w, sess, sess.SubmitAnswer(detach(r), *req.Option))
}

func (s *Server) handleTriggerReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respond(w, sess, sess.TriggerReport(detach(r)))
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Restart()
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.pdf == nil {
		writeError(w, http.StatusNotImplemented, "pdf_disabled", "PDF export is not configured")
		return
	}
	v := sess.View()
	text, _ := sess.Report()
	if v.Phase != pkg.PhaseFollowUp || text == "" {
		writeError(w, http.StatusConflict, "no_report", "the report has not been composed yet")
		return
	}
	out, err := s.pdf.Render(report.Document{
		SessionID:  v.ID,
		Date:       time.Now(),
		Conditions: v.Conditions,
		Results:    v.Results,
		Report:     text,
		Fallback:   !v.ReportGenerated,
	})
	if err != nil {
		s.log.Error("render report PDF", "session_id", v.ID, "error", err.Error())
		status := http.StatusInternalServerError
		if errors.Is(err, report.ErrNoFont) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "pdf_failed", "could not render the report")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report_%s.pdf"`, v.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
	}
	return sess, ok
}

// respond writes the session view, or maps err to a status code.
func (s *Server) respond(w http.ResponseWriter, sess *session.Session, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, sess.View())
		return
	}
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.log.Error("session action failed", "session_id", sess.ID(), "error", err.Error())
	}
	writeError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, session.ErrWrongPhase):
		return http.StatusConflict, "wrong_phase"
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, session.ErrInvalidOption):
		return http.StatusBadRequest, "invalid_option"
	case errors.Is(err, session.ErrEmptyMessage):
		return http.StatusBadRequest, "empty_message"
	case errors.Is(err, session.ErrHalted):
		return http.StatusServiceUnavailable, "halted"
	}
	return http.StatusInternalServerError, "internal"
}

// detach keeps session actions running if the client goes away; Restart is
// the way to abandon one.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, pkg.ErrorResponse{Error: msg, Code: code})
}
