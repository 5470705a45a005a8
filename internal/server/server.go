package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/interview"
	"github.com/spigell/interview-trainer/internal/logger"
	"github.com/spigell/interview-trainer/internal/resume"
	"github.com/spigell/interview-trainer/internal/session"
)

const (
	maxAudioBytes = 10 << 20

	resumeFailedNotice = "Sorry, I couldn't process the resume."
)

// Server exposes interview sessions over HTTP.
type Server struct {
	sessions   *session.Manager
	summarizer *resume.Summarizer
	logger     *zap.Logger
	router     chi.Router
}

func New(sessions *session.Manager, summarizer *resume.Summarizer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		sessions:   sessions,
		summarizer: summarizer,
		logger:     log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Post("/{id}/messages", s.postMessage)
		r.Get("/{id}/report", s.getReport)
		r.Delete("/{id}", s.deleteSession)
	})

	s.router = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http server listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type createSessionRequest struct {
	Resume string `json:"resume"`
}

type createSessionResponse struct {
	ID     string        `json:"id"`
	Reply  replyResponse `json:"reply"`
	Notice string        `json:"notice,omitempty"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Reply      replyResponse `json:"reply"`
	Transcript string        `json:"transcript,omitempty"`
	Audio      string        `json:"audio,omitempty"`
}

type replyResponse struct {
	Text          string `json:"text"`
	Type          string `json:"type"`
	QuestionCount int    `json:"question_count"`
	MaxQuestions  int    `json:"max_questions"`
	Topic         string `json:"topic,omitempty"`
	ReportReady   bool   `json:"report_ready"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	summary, notice := s.summarizeResume(r.Context(), req.Resume)

	id, reply := s.sessions.Create(summary)

	s.writeJSON(w, http.StatusCreated, createSessionResponse{
		ID:     id,
		Reply:  toReplyResponse(reply),
		Notice: notice,
	})
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		res session.Result
		err error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		res, err = s.handleAudioMessage(r, id)
	} else {
		var req messageRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		res, err = s.sessions.Text(r.Context(), id, req.Text)
	}

	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}

	resp := messageResponse{
		Reply:      toReplyResponse(res.Reply),
		Transcript: res.Transcript,
	}
	if len(res.Audio) > 0 {
		resp.Audio = base64.StdEncoding.EncodeToString(res.Audio)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAudioMessage(r *http.Request, id string) (session.Result, error) {
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		return session.Result{}, fmt.Errorf("parsing audio upload: %w", err)
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		return session.Result{}, fmt.Errorf("missing audio file: %w", err)
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
	if err != nil {
		return session.Result{}, fmt.Errorf("reading audio upload: %w", err)
	}

	return s.sessions.Audio(r.Context(), id, audio)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := s.sessions.Report(id)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(report)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// summarizeResume condenses the uploaded resume. Summarization failures
// only cost prompt context, so the session starts anyway with a notice
// for the candidate.
func (s *Server) summarizeResume(ctx context.Context, text string) (summary, notice string) {
	if s.summarizer == nil || strings.TrimSpace(text) == "" {
		return "", ""
	}

	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		s.logger.Warn("resume summarization failed, starting without it", zap.Error(err))
		return "", resumeFailedNotice
	}

	return summary, ""
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) writeSessionError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrNotFinished):
		s.writeError(w, http.StatusConflict, "interview is not finished yet")
	default:
		s.logger.Error("session request failed", zap.String(logger.FieldSession, id), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "upstream failure")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func toReplyResponse(reply interview.Reply) replyResponse {
	return replyResponse{
		Text:          reply.Text,
		Type:          string(reply.Type),
		QuestionCount: reply.QuestionCount,
		MaxQuestions:  reply.MaxQuestions,
		Topic:         string(reply.Topic),
		ReportReady:   len(reply.Report) > 0,
	}
}
