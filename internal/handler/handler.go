// Package handler serves the interview JSON API and the back-office pages.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mockinterview/internal/coding"
	"github.com/pavelanni/mockinterview/internal/lang"
	"github.com/pavelanni/mockinterview/internal/llm"
	"github.com/pavelanni/mockinterview/internal/model"
	"github.com/pavelanni/mockinterview/internal/store"
)

// CompletedMessage is appended to the transcript when a run passes every test.
const CompletedMessage = "[User completed the coding challenge successfully - all tests passed]"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Interviewer is the LLM side of an interview.
type Interviewer interface {
	coding.Evaluator
	Chat(ctx context.Context, l lang.Language, history []model.Message, disableTools bool) (llm.Reply, error)
	Hint(ctx context.Context, history []model.Message, ch model.CodingChallenge, code string) (request, answer string, err error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	llm      Interviewer
	runner   coding.TestRunner
	sessions *coding.Sessions
	config   model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, iv Interviewer, runner coding.TestRunner, cfg model.ServerConfig) *Handler {
	return &Handler{
		store:    s,
		llm:      iv,
		runner:   runner,
		sessions: coding.NewSessions(runner, iv),
		config:   cfg,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/languages", h.handleLanguages)
		r.Post("/execute-code", h.handleExecuteCode)
		r.Post("/evaluate-code", h.handleEvaluateCode)
		r.Get("/bank", h.handleListBank)
		r.Post("/interviews", h.handleCreateInterview)

		r.Route("/interviews/{id}", func(r chi.Router) {
			r.Use(h.loadInterview)
			r.Get("/", h.handleGetInterview)
			r.Delete("/", h.handleEndInterview)
			r.Put("/language", h.handleSetLanguage)
			r.Post("/chat", h.handleChat)
			r.Get("/challenge", h.handleChallengeState)
			r.Post("/challenge", h.handleStartChallenge)
			r.Delete("/challenge", h.handleEndChallenge)
			r.Post("/run", h.handleRun)
			r.Post("/submit", h.handleSubmit)
			r.Post("/hint", h.handleHint)
		})
	})

	r.With(h.loadInterview).Get("/interviews/{id}/output", h.handleOutputPanel)

	h.adminRoutes(r)
}

// path prefixes p with the configured base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

// BasePathMiddleware exposes the base path to the views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type interviewCtxKey struct{}

// loadInterview resolves the {id} URL parameter and rejects unknown or finished interviews
// for mutating requests.
func (h *Handler) loadInterview(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iv, err := h.store.GetInterview(chi.URLParam(r, "id"))
		if err != nil {
			slog.Error("failed to load interview", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if iv == nil {
			writeError(w, http.StatusNotFound, "interview not found")
			return
		}
		if iv.EndedAt != nil && r.Method != http.MethodGet {
			writeError(w, http.StatusConflict, "interview has ended")
			return
		}
		ctx := context.WithValue(r.Context(), interviewCtxKey{}, iv)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func interviewFrom(r *http.Request) *model.Interview {
	iv, _ := r.Context().Value(interviewCtxKey{}).(*model.Interview)
	return iv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// writeLifecycleError maps challenge lifecycle and registry errors to HTTP statuses.
func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coding.ErrNoActiveChallenge):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, coding.ErrRunInProgress), errors.Is(err, coding.ErrSubmitInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, coding.ErrChallengeChanged):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lang.ErrUnsupportedLanguage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
