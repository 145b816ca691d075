package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/mockinterview/internal/coding"
	"github.com/pavelanni/mockinterview/internal/handler/views"
	"github.com/pavelanni/mockinterview/internal/lang"
	"github.com/pavelanni/mockinterview/internal/llm"
	"github.com/pavelanni/mockinterview/internal/model"
)

func (h *Handler) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, lang.All())
}

type executeRequest struct {
	Code              string           `json:"code"`
	Language          string           `json:"language"`
	FunctionSignature string           `json:"functionSignature"`
	TestCases         []model.TestCase `json:"testCases"`
}

// handleExecuteCode runs test cases without touching any interview state.
func (h *Handler) handleExecuteCode(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" || req.Language == "" || req.TestCases == nil {
		writeError(w, http.StatusBadRequest, "code, language and testCases are required")
		return
	}
	l, err := lang.Parse(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unsupported language: "+req.Language)
		return
	}

	out, err := h.runner.Run(r.Context(), l, req.Code, req.FunctionSignature, req.TestCases)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type evaluateRequest struct {
	Code      string                 `json:"code"`
	Challenge *model.CodingChallenge `json:"challenge"`
}

// handleEvaluateCode grades code against a challenge without touching any interview state.
func (h *Handler) handleEvaluateCode(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" || req.Challenge == nil {
		writeError(w, http.StatusBadRequest, "code and challenge are required")
		return
	}
	res, err := h.llm.EvaluateCode(r.Context(), *req.Challenge, req.Code)
	if err != nil {
		slog.Error("evaluation failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to evaluate code")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type bankEntry struct {
	ID         int64            `json:"id"`
	Title      string           `json:"title"`
	Language   lang.Language    `json:"language"`
	Difficulty model.Difficulty `json:"difficulty"`
	Topic      string           `json:"topic"`
}

type bankResponse struct {
	Topics     []string    `json:"topics"`
	Challenges []bankEntry `json:"challenges"`
}

// handleListBank lists bank challenges, filtered by the difficulty and topic
// query parameters. Solutions and test cases are not exposed.
func (h *Handler) handleListBank(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bank, err := h.store.ListBankChallenges(q.Get("difficulty"), q.Get("topic"))
	if err != nil {
		slog.Error("failed to list bank challenges", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	topics, err := h.store.ListDistinctTopics()
	if err != nil {
		slog.Error("failed to list topics", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := bankResponse{Topics: topics, Challenges: make([]bankEntry, 0, len(bank))}
	if resp.Topics == nil {
		resp.Topics = []string{}
	}
	for _, bc := range bank {
		resp.Challenges = append(resp.Challenges, bankEntry{
			ID:         bc.ID,
			Title:      bc.Challenge.Title,
			Language:   bc.Challenge.Language,
			Difficulty: bc.Difficulty,
			Topic:      bc.Topic,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type languageRequest struct {
	Language string `json:"language"`
}

func (h *Handler) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	l := lang.Default
	if req.Language != "" {
		var err error
		if l, err = lang.Parse(req.Language); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	iv, err := h.store.CreateInterview(string(l))
	if err != nil {
		slog.Error("failed to create interview", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("interview created", "id", iv.ID, "language", l)
	writeJSON(w, http.StatusCreated, iv)
}

type interviewResponse struct {
	Interview *model.Interview  `json:"interview"`
	Messages  []model.Message   `json:"messages"`
	Coding    model.CodingState `json:"coding"`
}

func (h *Handler) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	msgs, err := h.store.GetMessages(iv.ID)
	if err != nil {
		slog.Error("failed to load messages", "interview", iv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, interviewResponse{
		Interview: iv,
		Messages:  msgs,
		Coding:    h.sessions.State(iv.ID),
	})
}

func (h *Handler) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	var req languageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	l, err := lang.Parse(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.SetInterviewLanguage(iv.ID, string(l)); err != nil {
		slog.Error("failed to set language", "interview", iv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEndInterview(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	if err := h.endStoredChallenge(iv.ID); err != nil {
		slog.Error("failed to end challenge", "interview", iv.ID, "error", err)
	}
	h.sessions.Remove(iv.ID)
	if err := h.store.EndInterview(iv.ID); err != nil {
		slog.Error("failed to end interview", "interview", iv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("interview ended", "id", iv.ID)
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	Message      string `json:"message"`
	DisableTools bool   `json:"disableTools"`
}

type chatResponse struct {
	Message   string                 `json:"message"`
	Challenge *model.CodingChallenge `json:"challenge,omitempty"`
	Code      string                 `json:"code,omitempty"`
}

// handleChat records the candidate's message and produces the interviewer's
// reply. A reply that presents a challenge activates it.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if msg := strings.TrimSpace(req.Message); msg != "" {
		if err := h.addMessage(iv.ID, model.RoleCandidate, msg); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	_, active := h.sessions.Active(iv.ID)

	reply, err := h.interviewerTurn(r, iv, req.DisableTools || active)
	if err != nil {
		slog.Error("interviewer chat failed", "interview", iv.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to get interviewer reply")
		return
	}

	resp := chatResponse{Message: reply.Content}
	if reply.Challenge != nil {
		code, ch, err := h.startChallenge(iv.ID, *reply.Challenge)
		if err != nil {
			slog.Error("failed to start challenge", "interview", iv.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp.Challenge = &ch
		resp.Code = code
	}
	writeJSON(w, http.StatusOK, resp)
}

type startChallengeRequest struct {
	BankID    *int64                 `json:"bankId"`
	Challenge *model.CodingChallenge `json:"challenge"`
}

// handleStartChallenge activates a challenge given inline or picked from the bank.
func (h *Handler) handleStartChallenge(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	var req startChallengeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var ch model.CodingChallenge
	switch {
	case req.BankID != nil:
		bc, err := h.store.GetBankChallenge(*req.BankID)
		if err != nil {
			slog.Error("failed to load bank challenge", "id", *req.BankID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if bc == nil {
			writeError(w, http.StatusNotFound, "bank challenge not found")
			return
		}
		ch = bc.Challenge
	case req.Challenge != nil:
		ch = *req.Challenge
	default:
		writeError(w, http.StatusBadRequest, "bankId or challenge is required")
		return
	}
	if ch.Title == "" || ch.FunctionSignature == "" || len(ch.TestCases) == 0 {
		writeError(w, http.StatusBadRequest, "challenge needs a title, a function signature and test cases")
		return
	}
	if ch.Language == "" {
		ch.Language = lang.Language(iv.Language)
	}
	if !ch.Language.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %s", lang.ErrUnsupportedLanguage, ch.Language))
		return
	}

	code, started, err := h.startChallenge(iv.ID, ch)
	if err != nil {
		slog.Error("failed to start challenge", "interview", iv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, chatResponse{Challenge: &started, Code: code})
}

func (h *Handler) handleChallengeState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.State(interviewFrom(r).ID))
}

func (h *Handler) handleEndChallenge(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	h.sessions.Remove(iv.ID)
	if err := h.endStoredChallenge(iv.ID); err != nil {
		slog.Error("failed to end challenge", "interview", iv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type codeRequest struct {
	Code string `json:"code"`
}

type runResponse struct {
	Output   model.CodeOutput `json:"output"`
	Advanced bool             `json:"advanced"`
	Message  string           `json:"message,omitempty"`
}

// handleRun executes the active challenge's tests. When every test passes
// the challenge ends and the interviewer moves on.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tracker, ok := h.sessions.Lookup(iv.ID)
	if !ok {
		writeLifecycleError(w, coding.ErrNoActiveChallenge)
		return
	}
	out, err := tracker.Run(r.Context(), req.Code)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	rec, err := h.store.ActiveChallenge(iv.ID)
	if err != nil {
		slog.Error("failed to load active challenge", "interview", iv.ID, "error", err)
	} else if rec != nil {
		if _, err := h.store.RecordRun(rec.ID, req.Code, out); err != nil {
			slog.Error("failed to record run", "interview", iv.ID, "error", err)
		}
	}

	resp := runResponse{Output: out}
	if out.AllPassed() {
		resp.Advanced = true
		resp.Message = h.advance(r, iv)
	}
	writeJSON(w, http.StatusOK, resp)
}

// advance ends the solved challenge and asks the interviewer for the next
// turn. It returns the interviewer's message, or "" when none was produced.
func (h *Handler) advance(r *http.Request, iv *model.Interview) string {
	h.sessions.Remove(iv.ID)
	if err := h.endStoredChallenge(iv.ID); err != nil {
		slog.Error("failed to end challenge", "interview", iv.ID, "error", err)
	}
	if err := h.addMessage(iv.ID, model.RoleCandidate, CompletedMessage); err != nil {
		return ""
	}
	slog.Info("challenge solved", "interview", iv.ID)

	if err := sleepCtx(r.Context(), h.config.AdvanceDelay); err != nil {
		return ""
	}
	reply, err := h.interviewerTurn(r, iv, true)
	if err != nil {
		slog.Error("interviewer follow-up failed", "interview", iv.ID, "error", err)
		return ""
	}
	return reply.Content
}

type submitResponse struct {
	Result   model.EvaluationResult `json:"result"`
	Attempts int                    `json:"attempts"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	tracker, ok := h.sessions.Lookup(iv.ID)
	if !ok {
		writeLifecycleError(w, coding.ErrNoActiveChallenge)
		return
	}
	res, err := tracker.Submit(r.Context(), req.Code)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	rec, err := h.store.ActiveChallenge(iv.ID)
	if err != nil {
		slog.Error("failed to load active challenge", "interview", iv.ID, "error", err)
	} else if rec != nil {
		if _, err := h.store.RecordEvaluation(rec.ID, req.Code, res); err != nil {
			slog.Error("failed to record evaluation", "interview", iv.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, submitResponse{Result: res, Attempts: tracker.State().Attempts})
}

func (h *Handler) handleHint(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ch, ok := h.sessions.Active(iv.ID)
	if !ok {
		writeLifecycleError(w, coding.ErrNoActiveChallenge)
		return
	}
	history, err := h.store.GetMessages(iv.ID)
	if err != nil {
		slog.Error("failed to load messages", "interview", iv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	request, answer, err := h.llm.Hint(r.Context(), history, ch, req.Code)
	if err != nil {
		slog.Error("hint failed", "interview", iv.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to get a hint")
		return
	}
	if err := h.addMessage(iv.ID, model.RoleCandidate, request); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.addMessage(iv.ID, model.RoleInterviewer, answer); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Message: answer})
}

// handleOutputPanel renders the latest run and evaluation as an HTML fragment.
// After a solved challenge has ended the last stored run is shown.
func (h *Handler) handleOutputPanel(w http.ResponseWriter, r *http.Request) {
	iv := interviewFrom(r)
	state := h.sessions.State(iv.ID)

	out := state.Output
	if out == nil && !state.IsRunning {
		last, err := h.store.LastRun(iv.ID)
		if err != nil {
			slog.Error("failed to load last run", "interview", iv.ID, "error", err)
		} else if last != nil {
			out = &last.Output
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.OutputPanel(out, state.IsRunning).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
		return
	}
	if err := views.FeedbackPanel(state.Feedback, state.Attempts).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// interviewerTurn asks the LLM for the next interviewer message and appends it to the transcript.
func (h *Handler) interviewerTurn(r *http.Request, iv *model.Interview, disableTools bool) (reply llm.Reply, err error) {
	history, err := h.store.GetMessages(iv.ID)
	if err != nil {
		return reply, fmt.Errorf("load messages: %w", err)
	}
	reply, err = h.llm.Chat(r.Context(), lang.Language(iv.Language), history, disableTools)
	if err != nil {
		return reply, err
	}
	if reply.Content != "" {
		if err := h.addMessage(iv.ID, model.RoleInterviewer, reply.Content); err != nil {
			return reply, err
		}
	}
	return reply, nil
}

// startChallenge activates ch for an interview and returns the editor code
// together with the challenge as activated.
func (h *Handler) startChallenge(interviewID string, ch model.CodingChallenge) (string, model.CodingChallenge, error) {
	tracker := h.sessions.Get(interviewID)
	code := tracker.Start(ch)
	started, _ := tracker.Active()
	if _, err := h.store.StartChallenge(interviewID, started); err != nil {
		h.sessions.Remove(interviewID)
		return "", started, fmt.Errorf("record challenge: %w", err)
	}
	slog.Info("challenge started", "interview", interviewID, "title", started.Title, "language", started.Language)
	return code, started, nil
}

func (h *Handler) endStoredChallenge(interviewID string) error {
	rec, err := h.store.ActiveChallenge(interviewID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return h.store.EndChallenge(rec.ID)
}

func (h *Handler) addMessage(interviewID string, role model.Role, content string) error {
	_, err := h.store.AddMessage(model.Message{InterviewID: interviewID, Role: role, Content: content})
	if err != nil {
		slog.Error("failed to store message", "interview", interviewID, "role", role, "error", err)
		return err
	}
	return nil
}
