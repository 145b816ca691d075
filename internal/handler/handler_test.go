package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/mockinterview/internal/i18n"
	"github.com/pavelanni/mockinterview/internal/lang"
	"github.com/pavelanni/mockinterview/internal/llm"
	"github.com/pavelanni/mockinterview/internal/model"
	"github.com/pavelanni/mockinterview/internal/store"
)

type fakeRunner struct {
	out   model.CodeOutput
	err   error
	calls int
}

func (f *fakeRunner) Run(_ context.Context, _ lang.Language, _, _ string, _ []model.TestCase) (model.CodeOutput, error) {
	f.calls++
	return f.out, f.err
}

type fakeInterviewer struct {
	replies      []llm.Reply
	disableTools []bool
	eval         model.EvaluationResult
	evalErr      error
}

func (f *fakeInterviewer) Chat(_ context.Context, _ lang.Language, _ []model.Message, disableTools bool) (llm.Reply, error) {
	f.disableTools = append(f.disableTools, disableTools)
	if len(f.replies) == 0 {
		return llm.Reply{Content: "Tell me more."}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeInterviewer) Hint(_ context.Context, _ []model.Message, ch model.CodingChallenge, code string) (string, string, error) {
	return "[hint request] " + ch.Title, "Think about the base case.", nil
}

func (f *fakeInterviewer) EvaluateCode(_ context.Context, _ model.CodingChallenge, _ string) (model.EvaluationResult, error) {
	return f.eval, f.evalErr
}

type testEnv struct {
	store  *store.Store
	runner *fakeRunner
	llm    *fakeInterviewer
	h      *Handler
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	env := &testEnv{store: s, runner: &fakeRunner{}, llm: &fakeInterviewer{}}
	h := New(s, env.llm, env.runner, model.ServerConfig{Language: "en"})
	env.h = h

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	r.Use(h.BasePathMiddleware)
	h.Routes(r)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) newInterview(t *testing.T) model.Interview {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/interviews", map[string]string{"language": "python"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create interview: %d %s", rec.Code, rec.Body)
	}
	return decode[model.Interview](t, rec)
}

func doubleChallenge() model.CodingChallenge {
	return model.CodingChallenge{
		Title:             "Double",
		Description:       "Return twice n.",
		FunctionSignature: "def double(n: int) -> int:",
		Language:          lang.Python,
		TestCases:         []model.TestCase{{Input: "2", Output: "4"}},
		Hints:             []string{},
	}
}

func (e *testEnv) startChallenge(t *testing.T, id string) {
	t.Helper()
	ch := doubleChallenge()
	rec := e.do(t, http.MethodPost, "/api/interviews/"+id+"/challenge", map[string]any{"challenge": ch})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start challenge: %d %s", rec.Code, rec.Body)
	}
}

func passingOutput() model.CodeOutput {
	return model.CodeOutput{TestResults: []model.TestResult{{Input: "2", Expected: "4", Actual: "4", Passed: true}}}
}

func TestLanguages(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/languages", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	opts := decode[[]lang.Option](t, rec)
	if len(opts) != 10 || opts[0].Value != lang.Python {
		t.Errorf("languages = %+v", opts)
	}
}

func TestExecuteCode(t *testing.T) {
	env := newTestEnv(t)
	env.runner.out = passingOutput()

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"missing code", map[string]any{"language": "python", "testCases": []any{}}, http.StatusBadRequest},
		{"missing tests", map[string]any{"code": "x", "language": "python"}, http.StatusBadRequest},
		{"unsupported language", map[string]any{"code": "x", "language": "cobol", "testCases": []any{}}, http.StatusBadRequest},
		{"ok", map[string]any{
			"code": "def double(n): return n*2", "language": "python",
			"functionSignature": "def double(n: int) -> int:",
			"testCases":         []model.TestCase{{Input: "2", Output: "4"}},
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/execute-code", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
		})
	}
	if env.runner.calls != 1 {
		t.Errorf("runner called %d times, want 1", env.runner.calls)
	}
}

func TestExecuteCodeInfrastructureFailure(t *testing.T) {
	env := newTestEnv(t)
	env.runner.out = model.Failed("Compilation error")

	rec := env.do(t, http.MethodPost, "/api/execute-code", map[string]any{
		"code": "x", "language": "java", "testCases": []model.TestCase{{Input: "1", Output: "1"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"testResults":[]`) {
		t.Errorf("expected empty testResults array: %s", rec.Body)
	}
	out := decode[model.CodeOutput](t, rec)
	if out.ErrorMessage() != "Compilation error" {
		t.Errorf("error = %q", out.ErrorMessage())
	}
}

func TestEvaluateCode(t *testing.T) {
	env := newTestEnv(t)
	env.llm.eval = model.EvaluationResult{Correct: true, Feedback: "Nice.", PassedTests: 1, TotalTests: 1}

	rec := env.do(t, http.MethodPost, "/api/evaluate-code", map[string]any{"code": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing challenge: status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/evaluate-code", map[string]any{"code": "x", "challenge": doubleChallenge()})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := decode[model.EvaluationResult](t, rec); !got.Correct || got.Feedback != "Nice." {
		t.Errorf("result = %+v", got)
	}

	env.llm.evalErr = errors.New("upstream down")
	rec = env.do(t, http.MethodPost, "/api/evaluate-code", map[string]any{"code": "x", "challenge": doubleChallenge()})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("evaluator error: status = %d", rec.Code)
	}
}

func TestInterviewNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/interviews/nope/run", map[string]string{"code": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateInterviewRejectsUnknownLanguage(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/interviews", map[string]string{"language": "cobol"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatStartsChallenge(t *testing.T) {
	env := newTestEnv(t)
	iv := env.newInterview(t)
	ch := doubleChallenge()
	env.llm.replies = []llm.Reply{
		{Content: "Hi, tell me about yourself."},
		{Content: "Let's code.", Challenge: &ch},
	}

	rec := env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/chat", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", rec.Code, rec.Body)
	}
	if got := decode[chatResponse](t, rec); got.Message != "Hi, tell me about yourself." || got.Challenge != nil {
		t.Errorf("first reply = %+v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/chat", map[string]string{"message": "I build backends."})
	got := decode[chatResponse](t, rec)
	if got.Challenge == nil || got.Challenge.Title != "Double" {
		t.Fatalf("challenge not presented: %+v", got)
	}
	if !strings.Contains(got.Code, "def double(n: int) -> int:") {
		t.Errorf("default code = %q", got.Code)
	}

	state := decode[model.CodingState](t, env.do(t, http.MethodGet, "/api/interviews/"+iv.ID+"/challenge", nil))
	if !state.IsActive || state.Challenge.Title != "Double" {
		t.Errorf("state = %+v", state)
	}
	if rec, _ := env.store.ActiveChallenge(iv.ID); rec == nil {
		t.Error("challenge not recorded in store")
	}

	msgs, _ := env.store.GetMessages(iv.ID)
	if len(msgs) != 3 {
		t.Fatalf("transcript has %d messages, want 3", len(msgs))
	}
	if msgs[1].Role != model.RoleCandidate || msgs[2].Content != "Let's code." {
		t.Errorf("transcript = %+v", msgs)
	}

	// Tools are disabled while a challenge is active.
	env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/chat", map[string]string{"message": "Question?"})
	if last := env.llm.disableTools[len(env.llm.disableTools)-1]; !last {
		t.Error("tools offered during an active challenge")
	}
}

func TestRunWithoutChallenge(t *testing.T) {
	env := newTestEnv(t)
	iv := env.newInterview(t)
	rec := env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/run", map[string]string{"code": "x"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRunFailingStaysActive(t *testing.T) {
	env := newTestEnv(t)
	iv := env.newInterview(t)
	env.startChallenge(t, iv.ID)
	env.runner.out = model.CodeOutput{TestResults: []model.TestResult{{Input: "2", Expected: "4", Actual: "5"}}}

	rec := env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/run", map[string]string{"code": "def double(n): return n+3"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[runResponse](t, rec)
	if got.Advanced || got.Message != "" {
		t.Errorf("unexpected advance: %+v", got)
	}
	state := decode[model.CodingState](t, env.do(t, http.MethodGet, "/api/interviews/"+iv.ID+"/challenge", nil))
	if !state.IsActive || state.Output == nil || state.Output.PassedCount() != 0 {
		t.Errorf("state = %+v", state)
	}

	active, _ := env.store.ActiveChallenge(iv.ID)
	runs, _ := env.store.ListRuns(active.ID)
	if len(runs) != 1 || runs[0].AllPassed {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRunAllPassedAdvances(t *testing.T) {
	env := newTestEnv(t)
	iv := env.newInterview(t)
	env.startChallenge(t, iv.ID)
	env.runner.out = passingOutput()
	env.llm.replies = []llm.Reply{{Content: "Great job. Next question."}}

	rec := env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/run", map[string]string{"code": "def double(n): return n*2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[runResponse](t, rec)
	if !got.Advanced || got.Message != "Great job. Next question." {
		t.Errorf("run response = %+v", got)
	}
	if len(env.llm.disableTools) != 1 || !env.llm.disableTools[0] {
		t.Errorf("follow-up chat calls = %v, want one with tools disabled", env.llm.disableTools)
	}

	state := decode[model.CodingState](t, env.do(t, http.MethodGet, "/api/interviews/"+iv.ID+"/challenge", nil))
	if state.IsActive {
		t.Error("challenge still active after all tests passed")
	}
	if active, _ := env.store.ActiveChallenge(iv.ID); active != nil {
		t.Error("challenge still open in store")
	}

	msgs, _ := env.store.GetMessages(iv.ID)
	if len(msgs) != 2 || msgs[0].Content != CompletedMessage || msgs[1].Role != model.RoleInterviewer {
		t.Errorf("transcript = %+v", msgs)
	}

	// The output panel still shows the solved run.
	rec = env.do(t, http.MethodGet, "/interviews/"+iv.ID+"/output", nil)
	if !strings.Contains(rec.Body.String(), "All tests passed!") {
		t.Errorf("output panel = %s", rec.Body)
	}
}

func TestTrackersFollowChallenges(t *testing.T) {
	env := newTestEnv(t)
	iv := env.newInterview(t)

	for _, path := range []string{
		"/api/interviews/" + iv.ID,
		"/api/interviews/" + iv.ID + "/challenge",
		"/interviews/" + iv.ID + "/output",
	} {
		if rec := env.do(t, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("GET %s: %d", path, rec.Code)
		}
	}
	env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/run", map[string]string{"code": "x"})
	if n := env.h.sessions.Len(); n != 0 {
		t.Fatalf("reads created %d trackers", n)
	}

	env.startChallenge(t, iv.ID)
	if n := env.h.sessions.Len(); n != 1 {
		t.Fatalf("trackers after start = %d, want 1", n)
	}
	env.runner.out = passingOutput()
	env.llm.replies = []llm.Reply{{Content: "Next."}}
	env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/run", map[string]string{"code": "x"})
	if n := env.h.sessions.Len(); n != 0 {
		t.Errorf("trackers after solved challenge = %d, want 0", n)
	}

	env.startChallenge(t, iv.ID)
	env.do(t, http.MethodDelete, "/api/interviews/"+iv.ID+"/challenge", nil)
	if n := env.h.sessions.Len(); n != 0 {
		t.Errorf("trackers after ending challenge = %d, want 0", n)
	}
}

func TestSubmitCountsAttempts(t *testing.T) {
	env := newTestEnv(t)
	iv := env.newInterview(t)

	rec := env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/submit", map[string]string{"code": "x"})
	if rec.Code != http.StatusConflict {
		t.Errorf("submit without challenge: status = %d", rec.Code)
	}

	env.startChallenge(t, iv.ID)
	env.llm.eval = model.EvaluationResult{Correct: false, Feedback: "Off by one.", TotalTests: 1}
	for i := 1; i <= 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/submit", map[string]string{"code": "x"})
		if rec.Code != http.StatusOK {
			t.Fatalf("submit: %d %s", rec.Code, rec.Body)
		}
		if got := decode[submitResponse](t, rec); got.Attempts != i {
			t.Errorf("attempts = %d, want %d", got.Attempts, i)
		}
	}

	env.llm.evalErr = errors.New("boom")
	env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/submit", map[string]string{"code": "x"})
	if state := decode[model.CodingState](t, env.do(t, http.MethodGet, "/api/interviews/"+iv.ID+"/challenge", nil)); state.Attempts != 2 {
		t.Errorf("failed evaluation counted: attempts = %d", state.Attempts)
	}

	active, _ := env.store.ActiveChallenge(iv.ID)
	evals, _ := env.store.ListEvaluations(active.ID)
	if len(evals) != 2 {
		t.Errorf("recorded %d evaluations, want 2", len(evals))
	}
}

func TestHint(t *testing.T) {
	env := newTestEnv(t)
	iv := env.newInterview(t)

	rec := env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/hint", map[string]string{"code": "x"})
	if rec.Code != http.StatusConflict {
		t.Errorf("hint without challenge: status = %d", rec.Code)
	}

	env.startChallenge(t, iv.ID)
	rec = env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/hint", map[string]string{"code": "x"})
	if rec.Code != http.StatusOK {
		t.Fatalf("hint: %d %s", rec.Code, rec.Body)
	}
	if got := decode[chatResponse](t, rec); got.Message != "Think about the base case." {
		t.Errorf("hint = %+v", got)
	}
	msgs, _ := env.store.GetMessages(iv.ID)
	if len(msgs) != 2 || msgs[0].Content != "[hint request] Double" {
		t.Errorf("transcript = %+v", msgs)
	}
}

func TestStartChallengeFromBank(t *testing.T) {
	env := newTestEnv(t)
	iv := env.newInterview(t)

	rec := env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/challenge", map[string]any{"bankId": 42})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing bank challenge: status = %d", rec.Code)
	}

	ch := doubleChallenge()
	ch.Language = lang.Go
	ch.FunctionSignature = "func double(n int) int"
	id, err := env.store.InsertBankChallenge(model.BankChallenge{Difficulty: model.DifficultyEasy, Topic: "math", Challenge: ch})
	if err != nil {
		t.Fatal(err)
	}

	bank := decode[bankResponse](t, env.do(t, http.MethodGet, "/api/bank?topic=math", nil))
	if len(bank.Challenges) != 1 || bank.Challenges[0].ID != id || len(bank.Topics) != 1 {
		t.Errorf("bank = %+v", bank)
	}

	rec = env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/challenge", map[string]any{"bankId": id})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	got := decode[chatResponse](t, rec)
	if got.Challenge.Language != lang.Go || !strings.Contains(got.Code, "func double(n int) int {") {
		t.Errorf("started = %+v", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/interviews/"+iv.ID+"/challenge", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("end challenge: status = %d", rec.Code)
	}
	if active, _ := env.store.ActiveChallenge(iv.ID); active != nil {
		t.Error("challenge still open after DELETE")
	}
}

func TestEndedInterviewRejectsChanges(t *testing.T) {
	env := newTestEnv(t)
	iv := env.newInterview(t)
	env.startChallenge(t, iv.ID)

	if rec := env.do(t, http.MethodDelete, "/api/interviews/"+iv.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("end interview: status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/run", map[string]string{"code": "x"}); rec.Code != http.StatusConflict {
		t.Errorf("run after end: status = %d, want 409", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/api/interviews/"+iv.ID, nil)
	got := decode[interviewResponse](t, rec)
	if got.Interview.EndedAt == nil || got.Coding.IsActive {
		t.Errorf("interview = %+v", got)
	}
}

func createUser(t *testing.T, s *store.Store, username, password string, role model.UserRole) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateUser(model.User{Username: username, PasswordHash: string(hash), Role: role, Active: true}); err != nil {
		t.Fatal(err)
	}
}

const testCSRFToken = "test-csrf-token"

func csrfCookie() *http.Cookie {
	return &http.Cookie{Name: csrfCookieName, Value: testCSRFToken}
}

// postForm submits an admin form the way a browser does after loading the
// page: the csrf_token cookie is echoed in the form body.
func (e *testEnv) postForm(t *testing.T, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(csrfCookie())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	return e.postForm(t, "/admin/login", url.Values{"username": {username}, "password": {password}})
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.store, "admin", "secret", model.UserRoleAdmin)
	createUser(t, env.store, "rev", "secret", model.UserRoleReviewer)

	rec := env.do(t, http.MethodGet, "/admin/", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/login" {
		t.Errorf("anonymous: %d %s", rec.Code, rec.Header().Get("Location"))
	}

	if rec := env.login(t, "admin", "wrong"); rec.Code != http.StatusUnauthorized ||
		!strings.Contains(rec.Body.String(), "Invalid username or password.") {
		t.Errorf("bad password: %d", rec.Code)
	}

	admin := sessionCookie(t, env.login(t, "admin", "secret"))
	if rec := env.do(t, http.MethodGet, "/admin/", nil, admin); rec.Code != http.StatusOK {
		t.Errorf("history page: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/admin/users", nil, admin); rec.Code != http.StatusOK {
		t.Errorf("users page as admin: %d", rec.Code)
	}

	reviewer := sessionCookie(t, env.login(t, "rev", "secret"))
	if rec := env.do(t, http.MethodGet, "/admin/", nil, reviewer); rec.Code != http.StatusOK {
		t.Errorf("history page as reviewer: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/admin/users", nil, reviewer); rec.Code != http.StatusForbidden {
		t.Errorf("users page as reviewer: %d, want 403", rec.Code)
	}

	if rec := env.postForm(t, "/admin/logout", nil, admin); rec.Code != http.StatusSeeOther {
		t.Errorf("logout: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/admin/", nil, admin); rec.Code != http.StatusSeeOther {
		t.Errorf("after logout: %d, want redirect", rec.Code)
	}
}

func TestAdminCSRF(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.store, "admin", "secret", model.UserRoleAdmin)

	rec := env.do(t, http.MethodGet, "/admin/login", nil)
	var issued *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			issued = c
		}
	}
	if issued == nil || issued.Value == "" {
		t.Fatal("login page did not issue a csrf cookie")
	}
	if !strings.Contains(rec.Body.String(), `name="csrf_token" value="`+issued.Value+`"`) {
		t.Errorf("login form does not carry the issued token: %s", rec.Body)
	}

	admin := sessionCookie(t, env.login(t, "admin", "secret"))

	post := func(form url.Values, cookies ...*http.Cookie) int {
		req := httptest.NewRequest(http.MethodPost, "/admin/users", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec.Code
	}
	user := url.Values{"username": {"eve"}, "password": {"pw"}, "role": {"reviewer"}}

	tests := []struct {
		name    string
		token   string
		cookies []*http.Cookie
	}{
		{"no cookie", testCSRFToken, []*http.Cookie{admin}},
		{"no form token", "", []*http.Cookie{admin, csrfCookie()}},
		{"mismatched token", "forged", []*http.Cookie{admin, csrfCookie()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			for k, v := range user {
				form[k] = v
			}
			if tt.token != "" {
				form.Set("csrf_token", tt.token)
			}
			if code := post(form, tt.cookies...); code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", code)
			}
		})
	}
	if u, _ := env.store.GetUserByUsername("eve"); u != nil {
		t.Error("user created without a valid csrf token")
	}

	if rec := env.postForm(t, "/admin/users", user, admin); rec.Code >= http.StatusBadRequest {
		t.Errorf("valid token rejected: %d", rec.Code)
	}
	if u, _ := env.store.GetUserByUsername("eve"); u == nil {
		t.Error("user not created with a valid csrf token")
	}
}

func TestAdminExport(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.store, "admin", "secret", model.UserRoleAdmin)
	iv := env.newInterview(t)
	env.startChallenge(t, iv.ID)
	env.runner.out = passingOutput()
	env.do(t, http.MethodPost, "/api/interviews/"+iv.ID+"/run", map[string]string{"code": "x"})

	cookie := sessionCookie(t, env.login(t, "admin", "secret"))
	rec := env.do(t, http.MethodGet, "/admin/export", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	export := decode[model.HistoryExport](t, rec)
	if export.Count != 1 || len(export.Interviews[0].Challenges) != 1 || !export.Interviews[0].Challenges[0].Solved {
		t.Errorf("export = %+v", export)
	}
}

func TestAdminUploadChallenges(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.store, "admin", "secret", model.UserRoleAdmin)
	cookie := sessionCookie(t, env.login(t, "admin", "secret"))

	upload := func(content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("challenges_file", "bank.json")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
		mw.WriteField("csrf_token", testCSRFToken)
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/admin/challenges", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.AddCookie(cookie)
		req.AddCookie(csrfCookie())
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	if rec := upload(`not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON: %d", rec.Code)
	}

	bank := `[{"difficulty":"easy","topic":"math","title":"Double","functionSignature":"def double(n):","testCases":[{"input":"2","output":"4"}]}]`
	rec := upload(bank)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Imported 1 challenge.") {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body)
	}
	rec = upload(bank)
	if !strings.Contains(rec.Body.String(), "already been imported") {
		t.Errorf("duplicate upload not detected: %s", rec.Body)
	}
	if n, _ := env.store.BankChallengeCount(); n != 1 {
		t.Errorf("bank has %d challenges, want 1", n)
	}
}
