package model

import (
	"context"
	"time"

	"github.com/pavelanni/mockinterview/internal/lang"
)

// UserRole represents a user's access level (distinct from Role which is chat message roles).
type UserRole string

const (
	// UserRoleAdmin can read history and manage the challenge bank.
	UserRoleAdmin UserRole = "admin"
	// UserRoleReviewer can read history only.
	UserRoleReviewer UserRole = "reviewer"
)

// User represents a back-office user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token rendered into forms.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context (empty string if not set).
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Role represents a chat message role in the interview transcript.
type Role string

const (
	RoleCandidate   Role = "user"
	RoleInterviewer Role = "assistant"
	RoleSystem      Role = "system"
)

// TestCase is one declarative check for a challenge. Input is a raw,
// language-specific positional argument list spliced verbatim into the harness.
type TestCase struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// CodingChallenge is the descriptor produced by the interviewer. It is not
// modified after it has been presented.
type CodingChallenge struct {
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	FunctionSignature string        `json:"functionSignature"`
	Language          lang.Language `json:"language"`
	TestCases         []TestCase    `json:"testCases"`
	Hints             []string      `json:"hints"`
	SolutionApproach  string        `json:"solutionApproach"`
}

// TestResult is the outcome of a single test case that ran to completion.
type TestResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}

// CodeOutput is the result of running all test cases of a challenge.
// A non-nil Error means an infrastructure failure and TestResults is empty.
type CodeOutput struct {
	Stdout      string       `json:"stdout"`
	Stderr      string       `json:"stderr"`
	ReturnValue *string      `json:"returnValue"`
	Error       *string      `json:"error"`
	TestResults []TestResult `json:"testResults"`
}

// Failed builds the output for a run aborted by an infrastructure failure.
func Failed(msg string) CodeOutput {
	return CodeOutput{Error: &msg, TestResults: []TestResult{}}
}

// ErrorMessage returns the infrastructure error message, or "".
func (o CodeOutput) ErrorMessage() string {
	if o.Error == nil {
		return ""
	}
	return *o.Error
}

// PassedCount returns the number of passing test results.
func (o CodeOutput) PassedCount() int {
	n := 0
	for _, r := range o.TestResults {
		if r.Passed {
			n++
		}
	}
	return n
}

// AllPassed reports whether the run completed and every test passed.
// An empty result list never counts as passing.
func (o CodeOutput) AllPassed() bool {
	if o.Error != nil || len(o.TestResults) == 0 {
		return false
	}
	return o.PassedCount() == len(o.TestResults)
}

// EvaluationResult is the LLM's assessment of a submitted solution.
type EvaluationResult struct {
	Correct     bool   `json:"correct"`
	Feedback    string `json:"feedback"`
	PassedTests int    `json:"passedTests"`
	TotalTests  int    `json:"totalTests"`
	Hint        string `json:"hint,omitempty"`
}

// CodingState is the lifecycle container for the active challenge of one interview.
type CodingState struct {
	IsActive     bool              `json:"isActive"`
	Challenge    *CodingChallenge  `json:"challenge"`
	UserCode     string            `json:"userCode"`
	IsSubmitting bool              `json:"isSubmitting"`
	IsRunning    bool              `json:"isRunning"`
	Attempts     int               `json:"attempts"`
	Feedback     *EvaluationResult `json:"feedback"`
	Output       *CodeOutput       `json:"output"`
}

// Interview is a persisted interview session.
type Interview struct {
	ID        string     `json:"id"`
	Language  string     `json:"language"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Message represents a chat message in an interview transcript.
type Message struct {
	ID          int64     `json:"id"`
	InterviewID string    `json:"interview_id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChallengeRecord is a challenge presented during an interview.
type ChallengeRecord struct {
	ID          int64           `json:"id"`
	InterviewID string          `json:"interview_id"`
	Challenge   CodingChallenge `json:"challenge"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
}

// RunRecord is one "Run" of the test cases against the candidate's code.
type RunRecord struct {
	ID          int64      `json:"id"`
	ChallengeID int64      `json:"challenge_id"`
	Code        string     `json:"code"`
	Output      CodeOutput `json:"output"`
	AllPassed   bool       `json:"all_passed"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EvaluationRecord is one submit-for-evaluation attempt.
type EvaluationRecord struct {
	ID          int64            `json:"id"`
	ChallengeID int64            `json:"challenge_id"`
	Code        string           `json:"code"`
	Result      EvaluationResult `json:"result"`
	CreatedAt   time.Time        `json:"created_at"`
}

// BankChallenge is a predefined challenge stored in the challenge bank.
type BankChallenge struct {
	ID         int64           `json:"id"`
	Difficulty Difficulty      `json:"difficulty"`
	Topic      string          `json:"topic"`
	Challenge  CodingChallenge `json:"challenge"`
}

// Difficulty represents challenge difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ChallengeImport is used for loading bank challenges from JSON.
type ChallengeImport struct {
	Difficulty Difficulty `json:"difficulty"`
	Topic      string     `json:"topic"`
	CodingChallenge
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/ru")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	Language      string // UI language for rendered pages
	AdvanceDelay  time.Duration
}
