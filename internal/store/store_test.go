package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/mockinterview/internal/lang"
	"github.com/pavelanni/mockinterview/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestInterview(t *testing.T, s *Store) model.Interview {
	t.Helper()
	iv, err := s.CreateInterview(string(lang.Python))
	if err != nil {
		t.Fatalf("CreateInterview: %v", err)
	}
	return iv
}

func testChallenge(title string) model.CodingChallenge {
	return model.CodingChallenge{
		Title:             title,
		Description:       "Return twice n.",
		FunctionSignature: "def double(n: int) -> int:",
		Language:          lang.Python,
		TestCases:         []model.TestCase{{Input: "4", Output: "8"}, {Input: "0", Output: "0"}},
		Hints:             []string{"Multiply."},
	}
}

func strPtr(s string) *string { return &s }

func TestInterviewLifecycle(t *testing.T) {
	s := newTestStore(t)

	missing, err := s.GetInterview("nope")
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown interview")
	}

	iv := createTestInterview(t, s)
	if len(iv.ID) != 36 {
		t.Errorf("expected a UUID id, got %q", iv.ID)
	}

	got, err := s.GetInterview(iv.ID)
	if err != nil {
		t.Fatalf("GetInterview: %v", err)
	}
	if got == nil || got.Language != "python" || got.EndedAt != nil {
		t.Fatalf("unexpected interview: %+v", got)
	}

	if err := s.SetInterviewLanguage(iv.ID, "go"); err != nil {
		t.Fatalf("SetInterviewLanguage: %v", err)
	}
	if err := s.EndInterview(iv.ID); err != nil {
		t.Fatalf("EndInterview: %v", err)
	}
	got, _ = s.GetInterview(iv.ID)
	if got.Language != "go" {
		t.Errorf("language = %q, want go", got.Language)
	}
	if got.EndedAt == nil {
		t.Error("EndedAt not set")
	}

	list, err := s.ListInterviews()
	if err != nil {
		t.Fatalf("ListInterviews: %v", err)
	}
	if len(list) != 1 || list[0].ID != iv.ID {
		t.Errorf("ListInterviews = %+v", list)
	}
}

func TestMessages(t *testing.T) {
	s := newTestStore(t)
	iv := createTestInterview(t, s)

	contents := []struct {
		role    model.Role
		content string
	}{
		{model.RoleInterviewer, "Hi, tell me about yourself."},
		{model.RoleCandidate, "I write Go."},
		{model.RoleInterviewer, "Let's code."},
	}
	for _, c := range contents {
		if _, err := s.AddMessage(model.Message{InterviewID: iv.ID, Role: c.role, Content: c.content}); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	msgs, err := s.GetMessages(iv.ID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(contents))
	}
	for i, m := range msgs {
		if m.Role != contents[i].role || m.Content != contents[i].content {
			t.Errorf("message %d = %+v", i, m)
		}
		if m.CreatedAt.IsZero() {
			t.Errorf("message %d has no timestamp", i)
		}
	}

	other, _ := s.GetMessages("other")
	if len(other) != 0 {
		t.Errorf("messages leaked across interviews: %+v", other)
	}
}

func TestChallengeLifecycle(t *testing.T) {
	s := newTestStore(t)
	iv := createTestInterview(t, s)

	active, err := s.ActiveChallenge(iv.ID)
	if err != nil {
		t.Fatalf("ActiveChallenge: %v", err)
	}
	if active != nil {
		t.Fatal("expected no active challenge")
	}

	first, err := s.StartChallenge(iv.ID, testChallenge("First"))
	if err != nil {
		t.Fatalf("StartChallenge: %v", err)
	}
	second, err := s.StartChallenge(iv.ID, testChallenge("Second"))
	if err != nil {
		t.Fatalf("StartChallenge: %v", err)
	}

	active, err = s.ActiveChallenge(iv.ID)
	if err != nil {
		t.Fatalf("ActiveChallenge: %v", err)
	}
	if active == nil || active.ID != second {
		t.Fatalf("active = %+v, want challenge %d", active, second)
	}
	if active.Challenge.FunctionSignature != "def double(n: int) -> int:" || len(active.Challenge.TestCases) != 2 {
		t.Errorf("challenge not round-tripped: %+v", active.Challenge)
	}

	list, err := s.ListChallenges(iv.ID)
	if err != nil {
		t.Fatalf("ListChallenges: %v", err)
	}
	if len(list) != 2 || list[0].ID != first {
		t.Fatalf("ListChallenges = %+v", list)
	}
	if list[0].EndedAt == nil {
		t.Error("starting a new challenge should end the previous one")
	}

	if err := s.EndChallenge(second); err != nil {
		t.Fatalf("EndChallenge: %v", err)
	}
	active, _ = s.ActiveChallenge(iv.ID)
	if active != nil {
		t.Errorf("challenge still active after End: %+v", active)
	}
}

func TestRunsAndEvaluations(t *testing.T) {
	s := newTestStore(t)
	iv := createTestInterview(t, s)
	chID, err := s.StartChallenge(iv.ID, testChallenge("Double"))
	if err != nil {
		t.Fatal(err)
	}

	last, err := s.LastRun(iv.ID)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if last != nil {
		t.Fatal("expected no runs yet")
	}

	failed := model.Failed("Compilation error")
	passed := model.CodeOutput{TestResults: []model.TestResult{{Input: "4", Expected: "8", Actual: "8", Passed: true}}}
	if _, err := s.RecordRun(chID, "def double(n) return", failed); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if _, err := s.RecordRun(chID, "def double(n):\n    return n*2", passed); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := s.ListRuns(chID)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].AllPassed || runs[0].Output.ErrorMessage() != "Compilation error" {
		t.Errorf("first run = %+v", runs[0])
	}
	if !runs[1].AllPassed || len(runs[1].Output.TestResults) != 1 {
		t.Errorf("second run = %+v", runs[1])
	}

	last, err = s.LastRun(iv.ID)
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if last == nil || last.ID != runs[1].ID {
		t.Errorf("LastRun = %+v", last)
	}

	res := model.EvaluationResult{Correct: false, Feedback: "Close.", PassedTests: 1, TotalTests: 2, Hint: "Check zero."}
	if _, err := s.RecordEvaluation(chID, "code", res); err != nil {
		t.Fatalf("RecordEvaluation: %v", err)
	}
	evals, err := s.ListEvaluations(chID)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(evals) != 1 || evals[0].Result != res {
		t.Errorf("ListEvaluations = %+v", evals)
	}
}

func TestBankChallenges(t *testing.T) {
	s := newTestStore(t)

	count, err := s.BankChallengeCount()
	if err != nil {
		t.Fatalf("BankChallengeCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty bank, got %d", count)
	}

	seed := []model.BankChallenge{
		{Difficulty: model.DifficultyEasy, Topic: "arrays", Challenge: testChallenge("Sum")},
		{Difficulty: model.DifficultyEasy, Topic: "strings", Challenge: testChallenge("Reverse")},
		{Difficulty: model.DifficultyHard, Topic: "arrays", Challenge: testChallenge("Median")},
	}
	var ids []int64
	for _, bc := range seed {
		id, err := s.InsertBankChallenge(bc)
		if err != nil {
			t.Fatalf("InsertBankChallenge: %v", err)
		}
		ids = append(ids, id)
	}

	got, err := s.GetBankChallenge(ids[1])
	if err != nil {
		t.Fatalf("GetBankChallenge: %v", err)
	}
	if got == nil || got.Challenge.Title != "Reverse" || got.Topic != "strings" {
		t.Errorf("GetBankChallenge = %+v", got)
	}
	missing, err := s.GetBankChallenge(999)
	if err != nil || missing != nil {
		t.Errorf("GetBankChallenge(999) = %+v, %v", missing, err)
	}

	tests := []struct {
		difficulty, topic string
		want              int
	}{
		{"", "", 3},
		{"easy", "", 2},
		{"", "arrays", 2},
		{"hard", "arrays", 1},
		{"medium", "", 0},
	}
	for _, tt := range tests {
		list, err := s.ListBankChallenges(tt.difficulty, tt.topic)
		if err != nil {
			t.Fatalf("ListBankChallenges: %v", err)
		}
		if len(list) != tt.want {
			t.Errorf("ListBankChallenges(%q, %q) returned %d, want %d", tt.difficulty, tt.topic, len(list), tt.want)
		}
	}

	topics, err := s.ListDistinctTopics()
	if err != nil {
		t.Fatalf("ListDistinctTopics: %v", err)
	}
	if len(topics) != 2 || topics[0] != "arrays" || topics[1] != "strings" {
		t.Errorf("topics = %v", topics)
	}
}

func TestImportBankChallenges(t *testing.T) {
	s := newTestStore(t)

	valid := model.ChallengeImport{Topic: "arrays", CodingChallenge: testChallenge("Sum")}
	valid.Language = ""

	bad := []struct {
		name string
		edit func(*model.ChallengeImport)
	}{
		{"no title", func(ci *model.ChallengeImport) { ci.Title = "" }},
		{"no signature", func(ci *model.ChallengeImport) { ci.FunctionSignature = "" }},
		{"no tests", func(ci *model.ChallengeImport) { ci.TestCases = nil }},
		{"bad language", func(ci *model.ChallengeImport) { ci.Language = "cobol" }},
		{"bad difficulty", func(ci *model.ChallengeImport) { ci.Difficulty = "extreme" }},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			ci := valid
			tt.edit(&ci)
			if _, err := s.ImportBankChallenges([]model.ChallengeImport{valid, ci}); err == nil {
				t.Error("expected validation error")
			}
			if n, _ := s.BankChallengeCount(); n != 0 {
				t.Errorf("partial import stored %d challenges", n)
			}
		})
	}

	n, err := s.ImportBankChallenges([]model.ChallengeImport{valid})
	if err != nil {
		t.Fatalf("ImportBankChallenges: %v", err)
	}
	if n != 1 {
		t.Errorf("imported %d, want 1", n)
	}
	list, _ := s.ListBankChallenges("", "")
	if len(list) != 1 {
		t.Fatalf("bank has %d challenges", len(list))
	}
	if list[0].Difficulty != model.DifficultyMedium || list[0].Challenge.Language != lang.Default {
		t.Errorf("defaults not applied: %+v", list[0])
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash("/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestUsersAndSessions(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser(model.User{Username: "admin", PasswordHash: "x", Role: model.UserRoleAdmin, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(model.User{Username: "admin", PasswordHash: "y", Role: model.UserRoleReviewer}); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate CreateUser err = %v, want ErrUsernameTaken", err)
	}

	u, err := s.GetUserByUsername("admin")
	if err != nil || u == nil || u.ID != id || !u.Active {
		t.Fatalf("GetUserByUsername = %+v, %v", u, err)
	}
	if u, _ := s.GetUserByUsername("ghost"); u != nil {
		t.Error("expected nil for unknown user")
	}

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	sess, err := s.GetAuthSession(token)
	if err != nil || sess == nil || sess.UserID != id {
		t.Fatalf("GetAuthSession = %+v, %v", sess, err)
	}
	if !sess.ExpiresAt.After(time.Now()) {
		t.Error("session already expired")
	}

	if err := s.ToggleUserActive(id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ = s.GetUserByID(id)
	if u.Active {
		t.Error("user still active after toggle")
	}
	if sess, _ := s.GetAuthSession(token); sess != nil {
		t.Error("deactivating a user should revoke their sessions")
	}

	n, err := s.UserCount()
	if err != nil || n != 1 {
		t.Errorf("UserCount = %d, %v", n, err)
	}
	users, err := s.ListUsers()
	if err != nil || len(users) != 1 {
		t.Errorf("ListUsers = %+v, %v", users, err)
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateUser(model.User{Username: "r", PasswordHash: "x", Role: model.UserRoleReviewer, Active: true})
	if err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if _, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"stale", id, past.Add(-AuthSessionTTL), past,
	); err != nil {
		t.Fatal(err)
	}
	fresh, _ := s.CreateAuthSession(id)

	n, err := s.CleanupExpiredSessions()
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d sessions, want 1", n)
	}
	if sess, _ := s.GetAuthSession(fresh); sess == nil {
		t.Error("fresh session removed")
	}
}

func TestExportHistory(t *testing.T) {
	s := newTestStore(t)
	iv := createTestInterview(t, s)
	if _, err := s.AddMessage(model.Message{InterviewID: iv.ID, Role: model.RoleInterviewer, Content: "Let's code."}); err != nil {
		t.Fatal(err)
	}
	chID, err := s.StartChallenge(iv.ID, testChallenge("Double"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordRun(chID, "bad", model.CodeOutput{Error: strPtr("Runtime error"), TestResults: []model.TestResult{}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordRun(chID, "good", model.CodeOutput{TestResults: []model.TestResult{{Passed: true}, {Passed: true}}}); err != nil {
		t.Fatal(err)
	}
	createTestInterview(t, s)

	results, err := s.ExportHistory()
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d interviews, want 2", len(results))
	}

	var found *model.InterviewResult
	for i := range results {
		if results[i].ID == iv.ID {
			found = &results[i]
		}
	}
	if found == nil {
		t.Fatal("interview missing from export")
	}
	if len(found.Conversation) != 1 || found.Conversation[0].Role != "assistant" {
		t.Errorf("conversation = %+v", found.Conversation)
	}
	if len(found.Challenges) != 1 {
		t.Fatalf("challenges = %+v", found.Challenges)
	}
	c := found.Challenges[0]
	if c.Title != "Double" || c.NumTests != 2 || len(c.Runs) != 2 || !c.Solved {
		t.Errorf("challenge result = %+v", c)
	}
}
