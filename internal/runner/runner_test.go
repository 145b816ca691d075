package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/mockinterview/internal/lang"
	"github.com/pavelanni/mockinterview/internal/model"
	"github.com/pavelanni/mockinterview/internal/sandbox"
)

// scripted returns one canned response per call, in order.
type scripted struct {
	results []*sandbox.Result
	errs    []error
	sources []string
}

func (s *scripted) Execute(_ context.Context, source string, _ lang.Profile) (*sandbox.Result, error) {
	i := len(s.sources)
	s.sources = append(s.sources, source)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return s.results[i], nil
}

func accepted(stdout string) *sandbox.Result {
	return &sandbox.Result{Status: sandbox.Status{ID: sandbox.StatusAccepted, Description: "Accepted"}, Stdout: stdout}
}

// doubler plays the sandbox for the double() challenge by evaluating the call in the harness.
type doubler struct{ calls int }

func (d *doubler) Execute(_ context.Context, source string, p lang.Profile) (*sandbox.Result, error) {
	d.calls++
	if p.ID != 71 {
		return nil, errors.New("unexpected language")
	}
	last := source[strings.LastIndex(source, "\n")+1:]
	switch last {
	case "print(double(4))":
		return accepted("8"), nil
	case "print(double(0))":
		return accepted("0"), nil
	}
	return nil, errors.New("unexpected program: " + last)
}

func TestRunDoubleEndToEnd(t *testing.T) {
	exec := &doubler{}
	cases := []model.TestCase{{Input: "4", Output: "8"}, {Input: "0", Output: "0"}}

	out, err := New(exec).Run(context.Background(), lang.Python, "def double(n):\n    return n*2", "def double(n: int) -> int:", cases)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Error != nil {
		t.Fatalf("unexpected error %q", *out.Error)
	}
	want := []model.TestResult{
		{Input: "4", Expected: "8", Actual: "8", Passed: true},
		{Input: "0", Expected: "0", Actual: "0", Passed: true},
	}
	if len(out.TestResults) != len(want) {
		t.Fatalf("got %d results, want %d", len(out.TestResults), len(want))
	}
	for i := range want {
		if out.TestResults[i] != want[i] {
			t.Errorf("result %d = %+v, want %+v", i, out.TestResults[i], want[i])
		}
	}
	if !out.AllPassed() {
		t.Error("AllPassed() = false")
	}
	if exec.calls != 2 {
		t.Errorf("sandbox called %d times, want 2", exec.calls)
	}
}

func TestRunFailFast(t *testing.T) {
	tests := []struct {
		name    string
		second  *sandbox.Result
		err     error
		wantMsg string
	}{
		{
			name:    "compile error",
			second:  &sandbox.Result{Status: sandbox.Status{ID: sandbox.StatusCompilationError}, CompileOutput: "SyntaxError: invalid syntax"},
			wantMsg: "SyntaxError: invalid syntax",
		},
		{
			name:    "timeout",
			second:  &sandbox.Result{Status: sandbox.Status{ID: sandbox.StatusTimeLimitExceeded}},
			wantMsg: "Time limit exceeded - possible infinite loop",
		},
		{
			name:    "runtime error",
			second:  &sandbox.Result{Status: sandbox.Status{ID: sandbox.StatusRuntimeError}, Stderr: "ZeroDivisionError"},
			wantMsg: "ZeroDivisionError",
		},
		{
			name:    "api error",
			err:     &sandbox.APIError{StatusCode: 503},
			wantMsg: "Judge0 API error: 503",
		},
		{
			name:    "transport error",
			err:     errors.New("dial tcp: connection refused"),
			wantMsg: "dial tcp: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &scripted{
				results: []*sandbox.Result{accepted("1"), tt.second, accepted("3")},
				errs:    []error{nil, tt.err, nil},
			}
			cases := []model.TestCase{{Input: "1", Output: "1"}, {Input: "2", Output: "2"}, {Input: "3", Output: "3"}}

			out, err := New(exec).Run(context.Background(), lang.Python, "def f(x): return x", "def f(x):", cases)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if out.ErrorMessage() != tt.wantMsg {
				t.Errorf("error = %q, want %q", out.ErrorMessage(), tt.wantMsg)
			}
			if out.TestResults == nil || len(out.TestResults) != 0 {
				t.Errorf("expected empty test results, got %+v", out.TestResults)
			}
			if len(exec.sources) != 2 {
				t.Errorf("sandbox called %d times, want 2", len(exec.sources))
			}
			if out.AllPassed() {
				t.Error("AllPassed() must be false after an infrastructure failure")
			}
		})
	}
}

func TestRunTrimsBeforeComparing(t *testing.T) {
	exec := &scripted{results: []*sandbox.Result{accepted("5\n"), accepted(" 6 "), accepted("7")}}
	cases := []model.TestCase{
		{Input: "2, 3", Output: "5"},
		{Input: "3, 3", Output: "6\n"},
		{Input: "3, 3", Output: "6"},
	}

	out, err := New(exec).Run(context.Background(), lang.Python, "def add(a, b): return a + b", "def add(a, b):", cases)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantPassed := []bool{true, true, false}
	for i, r := range out.TestResults {
		if r.Passed != wantPassed[i] {
			t.Errorf("result %d passed = %v, want %v (%+v)", i, r.Passed, wantPassed[i], r)
		}
	}
	if out.AllPassed() {
		t.Error("AllPassed() = true with a failing case")
	}
	if got := out.PassedCount(); got != 2 {
		t.Errorf("PassedCount() = %d, want 2", got)
	}
}

func TestRunPreservesOrder(t *testing.T) {
	exec := &scripted{results: []*sandbox.Result{accepted("a"), accepted("b"), accepted("c")}}
	cases := []model.TestCase{{Input: `"a"`, Output: "a"}, {Input: `"b"`, Output: "b"}, {Input: `"c"`, Output: "c"}}

	out, err := New(exec).Run(context.Background(), lang.JavaScript, "function id(x) { return x; }", "function id(x)", cases)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, src := range exec.sources {
		if !strings.HasSuffix(src, "console.log(id("+cases[i].Input+"));") {
			t.Errorf("program %d does not call test %d: %q", i, i, src)
		}
		if out.TestResults[i].Input != cases[i].Input {
			t.Errorf("result %d input = %q", i, out.TestResults[i].Input)
		}
	}
}

func TestRunFallbackName(t *testing.T) {
	exec := &scripted{results: []*sandbox.Result{accepted("1")}}
	_, err := New(exec).Run(context.Background(), lang.Python, "def solution(): return 1", "garbage text", []model.TestCase{{Input: "", Output: "1"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(exec.sources[0], "print(solution())") {
		t.Errorf("fallback name not used: %q", exec.sources[0])
	}
}

func TestRunNoCases(t *testing.T) {
	out, err := New(&scripted{}).Run(context.Background(), lang.Python, "", "def f():", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Error != nil || len(out.TestResults) != 0 {
		t.Errorf("unexpected output %+v", out)
	}
	if out.AllPassed() {
		t.Error("AllPassed() must be false with no results")
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	_, err := New(&scripted{}).Run(context.Background(), lang.Language("cobol"), "", "", []model.TestCase{{Input: "1"}})
	if !errors.Is(err, lang.ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
}
