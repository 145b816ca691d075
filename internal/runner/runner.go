// Package runner executes a challenge's test cases against a candidate's code.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/mockinterview/internal/harness"
	"github.com/pavelanni/mockinterview/internal/lang"
	"github.com/pavelanni/mockinterview/internal/model"
	"github.com/pavelanni/mockinterview/internal/sandbox"
)

// Executor runs a complete program remotely.
type Executor interface {
	Execute(ctx context.Context, source string, profile lang.Profile) (*sandbox.Result, error)
}

// Runner runs test cases one at a time and stops at the first infrastructure failure.
type Runner struct {
	exec Executor
}

// New creates a Runner that submits programs to exec.
func New(exec Executor) *Runner {
	return &Runner{exec: exec}
}

// Run executes every test case in order. Compile errors, runtime errors,
// timeouts and transport failures abort the run and are reported through
// CodeOutput.Error with no test results. The returned error is non-nil only
// when the language is not supported.
func (r *Runner) Run(ctx context.Context, l lang.Language, code, signature string, cases []model.TestCase) (model.CodeOutput, error) {
	profile, err := lang.ProfileOf(l)
	if err != nil {
		return model.CodeOutput{}, err
	}

	fn := lang.ExtractFunctionName(signature, l)
	if fn.Fallback {
		slog.Warn("could not parse function name from signature, using fallback",
			"language", l, "signature", signature, "function", fn.Name)
	}

	results := make([]model.TestResult, 0, len(cases))
	for i, tc := range cases {
		source, err := harness.Build(l, code, fn.Name, tc.Input)
		if err != nil {
			return model.CodeOutput{}, fmt.Errorf("build harness for test %d: %w", i+1, err)
		}

		res, err := r.exec.Execute(ctx, source, profile)
		if err != nil {
			slog.Info("test run aborted", "language", l, "test", i+1, "error", err)
			return model.Failed(err.Error()), nil
		}
		if msg := res.Failure(); msg != "" {
			slog.Info("test run aborted", "language", l, "test", i+1, "status", res.Status.ID)
			return model.Failed(msg), nil
		}

		actual := strings.TrimSpace(res.Stdout)
		expected := strings.TrimSpace(tc.Output)
		results = append(results, model.TestResult{
			Input:    tc.Input,
			Expected: expected,
			Actual:   actual,
			Passed:   actual == expected,
		})
	}

	return model.CodeOutput{TestResults: results}, nil
}
