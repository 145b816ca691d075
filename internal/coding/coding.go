// Package coding tracks the lifecycle of the coding challenge shown during an interview.
package coding

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pavelanni/mockinterview/internal/lang"
	"github.com/pavelanni/mockinterview/internal/model"
)

var (
	// ErrNoActiveChallenge is returned when an action needs an active challenge.
	ErrNoActiveChallenge = errors.New("no active challenge")
	// ErrRunInProgress is returned when a run is requested while another is executing.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrSubmitInProgress is returned when code is submitted while an evaluation is pending.
	ErrSubmitInProgress = errors.New("an evaluation is already in progress")
	// ErrChallengeChanged is returned when the challenge was ended or replaced
	// while a run or evaluation was in flight. Its outcome is discarded.
	ErrChallengeChanged = errors.New("challenge ended before the result arrived")
)

// TestRunner executes a challenge's test cases.
type TestRunner interface {
	Run(ctx context.Context, l lang.Language, code, signature string, cases []model.TestCase) (model.CodeOutput, error)
}

// Evaluator grades a submitted solution.
type Evaluator interface {
	EvaluateCode(ctx context.Context, ch model.CodingChallenge, code string) (model.EvaluationResult, error)
}

// Tracker owns the coding state of one interview. At most one challenge is
// active; starting another discards the previous one.
type Tracker struct {
	runner TestRunner
	eval   Evaluator

	mu    sync.Mutex
	state model.CodingState
	gen   uint64 // bumped on every Start and End
}

// NewTracker creates an idle tracker.
func NewTracker(runner TestRunner, eval Evaluator) *Tracker {
	return &Tracker{runner: runner, eval: eval}
}

// Start activates ch and returns the starter code for the editor.
func (t *Tracker) Start(ch model.CodingChallenge) string {
	if !ch.Language.Valid() {
		ch.Language = lang.Default
	}
	code := GenerateDefaultCode(ch)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.state = model.CodingState{
		IsActive:  true,
		Challenge: &ch,
		UserCode:  code,
	}
	return code
}

// End returns the tracker to idle, discarding all transient state.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.state = model.CodingState{}
}

// ClearFeedback drops the last evaluation result.
func (t *Tracker) ClearFeedback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Feedback = nil
}

// Active reports whether a challenge is active and returns it.
func (t *Tracker) Active() (model.CodingChallenge, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.IsActive {
		return model.CodingChallenge{}, false
	}
	return *t.state.Challenge, true
}

// State returns a snapshot of the coding state.
func (t *Tracker) State() model.CodingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state
	if s.Feedback != nil {
		fb := *s.Feedback
		s.Feedback = &fb
	}
	if s.Output != nil {
		out := *s.Output
		out.TestResults = append([]model.TestResult(nil), s.Output.TestResults...)
		s.Output = &out
	}
	return s
}

// Run executes the active challenge's test cases against code. The tracker
// is unlocked while the tests execute so State stays responsive.
func (t *Tracker) Run(ctx context.Context, code string) (model.CodeOutput, error) {
	t.mu.Lock()
	if !t.state.IsActive {
		t.mu.Unlock()
		return model.CodeOutput{}, ErrNoActiveChallenge
	}
	if t.state.IsRunning {
		t.mu.Unlock()
		return model.CodeOutput{}, ErrRunInProgress
	}
	ch := *t.state.Challenge
	gen := t.gen
	t.state.IsRunning = true
	t.state.UserCode = code
	t.state.Output = nil
	t.mu.Unlock()

	out, err := t.runner.Run(ctx, ch.Language, code, ch.FunctionSignature, ch.TestCases)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return out, ErrChallengeChanged
	}
	t.state.IsRunning = false
	if err != nil {
		return out, err
	}
	t.state.Output = &out
	return out, nil
}

// Submit asks the evaluator to grade code. Attempts only count evaluations
// that produced a result.
func (t *Tracker) Submit(ctx context.Context, code string) (model.EvaluationResult, error) {
	t.mu.Lock()
	if !t.state.IsActive {
		t.mu.Unlock()
		return model.EvaluationResult{}, ErrNoActiveChallenge
	}
	if t.state.IsSubmitting {
		t.mu.Unlock()
		return model.EvaluationResult{}, ErrSubmitInProgress
	}
	ch := *t.state.Challenge
	gen := t.gen
	t.state.IsSubmitting = true
	t.state.Feedback = nil
	t.mu.Unlock()

	res, err := t.eval.EvaluateCode(ctx, ch, code)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return res, ErrChallengeChanged
	}
	t.state.IsSubmitting = false
	if err != nil {
		return res, err
	}
	t.state.Attempts++
	t.state.Feedback = &res
	t.state.UserCode = code
	return res, nil
}

// GenerateDefaultCode renders the editor stub for a challenge. The signature
// is kept as written and given a body; without one the language's template
// produces a stub for the fallback function name.
func GenerateDefaultCode(ch model.CodingChallenge) string {
	profile, err := lang.ProfileOf(ch.Language)
	if err != nil {
		profile, _ = lang.ProfileOf(lang.Default)
	}
	if strings.TrimSpace(ch.FunctionSignature) == "" {
		return profile.Template(lang.FallbackName, "", "")
	}
	return profile.Stub(ch.FunctionSignature)
}
