package coding

import (
	"sync"

	"github.com/pavelanni/mockinterview/internal/model"
)

// Sessions holds one Tracker per interview with a challenge in play.
// Read paths never create trackers; Remove drops one once its challenge ends.
type Sessions struct {
	runner TestRunner
	eval   Evaluator

	mu       sync.Mutex
	trackers map[string]*Tracker
}

// NewSessions creates an empty session set whose trackers share runner and eval.
func NewSessions(runner TestRunner, eval Evaluator) *Sessions {
	return &Sessions{runner: runner, eval: eval, trackers: make(map[string]*Tracker)}
}

// Get returns the tracker for an interview, creating it on first use.
func (s *Sessions) Get(interviewID string) *Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[interviewID]
	if !ok {
		t = NewTracker(s.runner, s.eval)
		s.trackers[interviewID] = t
	}
	return t
}

// Lookup returns the tracker for an interview without creating one.
func (s *Sessions) Lookup(interviewID string) (*Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[interviewID]
	return t, ok
}

// State returns the interview's coding state, idle when it has no tracker.
func (s *Sessions) State(interviewID string) model.CodingState {
	if t, ok := s.Lookup(interviewID); ok {
		return t.State()
	}
	return model.CodingState{}
}

// Active returns the interview's active challenge, if any.
func (s *Sessions) Active(interviewID string) (model.CodingChallenge, bool) {
	if t, ok := s.Lookup(interviewID); ok {
		return t.Active()
	}
	return model.CodingChallenge{}, false
}

// Len reports how many trackers are held.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackers)
}

// Remove ends an interview's challenge and forgets its tracker.
func (s *Sessions) Remove(interviewID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trackers[interviewID]; ok {
		t.End()
		delete(s.trackers, interviewID)
	}
}
