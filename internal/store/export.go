package store

import (
	"fmt"

	"github.com/pavelanni/mockinterview/internal/model"
)

// ExportHistory builds export-ready results for every interview.
func (s *Store) ExportHistory() ([]model.InterviewResult, error) {
	interviews, err := s.ListInterviews()
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}

	results := make([]model.InterviewResult, 0, len(interviews))
	for _, iv := range interviews {
		r, err := s.exportInterview(iv)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Store) exportInterview(iv model.Interview) (model.InterviewResult, error) {
	msgs, err := s.GetMessages(iv.ID)
	if err != nil {
		return model.InterviewResult{}, fmt.Errorf("get messages of %s: %w", iv.ID, err)
	}
	conv := make([]model.ConversationMsg, 0, len(msgs))
	for _, m := range msgs {
		conv = append(conv, model.ConversationMsg{
			Role:    string(m.Role),
			Content: m.Content,
			At:      m.CreatedAt,
		})
	}

	recs, err := s.ListChallenges(iv.ID)
	if err != nil {
		return model.InterviewResult{}, fmt.Errorf("list challenges of %s: %w", iv.ID, err)
	}
	challenges := make([]model.ChallengeResult, 0, len(recs))
	for _, rec := range recs {
		runs, err := s.ListRuns(rec.ID)
		if err != nil {
			return model.InterviewResult{}, fmt.Errorf("list runs of challenge %d: %w", rec.ID, err)
		}
		evals, err := s.ListEvaluations(rec.ID)
		if err != nil {
			return model.InterviewResult{}, fmt.Errorf("list evaluations of challenge %d: %w", rec.ID, err)
		}

		solved := false
		for _, r := range runs {
			if r.AllPassed {
				solved = true
				break
			}
		}

		challenges = append(challenges, model.ChallengeResult{
			Title:       rec.Challenge.Title,
			Language:    string(rec.Challenge.Language),
			Signature:   rec.Challenge.FunctionSignature,
			NumTests:    len(rec.Challenge.TestCases),
			Runs:        runs,
			Evaluations: evals,
			Solved:      solved,
		})
	}

	return model.InterviewResult{
		ID:           iv.ID,
		Language:     iv.Language,
		StartedAt:    iv.StartedAt,
		EndedAt:      iv.EndedAt,
		Conversation: conv,
		Challenges:   challenges,
	}, nil
}
