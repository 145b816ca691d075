package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/mockinterview/internal/model"
)

// StartChallenge ends any open challenge of the interview and records ch as the current one.
func (s *Store) StartChallenge(interviewID string, ch model.CodingChallenge) (int64, error) {
	data, err := json.Marshal(ch)
	if err != nil {
		return 0, fmt.Errorf("marshal challenge: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(
		`UPDATE challenges SET ended_at = ? WHERE interview_id = ? AND ended_at IS NULL`,
		now, interviewID,
	); err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		`INSERT INTO challenges (interview_id, challenge, started_at) VALUES (?, ?, ?)`,
		interviewID, string(data), now,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// EndChallenge marks a challenge as finished.
func (s *Store) EndChallenge(id int64) error {
	_, err := s.db.Exec(
		`UPDATE challenges SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		time.Now(), id,
	)
	return err
}

// ActiveChallenge returns the open challenge of an interview, or nil.
func (s *Store) ActiveChallenge(interviewID string) (*model.ChallengeRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, interview_id, challenge, started_at, ended_at FROM challenges
		 WHERE interview_id = ? AND ended_at IS NULL ORDER BY id DESC LIMIT 1`,
		interviewID,
	)
	rec, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListChallenges returns every challenge presented in an interview, oldest first.
func (s *Store) ListChallenges(interviewID string) ([]model.ChallengeRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, interview_id, challenge, started_at, ended_at FROM challenges
		 WHERE interview_id = ? ORDER BY id`,
		interviewID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []model.ChallengeRecord
	for rows.Next() {
		rec, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChallenge(sc scanner) (model.ChallengeRecord, error) {
	var rec model.ChallengeRecord
	var data string
	if err := sc.Scan(&rec.ID, &rec.InterviewID, &data, &rec.StartedAt, &rec.EndedAt); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(data), &rec.Challenge); err != nil {
		return rec, fmt.Errorf("unmarshal challenge %d: %w", rec.ID, err)
	}
	return rec, nil
}

// RecordRun stores the outcome of running a challenge's tests.
func (s *Store) RecordRun(challengeID int64, code string, out model.CodeOutput) (int64, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return 0, fmt.Errorf("marshal output: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO runs (challenge_id, code, output, all_passed, created_at) VALUES (?, ?, ?, ?, ?)`,
		challengeID, code, string(data), out.AllPassed(), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRuns returns the runs of a challenge, oldest first.
func (s *Store) ListRuns(challengeID int64) ([]model.RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, challenge_id, code, output, all_passed, created_at FROM runs
		 WHERE challenge_id = ? ORDER BY id`,
		challengeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastRun returns the most recent run across all challenges of an interview, or nil.
func (s *Store) LastRun(interviewID string) (*model.RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT r.id, r.challenge_id, r.code, r.output, r.all_passed, r.created_at
		 FROM runs r JOIN challenges c ON c.id = r.challenge_id
		 WHERE c.interview_id = ? ORDER BY r.id DESC LIMIT 1`,
		interviewID,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRun(sc scanner) (model.RunRecord, error) {
	var r model.RunRecord
	var data string
	if err := sc.Scan(&r.ID, &r.ChallengeID, &r.Code, &data, &r.AllPassed, &r.CreatedAt); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(data), &r.Output); err != nil {
		return r, fmt.Errorf("unmarshal run %d: %w", r.ID, err)
	}
	return r, nil
}

// RecordEvaluation stores an LLM evaluation of submitted code.
func (s *Store) RecordEvaluation(challengeID int64, code string, result model.EvaluationResult) (int64, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("marshal evaluation: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO evaluations (challenge_id, code, result, created_at) VALUES (?, ?, ?, ?)`,
		challengeID, code, string(data), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEvaluations returns the evaluations of a challenge, oldest first.
func (s *Store) ListEvaluations(challengeID int64) ([]model.EvaluationRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, challenge_id, code, result, created_at FROM evaluations
		 WHERE challenge_id = ? ORDER BY id`,
		challengeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var evals []model.EvaluationRecord
	for rows.Next() {
		var e model.EvaluationRecord
		var data string
		if err := rows.Scan(&e.ID, &e.ChallengeID, &e.Code, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &e.Result); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation %d: %w", e.ID, err)
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
