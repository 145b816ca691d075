package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/mockinterview/internal/lang"
	"github.com/pavelanni/mockinterview/internal/model"
)

// InsertBankChallenge stores a predefined challenge.
func (s *Store) InsertBankChallenge(bc model.BankChallenge) (int64, error) {
	data, err := json.Marshal(bc.Challenge)
	if err != nil {
		return 0, fmt.Errorf("marshal challenge: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO bank_challenges (difficulty, topic, challenge) VALUES (?, ?, ?)`,
		bc.Difficulty, bc.Topic, string(data),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetBankChallenge returns a bank challenge by ID, or nil if it does not exist.
func (s *Store) GetBankChallenge(id int64) (*model.BankChallenge, error) {
	row := s.db.QueryRow(`SELECT id, difficulty, topic, challenge FROM bank_challenges WHERE id = ?`, id)
	bc, err := scanBankChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bc, nil
}

// ListBankChallenges returns bank challenges matching the given filters.
// Empty strings mean no filtering on that field.
func (s *Store) ListBankChallenges(difficulty, topic string) ([]model.BankChallenge, error) {
	query := `SELECT id, difficulty, topic, challenge FROM bank_challenges WHERE 1=1`
	var args []any
	if difficulty != "" {
		query += ` AND difficulty = ?`
		args = append(args, difficulty)
	}
	if topic != "" {
		query += ` AND topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.BankChallenge
	for rows.Next() {
		bc, err := scanBankChallenge(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, bc)
	}
	return list, rows.Err()
}

// ImportBankChallenges validates items and stores them in one transaction.
// Nothing is stored when any item is invalid. A missing language defaults to
// lang.Default and a missing difficulty to medium.
func (s *Store) ImportBankChallenges(items []model.ChallengeImport) (int, error) {
	for i := range items {
		if err := normalizeImport(&items[i]); err != nil {
			return 0, fmt.Errorf("challenge %d: %w", i+1, err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for i, ci := range items {
		data, err := json.Marshal(ci.CodingChallenge)
		if err != nil {
			return 0, fmt.Errorf("marshal challenge %d: %w", i+1, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO bank_challenges (difficulty, topic, challenge) VALUES (?, ?, ?)`,
			ci.Difficulty, ci.Topic, string(data),
		); err != nil {
			return 0, fmt.Errorf("insert challenge %d: %w", i+1, err)
		}
	}
	return len(items), tx.Commit()
}

func normalizeImport(ci *model.ChallengeImport) error {
	switch {
	case ci.Title == "":
		return fmt.Errorf("title is required")
	case ci.FunctionSignature == "":
		return fmt.Errorf("functionSignature is required")
	case len(ci.TestCases) == 0:
		return fmt.Errorf("at least one test case is required")
	}
	if ci.Language == "" {
		ci.Language = lang.Default
	}
	if !ci.Language.Valid() {
		return fmt.Errorf("%w: %s", lang.ErrUnsupportedLanguage, ci.Language)
	}
	switch ci.Difficulty {
	case "":
		ci.Difficulty = model.DifficultyMedium
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return fmt.Errorf("invalid difficulty %q", ci.Difficulty)
	}
	if ci.Hints == nil {
		ci.Hints = []string{}
	}
	return nil
}

func scanBankChallenge(sc scanner) (model.BankChallenge, error) {
	var bc model.BankChallenge
	var data string
	if err := sc.Scan(&bc.ID, &bc.Difficulty, &bc.Topic, &data); err != nil {
		return bc, err
	}
	if err := json.Unmarshal([]byte(data), &bc.Challenge); err != nil {
		return bc, fmt.Errorf("unmarshal bank challenge %d: %w", bc.ID, err)
	}
	return bc, nil
}

// BankChallengeCount returns the number of challenges in the bank.
func (s *Store) BankChallengeCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM bank_challenges`).Scan(&count)
	return count, err
}

// ListDistinctTopics returns the bank's topics in alphabetical order.
func (s *Store) ListDistinctTopics() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT topic FROM bank_challenges ORDER BY topic`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// GetImportedFileHash returns the hash recorded for a challenge file, or "" if it was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records that a challenge file with the given hash was imported.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, hash, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, imported_at = excluded.imported_at`,
		path, hash, time.Now(),
	)
	return err
}
