package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/mockinterview/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if strings.HasPrefix(dbPath, ":memory:") {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interviews (
		id TEXT PRIMARY KEY,
		language TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		interview_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (interview_id) REFERENCES interviews(id)
	);

	CREATE TABLE IF NOT EXISTS challenges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		interview_id TEXT NOT NULL,
		challenge TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		FOREIGN KEY (interview_id) REFERENCES interviews(id)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		challenge_id INTEGER NOT NULL,
		code TEXT NOT NULL,
		output TEXT NOT NULL,
		all_passed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (challenge_id) REFERENCES challenges(id)
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		challenge_id INTEGER NOT NULL,
		code TEXT NOT NULL,
		result TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (challenge_id) REFERENCES challenges(id)
	);

	CREATE TABLE IF NOT EXISTS bank_challenges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		difficulty TEXT NOT NULL,
		topic TEXT NOT NULL,
		challenge TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_interview ON messages(interview_id);
	CREATE INDEX IF NOT EXISTS idx_challenges_interview ON challenges(interview_id);
	CREATE INDEX IF NOT EXISTS idx_runs_challenge ON runs(challenge_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateInterview starts a new interview in the given language.
func (s *Store) CreateInterview(language string) (model.Interview, error) {
	iv := model.Interview{
		ID:        uuid.NewString(),
		Language:  language,
		StartedAt: time.Now(),
	}
	_, err := s.db.Exec(
		`INSERT INTO interviews (id, language, started_at) VALUES (?, ?, ?)`,
		iv.ID, iv.Language, iv.StartedAt,
	)
	if err != nil {
		return model.Interview{}, err
	}
	return iv, nil
}

// GetInterview returns an interview by ID, or nil if it does not exist.
func (s *Store) GetInterview(id string) (*model.Interview, error) {
	var iv model.Interview
	err := s.db.QueryRow(
		`SELECT id, language, started_at, ended_at FROM interviews WHERE id = ?`, id,
	).Scan(&iv.ID, &iv.Language, &iv.StartedAt, &iv.EndedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

// SetInterviewLanguage changes the language future challenges are posed in.
func (s *Store) SetInterviewLanguage(id, language string) error {
	_, err := s.db.Exec(`UPDATE interviews SET language = ? WHERE id = ?`, language, id)
	return err
}

// EndInterview marks an interview as finished.
func (s *Store) EndInterview(id string) error {
	_, err := s.db.Exec(
		`UPDATE interviews SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		time.Now(), id,
	)
	return err
}

// ListInterviews returns all interviews, newest first.
func (s *Store) ListInterviews() ([]model.Interview, error) {
	rows, err := s.db.Query(`SELECT id, language, started_at, ended_at FROM interviews ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var interviews []model.Interview
	for rows.Next() {
		var iv model.Interview
		if err := rows.Scan(&iv.ID, &iv.Language, &iv.StartedAt, &iv.EndedAt); err != nil {
			return nil, err
		}
		interviews = append(interviews, iv)
	}
	return interviews, rows.Err()
}

// AddMessage appends a message to an interview transcript.
func (s *Store) AddMessage(msg model.Message) (int64, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO messages (interview_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.InterviewID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetMessages returns the transcript of an interview in order.
func (s *Store) GetMessages(interviewID string) ([]model.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, interview_id, role, content, created_at FROM messages WHERE interview_id = ? ORDER BY id`,
		interviewID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.InterviewID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
