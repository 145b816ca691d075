package model

import "time"

// HistoryExport is the top-level JSON structure for interview history export.
type HistoryExport struct {
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Interviews []InterviewResult `json:"interviews"`
}

// InterviewResult holds one interview's transcript and coding activity.
type InterviewResult struct {
	ID           string            `json:"id"`
	Language     string            `json:"language"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	Conversation []ConversationMsg `json:"conversation"`
	Challenges   []ChallengeResult `json:"challenges"`
}

// ChallengeResult holds per-challenge activity for export.
type ChallengeResult struct {
	Title       string             `json:"title"`
	Language    string             `json:"language"`
	Signature   string             `json:"function_signature"`
	NumTests    int                `json:"num_tests"`
	Runs        []RunRecord        `json:"runs"`
	Evaluations []EvaluationRecord `json:"evaluations"`
	Solved      bool               `json:"solved"`
}

// ConversationMsg is a single message in an exported conversation.
type ConversationMsg struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}
