package domain

import (
	"fmt"
	"time"
)

// SessionKey identifies one candidate's attempt at one question within one
// assessment. All events for the triple belong to the same session.
type SessionKey struct {
	CandidateID  string `json:"candidate_id"`
	AssessmentID string `json:"assessment_id"`
	QuestionID   string `json:"question_id"`
}

// String returns a stable composite key usable as a map key or log field.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.CandidateID, k.AssessmentID, k.QuestionID)
}

// Valid reports whether all three components are present.
func (k SessionKey) Valid() bool {
	return k.CandidateID != "" && k.AssessmentID != "" && k.QuestionID != ""
}

// Session is the recorded editing history for one attempt. The event log is
// append-only; rows are never rewritten or reordered once stored.
type Session struct {
	ID         string     `json:"id"`
	Key        SessionKey `json:"key"`
	Language   string     `json:"language"`
	EventCount int        `json:"event_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Draft is the autosaved working copy of a candidate's editor content,
// independent of the event log.
type Draft struct {
	Key       SessionKey `json:"key"`
	Language  string     `json:"language"`
	Source    string     `json:"source"`
	UpdatedAt time.Time  `json:"updated_at"`
}
