package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the attempt lifecycle. NOT_STARTED is implied by
// the absence of a row and is never persisted.
type AttemptStatus string

const (
	AttemptStatusNotStarted AttemptStatus = "NOT_STARTED"
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
)

// Attempt is one user's single attempt at one test.
type Attempt struct {
	ID               uuid.UUID     `json:"id"`
	UserID           int           `json:"user_id"`
	TestID           uuid.UUID     `json:"test_id"`
	Status           AttemptStatus `json:"status"`
	StartedAt        time.Time     `json:"started_at"`
	DeadlineAt       time.Time     `json:"deadline_at"`
	Answers          []Answer      `json:"answers"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	TimeSpentMinutes *float64      `json:"time_spent_minutes,omitempty"`
	Score            *int          `json:"score,omitempty"`
	MaxScore         *int          `json:"max_score,omitempty"`
	Percentage       *int          `json:"percentage,omitempty"`
	Passed           *bool         `json:"passed,omitempty"`
	Late             bool          `json:"late"`

	// Breakdown holds correct answers; it is only exposed through AttemptResult.
	Breakdown []QuestionResult `json:"-"`
}

// QuestionResult is the per-question scoring outcome.
type QuestionResult struct {
	IsCorrect     bool   `json:"is_correct"`
	EarnedPoints  int    `json:"earned_points"`
	Points        int    `json:"points"`
	UserAnswer    Answer `json:"user_answer"`
	CorrectAnswer int    `json:"correct_answer"`
}

// AttemptResult is the taker's view of a submitted attempt.
type AttemptResult struct {
	AttemptID        uuid.UUID        `json:"attempt_id"`
	TestID           uuid.UUID        `json:"test_id"`
	Score            int              `json:"score"`
	MaxScore         int              `json:"max_score"`
	Percentage       int              `json:"percentage"`
	Passed           bool             `json:"passed"`
	Late             bool             `json:"late"`
	StartedAt        time.Time        `json:"started_at"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	TimeSpentMinutes float64          `json:"time_spent_minutes"`
	Questions        []QuestionResult `json:"questions"`
}

// IsSubmitted reports whether the attempt reached its terminal state.
func (a *Attempt) IsSubmitted() bool {
	return a.Status == AttemptStatusSubmitted
}

// Result builds the taker's result view. Returns nil until submitted.
func (a *Attempt) Result() *AttemptResult {
	if !a.IsSubmitted() || a.SubmittedAt == nil {
		return nil
	}
	r := &AttemptResult{
		AttemptID:   a.ID,
		TestID:      a.TestID,
		Late:        a.Late,
		StartedAt:   a.StartedAt,
		SubmittedAt: *a.SubmittedAt,
		Questions:   a.Breakdown,
	}
	if a.Score != nil {
		r.Score = *a.Score
	}
	if a.MaxScore != nil {
		r.MaxScore = *a.MaxScore
	}
	if a.Percentage != nil {
		r.Percentage = *a.Percentage
	}
	if a.Passed != nil {
		r.Passed = *a.Passed
	}
	if a.TimeSpentMinutes != nil {
		r.TimeSpentMinutes = *a.TimeSpentMinutes
	}
	if r.Questions == nil {
		r.Questions = []QuestionResult{}
	}
	return r
}

// SubmitAttemptRequest is the payload for submitting an attempt.
type SubmitAttemptRequest struct {
	Answers          []Answer `json:"answers" binding:"required"`
	TimeSpentMinutes float64  `json:"time_spent_minutes" binding:"min=0"`
}

// SaveDraftRequest stores one in-progress answer.
type SaveDraftRequest struct {
	QuestionIndex *int   `json:"question_index" binding:"required,min=0"`
	Option        Answer `json:"option"`
}

// AttemptState is returned on page reload so the client can rebuild its countdown.
type AttemptState struct {
	AttemptID        uuid.UUID     `json:"attempt_id"`
	TestID           uuid.UUID     `json:"test_id"`
	Status           AttemptStatus `json:"status"`
	DeadlineAt       time.Time     `json:"deadline_at"`
	RemainingSeconds float64       `json:"remaining_seconds"`
	DraftAnswers     []Answer      `json:"draft_answers"`
}
