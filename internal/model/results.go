package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmittedAttempt is one row of a test's results, with taker identity.
type SubmittedAttempt struct {
	AttemptID        uuid.UUID `json:"attempt_id"`
	UserID           int       `json:"user_id"`
	Score            int       `json:"score"`
	MaxScore         int       `json:"max_score"`
	Percentage       int       `json:"percentage"`
	Passed           bool      `json:"passed"`
	Late             bool      `json:"late"`
	StartedAt        time.Time `json:"started_at"`
	SubmittedAt      time.Time `json:"submitted_at"`
	TimeSpentMinutes float64   `json:"time_spent_minutes"`
}

// ResultsSummary is the test owner's statistics view.
type ResultsSummary struct {
	TestID              uuid.UUID          `json:"test_id"`
	TotalAttempts       int                `json:"total_attempts"`
	AverageScorePercent int                `json:"average_score_percent"`
	PassRate            int                `json:"pass_rate"`
	HighestScore        int                `json:"highest_score"`
	LowestScore         int                `json:"lowest_score"`
	Attempts            []SubmittedAttempt `json:"attempts"`
}
