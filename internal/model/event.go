package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptEventType names a lifecycle transition broadcast to results watchers.
type AttemptEventType string

const (
	AttemptEventStarted   AttemptEventType = "started"
	AttemptEventSubmitted AttemptEventType = "submitted"
)

// AttemptEvent is published on a test's results channel.
type AttemptEvent struct {
	Type       AttemptEventType `json:"type"`
	TestID     uuid.UUID        `json:"test_id"`
	AttemptID  uuid.UUID        `json:"attempt_id"`
	UserID     int              `json:"user_id"`
	Percentage *int             `json:"percentage,omitempty"`
	Passed     *bool            `json:"passed,omitempty"`
	Late       bool             `json:"late,omitempty"`
	At         time.Time        `json:"at"`
}
