package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mocktest/engine/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries every client action; fields unused by an action are ignored.
// Answer fields stay raw until the action needs them, so a bad answer is
// reported to the client instead of failing the whole frame.
//
//	{"action":"autosave","question_index":1,"option":2}
//	{"action":"submit","answers":[0,-1,2],"time_spent_minutes":7.5}
//	{"action":"submit"}  // submit the server-side draft
type RequestPayload struct {
	Action           Action          `json:"action"`
	QuestionIndex    *int            `json:"question_index,omitempty"`
	Option           json.RawMessage `json:"option,omitempty"`
	Answers          json.RawMessage `json:"answers,omitempty"`
	TimeSpentMinutes float64         `json:"time_spent_minutes,omitempty"`
}

// DecodeRequest parses one client frame.
func DecodeRequest(data []byte) (*RequestPayload, error) {
	var p RequestPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeOption returns the autosaved option. A missing option clears the slot.
func (p *RequestPayload) DecodeOption() (model.Answer, error) {
	if len(p.Option) == 0 {
		return model.Unanswered, nil
	}
	var a model.Answer
	if err := json.Unmarshal(p.Option, &a); err != nil {
		return model.Unanswered, fmt.Errorf("option: %w", err)
	}
	return a, nil
}

// DecodeAnswers returns the submitted sheet, or nil when the client asks the
// server to submit its draft.
func (p *RequestPayload) DecodeAnswers() ([]model.Answer, error) {
	if len(p.Answers) == 0 || string(p.Answers) == "null" {
		return nil, nil
	}
	var answers []model.Answer
	if err := json.Unmarshal(p.Answers, &answers); err != nil {
		return nil, fmt.Errorf("answers: %w", err)
	}
	if answers == nil {
		answers = []model.Answer{}
	}
	return answers, nil
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick    Event = "tick"
	EventSaved   Event = "saved"
	EventExpired Event = "expired"
	EventGraded  Event = "graded"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// TickResponse is the advisory countdown. The deadline stored with the
// attempt stays authoritative.
type TickResponse struct {
	Event            Event     `json:"event"`
	RemainingSeconds int       `json:"remaining_seconds"`
	DeadlineAt       time.Time `json:"deadline_at"`
}

type SavedResponse struct {
	Event         Event `json:"event"`
	QuestionIndex int   `json:"question_index"`
}

// ExpiredResponse tells the client to submit its own sheet. The server
// submits the draft once GraceSeconds have passed without one.
type ExpiredResponse struct {
	Event        Event `json:"event"`
	GraceSeconds int   `json:"grace_seconds"`
}

type GradedResponse struct {
	Event    Event                `json:"event"`
	Replayed bool                 `json:"replayed"`
	Results  *model.AttemptResult `json:"results"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
