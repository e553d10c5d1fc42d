package model

import (
	"time"

	"github.com/google/uuid"
)

// Test is an assessment definition owned by the catalog. The engine only reads it.
type Test struct {
	ID                  uuid.UUID  `json:"id" yaml:"-"`
	Title               string     `json:"title" yaml:"title"`
	OwnerID             int        `json:"owner_id" yaml:"owner_id"`
	CourseID            *string    `json:"course_id,omitempty" yaml:"course_id"`
	TimeLimitMinutes    int        `json:"time_limit_minutes" yaml:"time_limit_minutes"`
	PassingScorePercent int        `json:"passing_score_percent" yaml:"passing_score_percent"`
	Questions           []Question `json:"questions" yaml:"questions"`
	CreatedAt           time.Time  `json:"created_at" yaml:"-"`
}

// Question is a single-choice question. CorrectOptionIndex must never reach a
// client before the attempt is submitted; use QuestionView for that.
type Question struct {
	ID                 uuid.UUID `json:"id" yaml:"-"`
	TestID             uuid.UUID `json:"test_id" yaml:"-"`
	Text               string    `json:"text" yaml:"text"`
	Options            []string  `json:"options" yaml:"options"`
	CorrectOptionIndex int       `json:"correct_option_index" yaml:"correct"`
	Points             int       `json:"points" yaml:"points"`
	OrderNum           int       `json:"order_num" yaml:"-"`
}

// TestView is the client-facing test without answer keys.
type TestView struct {
	ID                  uuid.UUID      `json:"id"`
	Title               string         `json:"title"`
	CourseID            *string        `json:"course_id,omitempty"`
	TimeLimitMinutes    int            `json:"time_limit_minutes"`
	PassingScorePercent int            `json:"passing_score_percent"`
	Questions           []QuestionView `json:"questions"`
}

// QuestionView is a question without its correct option.
type QuestionView struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Options  []string  `json:"options"`
	Points   int       `json:"points"`
	OrderNum int       `json:"order_num"`
}

// TestSummary is one row of the public test listing.
type TestSummary struct {
	ID                  uuid.UUID `json:"id"`
	Title               string    `json:"title"`
	CourseID            *string   `json:"course_id,omitempty"`
	TimeLimitMinutes    int       `json:"time_limit_minutes"`
	PassingScorePercent int       `json:"passing_score_percent"`
	QuestionCount       int       `json:"question_count"`
}

// TimeLimit returns the attempt duration.
func (t *Test) TimeLimit() time.Duration {
	return time.Duration(t.TimeLimitMinutes) * time.Minute
}

// View strips the answer key.
func (t *Test) View() *TestView {
	qs := make([]QuestionView, len(t.Questions))
	for i, q := range t.Questions {
		qs[i] = QuestionView{
			ID:       q.ID,
			Text:     q.Text,
			Options:  q.Options,
			Points:   q.Points,
			OrderNum: q.OrderNum,
		}
	}
	return &TestView{
		ID:                  t.ID,
		Title:               t.Title,
		CourseID:            t.CourseID,
		TimeLimitMinutes:    t.TimeLimitMinutes,
		PassingScorePercent: t.PassingScorePercent,
		Questions:           qs,
	}
}

// Summary returns the listing row for this test.
func (t *Test) Summary() TestSummary {
	return TestSummary{
		ID:                  t.ID,
		Title:               t.Title,
		CourseID:            t.CourseID,
		TimeLimitMinutes:    t.TimeLimitMinutes,
		PassingScorePercent: t.PassingScorePercent,
		QuestionCount:       len(t.Questions),
	}
}
