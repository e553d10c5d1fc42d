// Package grading holds the pure parts of the attempt lifecycle: answer
// collection, validation, scoring, deadlines and result aggregation.
package grading

import (
	"errors"
	"fmt"

	"github.com/mocktest/engine/internal/model"
)

// ErrValidation is returned for malformed answer sheets.
var ErrValidation = errors.New("invalid answers")

// Result is the scorer's verdict for one answer sheet.
type Result struct {
	Score       int                    `json:"score"`
	MaxScore    int                    `json:"max_score"`
	Percentage  int                    `json:"percentage"`
	Passed      bool                   `json:"passed"`
	PerQuestion []model.QuestionResult `json:"per_question"`
}

// Validate checks an answer sheet against the questions it answers.
func Validate(questions []model.Question, answers []model.Answer) error {
	if len(answers) != len(questions) {
		return fmt.Errorf("%w: got %d answers for %d questions", ErrValidation, len(answers), len(questions))
	}
	for i, a := range answers {
		if !a.Answered {
			continue
		}
		if a.Option < 0 || a.Option >= len(questions[i].Options) {
			return fmt.Errorf("%w: answer %d selects option %d of %d", ErrValidation, i, a.Option, len(questions[i].Options))
		}
	}
	return nil
}

// Score grades answers against questions. answers must already be validated;
// missing trailing slots are treated as unanswered.
func Score(questions []model.Question, answers []model.Answer, passingScorePercent int) Result {
	res := Result{PerQuestion: make([]model.QuestionResult, len(questions))}

	for i, q := range questions {
		var a model.Answer
		if i < len(answers) {
			a = answers[i]
		}
		correct := a.Matches(q.CorrectOptionIndex)
		earned := 0
		if correct {
			earned = q.Points
		}
		res.PerQuestion[i] = model.QuestionResult{
			IsCorrect:     correct,
			EarnedPoints:  earned,
			Points:        q.Points,
			UserAnswer:    a,
			CorrectAnswer: q.CorrectOptionIndex,
		}
		res.Score += earned
		res.MaxScore += q.Points
	}

	if res.MaxScore > 0 {
		res.Percentage = roundDiv(res.Score*100, res.MaxScore)
	}
	res.Passed = res.Percentage >= passingScorePercent
	return res
}

// roundDiv divides non-negative integers rounding half up.
func roundDiv(num, den int) int {
	if den == 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}
