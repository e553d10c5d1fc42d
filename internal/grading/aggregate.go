package grading

import "github.com/mocktest/engine/internal/model"

// Aggregate rolls submitted attempts into summary statistics. An empty input
// yields all-zero numbers and an empty (non-nil) attempt list.
func Aggregate(rows []model.SubmittedAttempt) model.ResultsSummary {
	sum := model.ResultsSummary{Attempts: rows}
	if sum.Attempts == nil {
		sum.Attempts = []model.SubmittedAttempt{}
	}
	if len(rows) == 0 {
		return sum
	}

	total, passed := 0, 0
	sum.HighestScore = rows[0].Percentage
	sum.LowestScore = rows[0].Percentage
	for _, r := range rows {
		total += r.Percentage
		if r.Passed {
			passed++
		}
		sum.HighestScore = max(sum.HighestScore, r.Percentage)
		sum.LowestScore = min(sum.LowestScore, r.Percentage)
	}

	n := len(rows)
	sum.TotalAttempts = n
	sum.AverageScorePercent = roundDiv(total, n)
	sum.PassRate = roundDiv(100*passed, n)
	return sum
}
