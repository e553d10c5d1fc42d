package grading

import "github.com/mocktest/engine/internal/model"

// Collect turns a sparse question-index → option map into a dense sheet of n
// slots. Missing slots become Unanswered; keys outside [0,n) and negative
// options are dropped. It never fails.
func Collect(draft map[int]int, n int) []model.Answer {
	sheet := model.UnansweredSheet(n)
	for idx, opt := range draft {
		if idx < 0 || idx >= n || opt < 0 {
			continue
		}
		sheet[idx] = model.Choose(opt)
	}
	return sheet
}
