// Package grading scores student submissions: a fixed rubric converts
// semantic similarity into awarded marks, and the Grader orchestrates
// the free-text, multiple-choice, and lab scoring paths.
package grading

import "math"

// Rubric policy constants. Fixed platform-wide, not per-question.
const (
	// fullCreditThreshold: normalized similarity at or above it earns full marks.
	fullCreditThreshold = 0.85
	// partialCreditThreshold: at or above it (but below full) earns partial credit.
	partialCreditThreshold = 0.65
	// partialCreditMultiplier is the fraction of marks in the partial band.
	partialCreditMultiplier = 0.6
)

// Award converts a normalized similarity score in [0, 1] and a question's
// mark value into awarded marks. The top band returns the mark value
// exactly, the bottom band exact zero; only the middle band rounds, to
// two decimals with ties going to even.
func Award(normalized, fullMarks float64) float64 {
	switch {
	case normalized >= fullCreditThreshold:
		return fullMarks
	case normalized >= partialCreditThreshold:
		return roundHalfEven2(fullMarks * partialCreditMultiplier)
	default:
		return 0.0
	}
}

func roundHalfEven2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}
