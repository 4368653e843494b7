package grading

import (
	"errors"
	"math"
)

// ErrNoScore is returned when the model reported neither a usable raw score
// nor any deductions. The caller must fail the label, never default to 0.
var ErrNoScore = errors.New("model reported neither a score nor deductions")

// Reconcile turns the model's self-reported score and its itemized deductions
// into the canonical final score.
//
// The raw score is normalized first: values in (0,1] are treated as a ratio
// and scaled by 100, everything else is clamped to [0,100]. When the
// deductions sum to a positive total, 100 minus that total wins over the raw
// score: the model itemizes discrete penalties far more reliably than it does
// the closing arithmetic. The chosen value is rounded to the nearest multiple
// of 10.
func Reconcile(rawScore *float64, deductions []DeductionDetail) (int, error) {
	var totalDeduction float64
	for _, d := range deductions {
		totalDeduction += d.DeductionPercentage
	}

	if totalDeduction > 0 {
		return round10(clamp(100 - totalDeduction)), nil
	}

	if rawScore == nil {
		return 0, ErrNoScore
	}

	score := *rawScore
	if score > 0 && score <= 1 {
		score *= 100
	}
	return round10(clamp(score)), nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round10(v float64) int {
	return int(math.Round(v/10) * 10)
}
