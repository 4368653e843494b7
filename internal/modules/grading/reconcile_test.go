package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestReconcile(t *testing.T) {
	tests := []struct {
		name       string
		rawScore   *float64
		deductions []DeductionDetail
		want       int
	}{
		{
			name:     "ratio scaled to percentage",
			rawScore: floatPtr(0.82),
			want:     80,
		},
		{
			name:     "ratio of exactly one is full marks",
			rawScore: floatPtr(1),
			want:     100,
		},
		{
			name:     "percentage kept as is",
			rawScore: floatPtr(75),
			want:     80,
		},
		{
			name:     "negative clamped to zero",
			rawScore: floatPtr(-20),
			want:     0,
		},
		{
			name:     "overshoot clamped to hundred",
			rawScore: floatPtr(140),
			want:     100,
		},
		{
			name:     "deductions override raw score",
			rawScore: floatPtr(0.82),
			deductions: []DeductionDetail{
				{Reason: "要点Aの欠落", DeductionPercentage: 15},
				{Reason: "文体の混在", DeductionPercentage: 5},
			},
			want: 80,
		},
		{
			name:     "deduction sum rounded to nearest ten",
			rawScore: floatPtr(90),
			deductions: []DeductionDetail{
				{Reason: "誤字", DeductionPercentage: 12},
			},
			want: 90,
		},
		{
			name:     "deductions exceeding hundred clamp to zero",
			rawScore: floatPtr(50),
			deductions: []DeductionDetail{
				{Reason: "全面的な誤り", DeductionPercentage: 120},
			},
			want: 0,
		},
		{
			name:     "non numeric deductions contribute zero",
			rawScore: floatPtr(0.6),
			deductions: []DeductionDetail{
				{Reason: "不明", DeductionPercentage: 0},
			},
			want: 60,
		},
		{
			name:     "zero raw score without deductions stays zero",
			rawScore: floatPtr(0),
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reconcile(tt.rawScore, tt.deductions)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcileRatioRangeAlwaysScales(t *testing.T) {
	for _, ratio := range []float64{0.05, 0.25, 0.5, 0.77, 1} {
		got, err := Reconcile(floatPtr(ratio), nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
		assert.Zero(t, got%10)
	}
}

func TestReconcileNoScoreNoDeductions(t *testing.T) {
	_, err := Reconcile(nil, nil)
	assert.ErrorIs(t, err, ErrNoScore)

	_, err = Reconcile(nil, []DeductionDetail{{Reason: "不明", DeductionPercentage: 0}})
	assert.ErrorIs(t, err, ErrNoScore)
}

func TestReconcileDeductionsWithoutRawScore(t *testing.T) {
	got, err := Reconcile(nil, []DeductionDetail{{Reason: "要点の欠落", DeductionPercentage: 30}})
	require.NoError(t, err)
	assert.Equal(t, 70, got)
}
