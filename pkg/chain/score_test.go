package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicScore(t *testing.T) {
	tests := []struct {
		name     string
		criteria []CriterionScore
		want     int
	}{
		{
			name: "weighted mean",
			criteria: []CriterionScore{
				{ID: "a", Score: 8, Weight: 0.5},
				{ID: "b", Score: 6, Weight: 0.5},
			},
			want: 7,
		},
		{
			name: "half rounds to even",
			criteria: []CriterionScore{
				{ID: "a", Score: 8, Weight: 0.75},
				{ID: "b", Score: 6, Weight: 0.25},
			},
			want: 8, // 7.5 rounds to 8
		},
		{
			name: "half rounds down to even",
			criteria: []CriterionScore{
				{ID: "a", Score: 2, Weight: 0.5},
				{ID: "b", Score: 3, Weight: 0.5},
			},
			want: 2, // 2.5 rounds to 2, not 3
		},
		{
			name: "half rounds up to even",
			criteria: []CriterionScore{
				{ID: "a", Score: 3, Weight: 0.5},
				{ID: "b", Score: 4, Weight: 0.5},
			},
			want: 4, // 3.5 rounds to 4
		},
		{
			name:     "empty criteria floor",
			criteria: nil,
			want:     1,
		},
		{
			name: "out-of-range scores clamped",
			criteria: []CriterionScore{
				{ID: "a", Score: 42, Weight: 0.5},
				{ID: "b", Score: -3, Weight: 0.5},
			},
			want: 6, // (10 + 1) / 2 rounds to 6
		},
		{
			name: "negative weights ignored",
			criteria: []CriterionScore{
				{ID: "a", Score: 9, Weight: 1.0},
				{ID: "b", Score: 1, Weight: -5.0},
			},
			want: 9,
		},
		{
			name: "all weights zero",
			criteria: []CriterionScore{
				{ID: "a", Score: 9, Weight: 0},
			},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeterministicScore(tt.criteria))
		})
	}
}

func TestWeightByID(t *testing.T) {
	spec, err := Parse([]byte(minimalSpec))
	require.NoError(t, err)

	assert.Equal(t, 1.0, spec.WeightByID("correctness"))
	assert.Equal(t, 0.0, spec.WeightByID("unknown_criterion"))
}
