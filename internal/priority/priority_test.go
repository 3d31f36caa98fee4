package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name         string
		scores       AxisScores
		wantPriority int
		wantTotal    float64
	}{
		{"max scores", AxisScores{3, 3, 3}, 1, 9},
		{"rounds up to P1", AxisScores{2.5, 2.2, 2.1}, 1, 6.8},
		{"P2 band", AxisScores{2, 2, 1}, 2, 5},
		{"P3 band", AxisScores{1, 1, 1}, 3, 3},
		{"rounds up into P3", AxisScores{1, 1, 0.1}, 3, 2.1},
		{"exactly two is P4", AxisScores{1, 1, 0}, 4, 2},
		{"one is no priority", AxisScores{1, 0, 0}, 0, 1},
		{"zero", AxisScores{}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, total := Compute(tt.scores)
			assert.Equal(t, tt.wantPriority, p)
			assert.InDelta(t, tt.wantTotal, total, 1e-9)
		})
	}
}

func TestCategoryLabel(t *testing.T) {
	label, ok := CategoryLabel("2B")
	assert.True(t, ok)
	assert.Equal(t, "UI & Quality of Life", label)

	_, ok = CategoryLabel("9Z")
	assert.False(t, ok)
}

func TestDecodeEstimate(t *testing.T) {
	e, err := decodeEstimate(`{"removal_impact": 2.5, "framework": 1.0, "essential": 3.0, "code": "6F"}`)
	require.NoError(t, err)
	assert.Equal(t, 2.5, e.RemovalImpact)
	assert.Equal(t, "6F", e.Code)

	e, err = decodeEstimate("Sure, here it is:\n```json\n{\"removal_impact\": 1, \"framework\": 0, \"essential\": 0, \"code\": \"1A\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "1A", e.Code)

	_, err = decodeEstimate("no json here")
	assert.Error(t, err)
}
