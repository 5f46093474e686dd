package lcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSolveTrivialFeasible covers q >= 0, where z=0, w=q solves the LCP
// without any pivoting (the diode/switch off-state case: q = Vf - Vprev
// already >= 0 means no forward current flows).
func TestSolveTrivialFeasible(t *testing.T) {
	res, err := Solve([][]float64{{1.0}}, []float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, Solved, res.Status)
	assert.InDelta(t, 0.0, res.Z[0], 1e-9)
	assert.InDelta(t, 0.5, res.W[0], 1e-9)
}

// TestSolveOneNegative covers q < 0, where the covering ray must pivot
// once to find z = -q/M, w = 0 (the diode conducting case).
func TestSolveOneNegative(t *testing.T) {
	res, err := Solve([][]float64{{2.0}}, []float64{-1.0})
	require.NoError(t, err)
	assert.Equal(t, Solved, res.Status)
	assert.InDelta(t, 0.5, res.Z[0], 1e-9)
	assert.InDelta(t, 0.0, res.W[0], 1e-9)
}

func TestSolve2x2(t *testing.T) {
	m := [][]float64{
		{2, 1},
		{1, 2},
	}
	q := []float64{-1, -1}
	res, err := Solve(m, q)
	require.NoError(t, err)
	assert.Equal(t, Solved, res.Status)
	for i := range res.Z {
		assert.GreaterOrEqual(t, res.Z[i], -1e-9)
		assert.GreaterOrEqual(t, res.W[i], -1e-9)
		assert.InDelta(t, 0.0, res.Z[i]*res.W[i], 1e-6)
	}
}

func TestSolveDimensionMismatch(t *testing.T) {
	_, err := Solve([][]float64{{1, 2}}, []float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Solved", Solved.String())
	assert.Equal(t, "Unbounded", Unbounded.String())
	assert.Equal(t, "IterationLimit", IterationLimit.String())
}
