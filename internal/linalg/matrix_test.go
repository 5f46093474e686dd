package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSolveVoltageDivider builds the 2-node MNA system for a simple
// resistive voltage divider and checks the solved node voltages, covering
// the same circuit as spec §8's literal DC scenario at the linalg layer.
func TestSolveVoltageDivider(t *testing.T) {
	sys, err := NewSystem(2)
	require.NoError(t, err)
	defer sys.Destroy()

	// Node 0 = Vin (10V through a 1ohm source resistor, stamped as its
	// Norton equivalent), node 1 = Vout; R1=1k between, R2=2k to ground.
	const rs, r1, r2, vin = 1.0, 1000.0, 2000.0, 10.0

	require.NoError(t, sys.Add(0, 0, 1.0/rs+1.0/r1))
	require.NoError(t, sys.Add(0, 1, -1.0/r1))
	require.NoError(t, sys.Add(1, 0, -1.0/r1))
	require.NoError(t, sys.Add(1, 1, 1.0/r1+1.0/r2))
	require.NoError(t, sys.AddRHS(0, vin/rs))

	x, err := sys.Solve()
	require.NoError(t, err)
	assert.InDelta(t, vin*r2/(rs+r1+r2), x[1], 1e-6)
}

func TestClearResetsMatrix(t *testing.T) {
	sys, err := NewSystem(1)
	require.NoError(t, err)
	defer sys.Destroy()

	require.NoError(t, sys.Add(0, 0, 1.0))
	require.NoError(t, sys.AddRHS(0, 5.0))
	sys.Clear()
	require.NoError(t, sys.AddRHS(0, 5.0))
	require.NoError(t, sys.Add(0, 0, 1.0))

	x, err := sys.Solve()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, x[0], 1e-9)
}

func TestSingularMatrixErrors(t *testing.T) {
	sys, err := NewSystem(1)
	require.NoError(t, err)
	defer sys.Destroy()

	_, err = sys.Solve()
	assert.ErrorIs(t, err, ErrSingularMatrix)
}

func TestNonFiniteStampRejected(t *testing.T) {
	sys, err := NewSystem(1)
	require.NoError(t, err)
	defer sys.Destroy()

	err = sys.Add(0, 0, math.NaN())
	assert.ErrorIs(t, err, ErrNonFiniteStamp)
}

func TestGroundIndexIsNoOp(t *testing.T) {
	sys, err := NewSystem(1)
	require.NoError(t, err)
	defer sys.Destroy()

	assert.NoError(t, sys.Add(-1, 0, 1.0))
	assert.NoError(t, sys.AddRHS(-1, 1.0))
}
