package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/companion"
	"github.com/edp1096/swspice/internal/linalg"
	"github.com/edp1096/swspice/internal/waveform"
)

func buildDivider(t *testing.T) *circuit.CompiledCircuit {
	t.Helper()
	v1, err := circuit.NewVoltageSource("V1", "in", "0", waveform.NewDC(10))
	require.NoError(t, err)
	r1, err := circuit.NewResistor("R1", "in", "out", 1000)
	require.NoError(t, err)
	r2, err := circuit.NewResistor("R2", "out", "0", 2000)
	require.NoError(t, err)
	cc, err := circuit.Compile("divider", []any{v1, r1, r2})
	require.NoError(t, err)
	return cc
}

// TestSolveConvergesOnLinearDivider covers spec §8's DC voltage-divider
// scenario with a 10V source: V(out) = 10 * 2k/(1k+2k) = 6.667V.
func TestSolveConvergesOnLinearDivider(t *testing.T) {
	cc := buildDivider(t)
	sys, err := linalg.NewSystem(cc.Size())
	require.NoError(t, err)
	defer sys.Destroy()

	res := Solve(cc, sys, Step{T: 0, H: 0, Method: companion.Trapezoidal}, 1e-12, 1.0, DefaultOptions(), nil)
	require.True(t, res.Converged)
	assert.InDelta(t, 10.0, cc.NodeVoltage(res.X, "in"), 1e-6)
	assert.InDelta(t, 6.6667, cc.NodeVoltage(res.X, "out"), 1e-3)
}

func TestSolveWithContinuationConverges(t *testing.T) {
	cc := buildDivider(t)
	sys, err := linalg.NewSystem(cc.Size())
	require.NoError(t, err)
	defer sys.Destroy()

	res := SolveWithContinuation(cc, sys, Step{T: 0, H: 0, Method: companion.Trapezoidal}, DefaultOptions())
	require.True(t, res.Converged)
	require.NoError(t, res.Err)
	assert.InDelta(t, 6.6667, cc.NodeVoltage(res.X, "out"), 1e-3)
}

// TestSourceSteppingScalesAllSources exercises the generalized source
// stepping continuation directly at lambda < 1, confirming a current
// source is scaled identically to a voltage source (the teacher's
// restriction, lifted per SPEC_FULL.md).
func TestSourceSteppingScalesAllSources(t *testing.T) {
	i1, err := circuit.NewCurrentSource("I1", "n1", "0", waveform.NewDC(1e-3))
	require.NoError(t, err)
	r1, err := circuit.NewResistor("R1", "n1", "0", 1000)
	require.NoError(t, err)
	cc, err := circuit.Compile("isrc", []any{i1, r1})
	require.NoError(t, err)

	sys, err := linalg.NewSystem(cc.Size())
	require.NoError(t, err)
	defer sys.Destroy()

	res := Solve(cc, sys, Step{T: 0, H: 0, Method: companion.Trapezoidal}, 1e-12, 0.5, DefaultOptions(), nil)
	require.True(t, res.Converged)
	assert.InDelta(t, 0.5, cc.NodeVoltage(res.X, "n1"), 1e-6)
}
