package transient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/companion"
	"github.com/edp1096/swspice/internal/waveform"
	"github.com/edp1096/swspice/solver"
)

func rcCircuit(t *testing.T) *circuit.CompiledCircuit {
	t.Helper()
	v1, err := circuit.NewVoltageSource("V1", "in", "0", waveform.NewDC(10))
	require.NoError(t, err)
	r1, err := circuit.NewResistor("R1", "in", "out", 1000)
	require.NoError(t, err)
	c1, err := circuit.NewCapacitor("C1", "out", "0", 1e-6, 0)
	require.NoError(t, err)
	cc, err := circuit.Compile("rc", []any{v1, r1, c1})
	require.NoError(t, err)
	return cc
}

func TestRunAcceptsStepsOnSimpleRC(t *testing.T) {
	cc := rcCircuit(t)
	cfg := Config{TStart: 0, TStop: 1e-4, H: 1e-6, Method: companion.Trapezoidal}

	out, err := Run(cc, cfg, solver.DefaultOptions(), nil, nil)
	require.NoError(t, err)
	assert.True(t, out.Converged)
	assert.Zero(t, out.FailureReason)
	assert.Greater(t, out.StepsAccepted, 0)
	assert.Equal(t, out.StepsAccepted+1, len(out.Samples)) // +1 for the t0 seed sample
	assert.InDelta(t, cfg.TStop, out.Samples[len(out.Samples)-1].T, 1e-9)
}

func TestRunSeedsFromX0(t *testing.T) {
	cc := rcCircuit(t)
	cfg := Config{TStart: 0, TStop: 1e-6, H: 1e-6, Method: companion.Trapezoidal}

	x0 := make([]float64, cc.Size())
	x0[cc.NodeIndex["in"]] = 10
	out, err := Run(cc, cfg, solver.DefaultOptions(), x0, nil)
	require.NoError(t, err)
	require.NotEmpty(t, out.Samples)
	assert.InDelta(t, 10, out.Samples[0].X[cc.NodeIndex["in"]], 1e-9)
}

func TestRunStopsOnCancel(t *testing.T) {
	cc := rcCircuit(t)
	cfg := Config{TStart: 0, TStop: 1e-3, H: 1e-6, Method: companion.Trapezoidal}

	calls := 0
	cancel := func() bool {
		calls++
		return calls > 2
	}
	out, err := Run(cc, cfg, solver.DefaultOptions(), nil, cancel)
	require.NoError(t, err)
	assert.Less(t, out.StepsAccepted, 10)
}

// TestRunFailsBelowMinStep forces an artificially large MinStep so that the
// very first REQUEST_STEP already violates h < h_min, exercising the
// ErrStepBelowMin failure path deterministically without relying on actual
// Newton non-convergence.
func TestRunFailsBelowMinStep(t *testing.T) {
	cc := rcCircuit(t)
	cfg := Config{
		TStart: 0, TStop: 1e-3, H: 1e-6, Method: companion.Trapezoidal,
		MinStep: 1e-3, // larger than H, so the first h < MinStep check fires
	}

	out, err := Run(cc, cfg, solver.DefaultOptions(), nil, nil)
	require.NoError(t, err)
	assert.False(t, out.Converged)
	assert.ErrorIs(t, out.FailureReason, ErrStepBelowMin)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{H: 1e-6}.withDefaults()
	assert.InDelta(t, 1e-6/1024, cfg.MinStep, 1e-15)
	assert.InDelta(t, 1e-5, cfg.MaxStep, 1e-15)
	assert.InDelta(t, 1e-3, cfg.LTETol, 1e-15)
}

func TestEstimateLTEZeroWhenNoPriorStep(t *testing.T) {
	lte := estimateLTE([]float64{1, 2}, []float64{1, 2}, []float64{0, 0}, 1e-6, 0)
	assert.Zero(t, lte)
}

func TestEstimateLTEGrowsWithDeviationFromExtrapolation(t *testing.T) {
	xPrev := []float64{1.0}
	prevDelta := []float64{0.1} // previous step moved state by 0.1
	// Same h as before: predicted = 1.1. Matching actual -> zero LTE.
	ltePerfect := estimateLTE(xPrev, []float64{1.1}, prevDelta, 1e-6, 1e-6)
	assert.InDelta(t, 0, ltePerfect, 1e-12)

	// Actual diverges sharply from the extrapolation -> nonzero LTE.
	lteOff := estimateLTE(xPrev, []float64{5.0}, prevDelta, 1e-6, 1e-6)
	assert.Greater(t, lteOff, ltePerfect)
}

func TestApplyControlSetsOverride(t *testing.T) {
	cc := rcCircuit(t)
	applyControl(cc, map[string]float64{"V1": 7.5})
	assert.Equal(t, 7.5, cc.Overrides["V1"])
}

func TestAdaptiveRunConverges(t *testing.T) {
	cc := rcCircuit(t)
	cfg := Config{
		TStart: 0, TStop: 2e-4, H: 1e-7, Method: companion.Trapezoidal,
		Adaptive: true, LTETol: 1e-2,
	}
	out, err := Run(cc, cfg, solver.DefaultOptions(), nil, nil)
	require.NoError(t, err)
	assert.True(t, out.Converged)
	assert.Greater(t, out.StepsAccepted, 0)
}

