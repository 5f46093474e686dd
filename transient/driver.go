// Package transient implements the time-stepping state machine of spec
// §4.6: REQUEST_STEP -> ASSEMBLE -> SOLVE_NEWTON -> COMMIT/SAMPLE, or
// REJECT -> h/2 -> retry until h < h_min.
//
// Grounded on the teacher's pkg/analysis/tran.go (Execute's step-halving/
// growth loop and gmin-stepping schedule). The teacher's
// checkAcceptability/calculateTruncError methods exist but are never
// called from Execute — dead code. This driver wires an LTE-based estimate
// into the real accept/reject decision, per spec §4.6's "optional local
// truncation error estimate ... controls h".
package transient

import (
	"errors"
	"math"

	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/companion"
	"github.com/edp1096/swspice/internal/linalg"
	"github.com/edp1096/swspice/solver"
)

// ErrStepBelowMin is the step-size-underflow failure of spec §7.
var ErrStepBelowMin = errors.New("transient: step size fell below h_min")

// ControlFunc drives PWM/gate-style inputs (spec §6's control_callback).
// It is applied before the next Assemble by mutating the affected
// sources' waveform-time evaluation — in this implementation, by
// overriding a named voltage/current source's instantaneous value for
// this step via Overrides.
type ControlFunc func(t float64) map[string]float64

// Config holds the fixed/adaptive step parameters (spec §6's transient
// config: t_start, t_stop, h, method, max_step).
type Config struct {
	TStart, TStop float64
	H             float64
	Method        companion.Method
	MaxStep       float64
	MinStep       float64 // h_min; defaults to H/1024 if zero
	Adaptive      bool    // enable LTE-based step control
	LTETol        float64 // relative LTE tolerance; defaults to 1e-3
	Control       ControlFunc
}

func (c Config) withDefaults() Config {
	if c.MinStep <= 0 {
		c.MinStep = c.H / 1024
	}
	if c.MaxStep <= 0 {
		c.MaxStep = c.H * 10
	}
	if c.LTETol <= 0 {
		c.LTETol = 1e-3
	}
	return c
}

// Sample is one accepted (t, x) point in the result log (spec §3's
// Result log entity).
type Sample struct {
	T float64
	X []float64
}

// Outcome is the full output of a transient run.
type Outcome struct {
	Samples        []Sample
	StepsAccepted  int
	StepsRejected  int
	Converged      bool
	FailureReason  error
}

// CancelFunc is checked once per step (spec §4.6 cancellation /
// spec §5's cooperative cancel flag).
type CancelFunc func() bool

// Run drives the circuit from TStart to TStop. x0 is the DC operating
// point (or nil, meaning all-zero) that seeds the first step.
func Run(cc *circuit.CompiledCircuit, cfg Config, opt solver.Options, x0 []float64, cancel CancelFunc) (Outcome, error) {
	cfg = cfg.withDefaults()

	sys, err := linalg.NewSystem(cc.Size())
	if err != nil {
		return Outcome{}, err
	}
	defer sys.Destroy()

	out := Outcome{}
	t := cfg.TStart
	h := cfg.H
	x := x0
	if x == nil {
		x = make([]float64, cc.Size())
	}

	out.Samples = append(out.Samples, Sample{T: t, X: cloneVec(x)})

	var prevSnapshotH float64
	var prevDelta []float64 // previous accepted step's state delta, for LTE

	for t < cfg.TStop {
		if cancel != nil && cancel() {
			break
		}

		if h < cfg.MinStep {
			out.FailureReason = ErrStepBelowMin
			out.Converged = false
			return out, nil
		}

		step := math.Min(h, cfg.TStop-t)
		snap := cc.Snapshot()

		if cfg.Control != nil {
			applyControl(cc, cfg.Control(t+step))
		}

		res := solver.SolveWithContinuation(cc, sys, solver.Step{T: t + step, H: step, Method: cfg.Method}, opt)

		if !res.Converged {
			cc.Restore(snap)
			out.StepsRejected++
			h /= 2
			continue
		}

		accept := true
		if cfg.Adaptive && prevDelta != nil {
			lte := estimateLTE(x, res.X, prevDelta, step, prevSnapshotH)
			if lte > cfg.LTETol {
				accept = false
			}
		}

		if !accept {
			cc.Restore(snap)
			out.StepsRejected++
			h /= 2
			continue
		}

		delta := make([]float64, len(x))
		for i := range x {
			delta[i] = res.X[i] - x[i]
		}

		cc.CommitStep(res.X)
		t += step
		x = res.X
		out.Samples = append(out.Samples, Sample{T: t, X: cloneVec(x)})
		out.StepsAccepted++
		prevDelta = delta
		prevSnapshotH = step

		if cfg.Adaptive {
			h = math.Min(h*1.1, cfg.MaxStep)
		}
	}

	out.Converged = out.FailureReason == nil
	return out, nil
}

// estimateLTE is a divided-difference local truncation error estimate
// (spec §4.6): compares the actual state change over this step against
// the extrapolation implied by the previous step's change, normalized by
// the current state magnitude.
func estimateLTE(xPrev, xNew, prevDelta []float64, h, hPrev float64) float64 {
	if hPrev <= 0 {
		return 0
	}
	ratio := h / hPrev
	maxErr, maxScale := 0.0, 1e-12
	for i := range xNew {
		predicted := xPrev[i] + prevDelta[i]*ratio
		actual := xNew[i]
		e := math.Abs(actual - predicted)
		if e > maxErr {
			maxErr = e
		}
		if math.Abs(actual) > maxScale {
			maxScale = math.Abs(actual)
		}
	}
	return maxErr / maxScale
}

// applyControl realizes spec §6's "control is applied by mutating the
// affected sources' DC value ... before the next assemble": source
// elements stay immutable, the driver-owned CompiledCircuit.Overrides map
// carries the instantaneous value instead.
func applyControl(cc *circuit.CompiledCircuit, overrides map[string]float64) {
	for name, v := range overrides {
		cc.SetOverride(name, v)
	}
}

func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
