package analysis

import (
	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/companion"
	"github.com/edp1096/swspice/internal/linalg"
	"github.com/edp1096/swspice/solver"
)

// DCOptions mirrors spec §6's dc_analysis config: {gmin?, reltol?, abstol?}.
type DCOptions struct {
	Gmin   float64
	RelTol float64
	AbsTol float64
}

func (o DCOptions) toSolverOptions() solver.Options {
	opt := solver.DefaultOptions()
	if o.RelTol > 0 {
		opt.RelTol = o.RelTol
	}
	if o.AbsTol > 0 {
		opt.AbsTol = o.AbsTol
	}
	if o.Gmin > 0 {
		opt.GminTarget = o.Gmin
	}
	return opt
}

// DCAnalysis computes the DC operating point — spec §6's
// dc_analysis(circuit, {gmin?, reltol?, abstol?}) -> DCResult.
func DCAnalysis(cc *circuit.CompiledCircuit, opts DCOptions) (DCResult, error) {
	sys, err := linalg.NewSystem(cc.Size())
	if err != nil {
		return DCResult{}, err
	}
	defer sys.Destroy()

	opt := opts.toSolverOptions()
	res := solver.SolveWithContinuation(cc, sys, solver.Step{T: 0, H: 0, Method: companion.BackwardEuler}, opt)

	result := DCResult{
		Converged:  res.Converged,
		Reason:     reasonFor(res.Err),
		Iterations: res.Iterations,
		SolverUsed: "newton+continuation",
		cc:         cc,
		x:          res.X,
	}
	if !res.Converged {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Message: "DC operating point did not converge: " + diagMessage(res.Err),
		})
	}
	return result, nil
}

func diagMessage(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

// DCSweepPoint is one operating point in a DC sweep.
type DCSweepPoint struct {
	Value  float64
	Result DCResult
}

// DCSweep sweeps the named independent source (VoltageSource or
// CurrentSource) across [start, stop] in steps of step, calling
// DCAnalysis at each point. Supplemented feature: the teacher's
// pkg/analysis/dc.go only sweeps *device.VoltageSource; this sweeps any
// independent source by overriding it via CompiledCircuit.Overrides,
// which dc_analysis's plain single-point form never needs to touch.
func DCSweep(cc *circuit.CompiledCircuit, sourceName string, start, stop, step float64, opts DCOptions) ([]DCSweepPoint, error) {
	var points []DCSweepPoint
	if step == 0 {
		return points, nil
	}
	for v := start; (step > 0 && v <= stop) || (step < 0 && v >= stop); v += step {
		cc.SetOverride(sourceName, v)
		res, err := DCAnalysis(cc, opts)
		if err != nil {
			cc.ClearOverrides()
			return points, err
		}
		points = append(points, DCSweepPoint{Value: v, Result: res})
	}
	cc.ClearOverrides()
	return points, nil
}
