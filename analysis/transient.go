package analysis

import (
	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/companion"
	"github.com/edp1096/swspice/internal/diag"
	"github.com/edp1096/swspice/solver"
	"github.com/edp1096/swspice/transient"
)

// TransientOptions mirrors spec §6's transient config:
// {t_start, t_stop, h, method, max_step?}.
type TransientOptions struct {
	TStart, TStop float64
	H             float64
	Method        companion.Method
	MaxStep       float64
	Adaptive      bool
	Control       transient.ControlFunc
	Solver        solver.Options // zero value -> solver.DefaultOptions()
}

// Transient runs the full time loop — spec §6's
// transient(circuit, {...}, control_callback?) -> TransientResult.
// It first computes the DC operating point to seed t=0 (spec §4.2: the DC
// operating point anchors waveform evaluation and source stepping).
func Transient(cc *circuit.CompiledCircuit, opts TransientOptions) (TransientResult, error) {
	dc, err := DCAnalysis(cc, DCOptions{})
	if err != nil {
		return TransientResult{}, err
	}

	solverOpt := opts.Solver
	if solverOpt.MaxIter == 0 {
		solverOpt = solver.DefaultOptions()
	}

	cfg := transient.Config{
		TStart: opts.TStart, TStop: opts.TStop, H: opts.H, Method: opts.Method,
		MaxStep: opts.MaxStep, Adaptive: opts.Adaptive, Control: opts.Control,
	}

	var x0 []float64
	if dc.Converged {
		x0 = dc.x
	}

	out, err := transient.Run(cc, cfg, solverOpt, x0, nil)
	if err != nil {
		return TransientResult{}, err
	}

	return buildTransientResult(cc, out), nil
}

// checkWaveformRange walks every sampled instant against each independent
// source's PWL breakpoint range, recording one warning per source that ever
// falls outside it — spec §7: out-of-range PWL lookups clamp to the nearest
// endpoint and warn rather than fail.
func checkWaveformRange(cc *circuit.CompiledCircuit, out transient.Outcome, col *diag.Collector) {
	warned := make(map[string]bool)
	for _, e := range cc.Elements {
		var inRange func(t float64) bool
		switch el := e.(type) {
		case *circuit.VoltageSource:
			inRange = el.W.InRange
		case *circuit.CurrentSource:
			inRange = el.W.InRange
		default:
			continue
		}
		for _, s := range out.Samples {
			if !inRange(s.T) {
				if !warned[e.Name()] {
					col.Warnf("source %q: t=%g outside PWL breakpoint range, clamped to nearest endpoint", e.Name(), s.T)
					warned[e.Name()] = true
				}
			}
		}
	}
}

func buildTransientResult(cc *circuit.CompiledCircuit, out transient.Outcome) TransientResult {
	col := diag.New()
	checkWaveformRange(cc, out, col)

	res := TransientResult{
		TimePoints:     make([]float64, len(out.Samples)),
		NodeVoltages:   make(map[string][]float64),
		BranchCurrents: make(map[string][]float64),
		StepsAccepted:  out.StepsAccepted,
		StepsRejected:  out.StepsRejected,
		Converged:      out.Converged,
		Reason:         reasonFor(out.FailureReason),
	}
	if out.FailureReason != nil {
		res.Reason = ReasonStepRejectedBelowMin
	}
	for _, entry := range col.Entries() {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{Message: entry.Message})
	}

	for name := range cc.NodeIndex {
		res.NodeVoltages[name] = make([]float64, len(out.Samples))
	}
	for _, e := range cc.Elements {
		if e.ExtraVars() > 0 {
			res.BranchCurrents[e.Name()] = make([]float64, len(out.Samples))
		}
	}

	for i, s := range out.Samples {
		res.TimePoints[i] = s.T
		for name := range res.NodeVoltages {
			res.NodeVoltages[name][i] = cc.NodeVoltage(s.X, name)
		}
		for name := range res.BranchCurrents {
			if v, ok := cc.BranchCurrent(s.X, name); ok {
				res.BranchCurrents[name][i] = v
			}
		}
	}

	return res
}
