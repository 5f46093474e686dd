package analysis

import (
	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/companion"
	"github.com/edp1096/swspice/internal/linalg"
	"github.com/edp1096/swspice/solver"
)

// Stepped is the externalized transient loop of spec §6:
// stepped_transient(circuit, config).{init, step(inputs)->StepResult,
// is_finished, cancel}. Unlike Transient, the caller drives each step and
// supplies control inputs (PWM gate drive, etc.) between steps.
type Stepped struct {
	cc       *circuit.CompiledCircuit
	sys      *linalg.System
	opt      solver.Options
	method   companion.Method
	h, tStop float64
	t        float64
	finished bool
	canceled bool
}

// NewStepped constructs and initializes a Stepped run, seeded at the DC
// operating point (spec §6's "init").
func NewStepped(cc *circuit.CompiledCircuit, opts TransientOptions) (*Stepped, error) {
	dc, err := DCAnalysis(cc, DCOptions{})
	if err != nil {
		return nil, err
	}

	sys, err := linalg.NewSystem(cc.Size())
	if err != nil {
		return nil, err
	}

	solverOpt := opts.Solver
	if solverOpt.MaxIter == 0 {
		solverOpt = solver.DefaultOptions()
	}

	if dc.Converged {
		cc.CommitStep(dc.x)
	}

	return &Stepped{
		cc: cc, sys: sys, opt: solverOpt,
		method: opts.Method, h: opts.H, tStop: opts.TStop, t: opts.TStart,
	}, nil
}

// IsFinished reports whether t_stop has been reached or Cancel was called.
func (s *Stepped) IsFinished() bool { return s.finished || s.canceled || s.t >= s.tStop }

// Cancel sets the cooperative cancel flag (spec §5/§4.6).
func (s *Stepped) Cancel() { s.canceled = true }

// Close releases the underlying sparse matrix.
func (s *Stepped) Close() { s.sys.Destroy() }

// Step advances exactly one accepted time step, applying inputs (spec
// §6's control_callback(t) -> {source_name: value_or_bool}, pre-mapped by
// the caller to float64) before assembling. On Newton non-convergence for
// every offered step size down to h_min, returns a StepResult with
// Converged=false and the structured Reason.
func (s *Stepped) Step(inputs map[string]float64) StepResult {
	if s.IsFinished() {
		return StepResult{T: s.t, Converged: false, Reason: ReasonStepRejectedBelowMin}
	}

	for name, v := range inputs {
		s.cc.SetOverride(name, v)
	}

	h := s.h
	minStep := s.h / 1024
	for h >= minStep {
		step := h
		if s.t+step > s.tStop {
			step = s.tStop - s.t
		}
		snap := s.cc.Snapshot()
		res := solver.SolveWithContinuation(s.cc, s.sys, solver.Step{T: s.t + step, H: step, Method: s.method}, s.opt)
		if res.Converged {
			s.cc.CommitStep(res.X)
			s.t += step
			if s.t >= s.tStop {
				s.finished = true
			}
			return newStepResult(s.cc, s.t, res.X, true, ReasonNone)
		}
		s.cc.Restore(snap)
		h /= 2
	}

	s.finished = true
	return StepResult{T: s.t, Converged: false, Reason: ReasonStepRejectedBelowMin}
}

func newStepResult(cc *circuit.CompiledCircuit, t float64, x []float64, converged bool, reason Reason) StepResult {
	nv := make(map[string]float64, len(cc.NodeIndex))
	for name := range cc.NodeIndex {
		nv[name] = cc.NodeVoltage(x, name)
	}
	bc := make(map[string]float64)
	states := make(map[string]ComponentState)
	for _, e := range cc.Elements {
		if e.ExtraVars() > 0 {
			if v, ok := cc.BranchCurrent(x, e.Name()); ok {
				bc[e.Name()] = v
			}
		}
		if m, ok := e.(*Mosfet); ok && m.IsSwitchMode() {
			vgs := cc.NodeVoltage(x, m.GateNode()) - cc.NodeVoltage(x, m.SourceNode())
			on := vgs >= m.Threshold()
			states[e.Name()] = ComponentState{GateOn: &on}
		}
		if d, ok := e.(*Diode); ok {
			if i, ok := cc.BranchCurrent(x, d.Name()); ok {
				conducting := i > 1e-9
				states[e.Name()] = ComponentState{DiodeConducting: &conducting}
			}
		}
	}
	return StepResult{T: t, NodeVoltages: nv, BranchCurrents: bc, ComponentStates: states, Converged: converged, Reason: reason}
}

// Mosfet/Diode aliases so newStepResult's type switch above can reference
// the circuit package's sealed element types without importing it twice
// under a different name.
type Mosfet = circuit.Mosfet
type Diode = circuit.Diode
