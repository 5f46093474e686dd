// Package analysis exposes the external analysis API of spec §6:
// dc_analysis, transient, stepped_transient, and their result objects.
//
// Grounded on the teacher's pkg/analysis/anlysis.go/op.go/dc.go/tran.go.
package analysis

import (
	"errors"

	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/linalg"
	"github.com/edp1096/swspice/solver"
)

// Reason is the structured failure reason of spec §6/§7.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonSingularMatrix       Reason = "SingularMatrix"
	ReasonIterationLimit       Reason = "IterationLimit"
	ReasonLCPFailed            Reason = "LCPFailed"
	ReasonStepRejectedBelowMin Reason = "StepRejectedBelowMin"
)

func reasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, linalg.ErrSingularMatrix):
		return ReasonSingularMatrix
	case errors.Is(err, circuit.ErrLCPFailed):
		return ReasonLCPFailed
	case errors.Is(err, solver.ErrIterationLimit):
		return ReasonIterationLimit
	default:
		return ReasonIterationLimit
	}
}

// Diagnostic is one entry in a result's warning log (spec §7: waveform
// out-of-range clamps "emit a warning in the result's diagnostic log;
// never fail the simulation").
type Diagnostic struct {
	Message string
}

// DCResult is spec §6's DCResult object.
type DCResult struct {
	Converged     bool
	Reason        Reason
	Iterations    int
	SolverUsed    string
	Diagnostics   []Diagnostic

	cc *circuit.CompiledCircuit
	x  []float64
}

func (r DCResult) NodeVoltage(name string) float64 {
	if r.cc == nil {
		return 0
	}
	return r.cc.NodeVoltage(r.x, name)
}

func (r DCResult) BranchCurrent(name string) (float64, bool) {
	if r.cc == nil {
		return 0, false
	}
	return r.cc.BranchCurrent(r.x, name)
}

// TransientResult is spec §6's TransientResult object.
type TransientResult struct {
	TimePoints     []float64
	NodeVoltages   map[string][]float64
	BranchCurrents map[string][]float64
	StepsAccepted  int
	StepsRejected  int
	Converged      bool
	Reason         Reason
	Diagnostics    []Diagnostic
}

// StepResult is spec §6's StepResult object, returned by one
// stepped_transient.step(inputs) call.
type StepResult struct {
	T              float64
	NodeVoltages   map[string]float64
	BranchCurrents map[string]float64
	ComponentStates map[string]ComponentState
	Converged      bool
	Reason         Reason
}

// ComponentState reports switch-level state for PWM/diagnostic consumers
// (spec §6: "component_states: name->{gate_on?, diode_conducting?, region?}").
type ComponentState struct {
	GateOn         *bool
	DiodeConducting *bool
	Region         *int
}
