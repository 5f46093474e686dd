// Package circuit defines the sealed element union, the compile-time
// flattening/indexing pass, and the per-step assembly dispatcher — spec
// §3 (Data Model), §4.2 (element library), §4.3 (MNA assembler), §9's
// re-architecture notes.
//
// Grounded on the teacher's pkg/circuit/circuit.go (lifecycle:
// AssignNodeBranchMaps / CreateMatrix / SetupDevices, generalized into one
// Compile call producing an immutable value) and pkg/device/*.go (the
// per-element stamping formulas, generalized off the teacher's
// Device-interface-plus-type-switch into a sealed tagged union: Assembly
// dispatches on the concrete type in assemble.go rather than through a
// polymorphic Stamp method each device closed over mutable state with).
package circuit

import (
	"errors"
	"fmt"

	"github.com/edp1096/swspice/internal/waveform"
)

// ErrValidation wraps all construction/compile-time validation errors
// (spec §7: "surfaced synchronously from element constructors and from
// compile(); non-recoverable at that call site").
var ErrValidation = errors.New("circuit: validation error")

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrLCPFailed wraps a complementarity-switch assembly failure: the Lemke
// solve terminated as Unbounded or hit its iteration limit instead of
// Solved (spec §4.4: "Unbounded ... does not silently succeed"). Assemble
// returns it to the enclosing Newton iteration, which surfaces it as
// non-convergence and triggers continuation (spec §7).
var ErrLCPFailed = errors.New("circuit: LCP solve did not reach a complementary solution")

// Element is a sealed tagged union: only the concrete types in this file
// implement it (the unexported sealedElement method prevents external
// packages from adding variants — spec §9's "recast as a sealed tagged
// union over concrete element records").
type Element interface {
	sealedElement()
	// Name is the unique element identifier.
	Name() string
	// Nodes returns the element's ordered terminal node names (ground
	// node "0"/"gnd" included positionally where relevant).
	Nodes() []string
	// ExtraVars is the number of auxiliary unknowns (branch currents,
	// controlled outputs) this element reserves — spec §9's declarative
	// "extra variable" request API; Compile assigns their global
	// indices and the CompiledCircuit hands them back at assembly time rather
	// than the element storing its own index (replaces the teacher's
	// SetBranchIndex/branchIdx ad-hoc fields).
	ExtraVars() int
}

// --- Resistor ---------------------------------------------------------

type Resistor struct {
	name string
	a, b string
	R    float64
}

func NewResistor(name, a, b string, r float64) (*Resistor, error) {
	if r <= 0 {
		return nil, validationf("resistor %q: R must be > 0, got %g", name, r)
	}
	if a == b {
		return nil, validationf("resistor %q: self-short (a == b == %q)", name, a)
	}
	return &Resistor{name: name, a: a, b: b, R: r}, nil
}

func (e *Resistor) sealedElement()  {}
func (e *Resistor) Name() string    { return e.name }
func (e *Resistor) Nodes() []string { return []string{e.a, e.b} }
func (e *Resistor) ExtraVars() int  { return 0 }

// --- Capacitor ----------------------------------------------------------

type Capacitor struct {
	name string
	a, b string
	C    float64
	IC   float64 // initial voltage, volts
}

func NewCapacitor(name, a, b string, c float64, ic float64) (*Capacitor, error) {
	if c <= 0 {
		return nil, validationf("capacitor %q: C must be > 0, got %g", name, c)
	}
	if a == b {
		return nil, validationf("capacitor %q: self-short (a == b == %q)", name, a)
	}
	return &Capacitor{name: name, a: a, b: b, C: c, IC: ic}, nil
}

func (e *Capacitor) sealedElement()  {}
func (e *Capacitor) Name() string    { return e.name }
func (e *Capacitor) Nodes() []string { return []string{e.a, e.b} }
func (e *Capacitor) ExtraVars() int  { return 0 }

// --- Inductor -----------------------------------------------------------

// Dot identifies which terminal of an inductor is the dotted (polarity
// reference) terminal for mutual-coupling sign derivation — spec §9's
// named redesign ("define an explicit per-winding dot_terminal on the
// coupling declaration").
type Dot int

const (
	DotA Dot = iota
	DotB
)

type Inductor struct {
	name string
	a, b string
	L    float64
	IC   float64 // initial current, amps
	Dot  Dot
}

func NewInductor(name, a, b string, l float64, ic float64, dot Dot) (*Inductor, error) {
	if l <= 0 {
		return nil, validationf("inductor %q: L must be > 0, got %g", name, l)
	}
	if a == b {
		return nil, validationf("inductor %q: self-short (a == b == %q)", name, a)
	}
	return &Inductor{name: name, a: a, b: b, L: l, IC: ic, Dot: dot}, nil
}

func (e *Inductor) sealedElement()  {}
func (e *Inductor) Name() string    { return e.name }
func (e *Inductor) Nodes() []string { return []string{e.a, e.b} }
func (e *Inductor) ExtraVars() int  { return 1 } // branch current I_L

// --- Coupling (mutual inductance, K element) -----------------------------

type Coupling struct {
	name   string
	L1, L2 string // referenced inductor names
	K      float64
}

func NewCoupling(name, l1, l2 string, k float64) (*Coupling, error) {
	if k <= 0 || k > 1 {
		return nil, validationf("coupling %q: k must be in (0,1], got %g", name, k)
	}
	if l1 == l2 {
		return nil, validationf("coupling %q: cannot couple inductor %q to itself", name, l1)
	}
	return &Coupling{name: name, L1: l1, L2: l2, K: k}, nil
}

func (e *Coupling) sealedElement()  {}
func (e *Coupling) Name() string    { return e.name }
func (e *Coupling) Nodes() []string { return nil }
func (e *Coupling) ExtraVars() int  { return 0 }

// --- Ideal transformer (primitive, 4-terminal) ---------------------------

// IdealTransformer is a primitive two-extra-variable element (I_p, I_s)
// with turns ratio n — spec §4.2's "ideal transformer" formula set.
// Unlike Transformer (below) it is not flattened; it is stamped directly.
type IdealTransformer struct {
	name       string
	p1, p2     string
	s1, s2     string
	TurnsRatio float64 // n = Vp/Vs
}

func NewIdealTransformer(name string, primary, secondary [2]string, n float64) (*IdealTransformer, error) {
	if n == 0 {
		return nil, validationf("transformer %q: turns ratio must be nonzero", name)
	}
	return &IdealTransformer{name: name, p1: primary[0], p2: primary[1], s1: secondary[0], s2: secondary[1], TurnsRatio: n}, nil
}

func (e *IdealTransformer) sealedElement()  {}
func (e *IdealTransformer) Name() string    { return e.name }
func (e *IdealTransformer) Nodes() []string { return []string{e.p1, e.p2, e.s1, e.s2} }
func (e *IdealTransformer) ExtraVars() int  { return 2 } // I_p, I_s

// --- Multi-winding transformer (composite; flattened at compile time) ----

// Winding describes one winding of a composite multi-winding transformer.
type Winding struct {
	Name        string // synthesized inductor name after flattening
	Nodes       [2]string
	Inductance  float64
	Dot         Dot
}

// Transformer is a composite: the compiler flattens it into one Inductor
// per winding plus one Coupling per nonzero entry above the diagonal of CouplingMatrix
// before indexing begins (spec §4.2: "the compiler flattens it to
// primitive coupled inductors before indexing. The driver never sees the
// composite directly." / invariant #4). It therefore does NOT implement
// Element — Compile() consumes and discards it, emitting primitives.
type Transformer struct {
	Name           string
	Windings       []Winding
	CouplingMatrix [][]float64 // only entries above the diagonal are read; 0 = uncoupled, else in (0,1]
}

func NewTransformer(name string, windings []Winding, couplingMatrix [][]float64) (*Transformer, error) {
	if len(windings) < 2 {
		return nil, validationf("transformer %q: needs at least 2 windings, got %d", name, len(windings))
	}
	if len(couplingMatrix) != len(windings) {
		return nil, validationf("transformer %q: coupling matrix dimension %d != winding count %d", name, len(couplingMatrix), len(windings))
	}
	for i, row := range couplingMatrix {
		if len(row) != len(windings) {
			return nil, validationf("transformer %q: coupling matrix row %d has dimension %d != %d", name, i, len(row), len(windings))
		}
	}
	for i, w := range windings {
		if w.Inductance <= 0 {
			return nil, validationf("transformer %q: winding %d (%s) inductance must be > 0", name, i, w.Name)
		}
	}
	return &Transformer{Name: name, Windings: windings, CouplingMatrix: couplingMatrix}, nil
}

// flatten expands a Transformer into primitive Inductor + Coupling
// elements, synthesizing unique names from the transformer and winding
// names.
func (t *Transformer) flatten() ([]Element, error) {
	out := make([]Element, 0, len(t.Windings)+len(t.Windings)*(len(t.Windings)-1)/2)
	names := make([]string, len(t.Windings))
	for i, w := range t.Windings {
		indName := fmt.Sprintf("%s.%s", t.Name, w.Name)
		names[i] = indName
		ind, err := NewInductor(indName, w.Nodes[0], w.Nodes[1], w.Inductance, 0, w.Dot)
		if err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	for i := 0; i < len(t.Windings); i++ {
		for j := i + 1; j < len(t.Windings); j++ {
			k := t.CouplingMatrix[i][j]
			if k == 0 {
				continue
			}
			cpl, err := NewCoupling(fmt.Sprintf("%s.K%d%d", t.Name, i, j), names[i], names[j], k)
			if err != nil {
				return nil, err
			}
			out = append(out, cpl)
		}
	}
	return out, nil
}

// --- Independent sources --------------------------------------------------

type VoltageSource struct {
	name string
	a, b string
	W    waveform.Waveform
}

func NewVoltageSource(name, a, b string, w waveform.Waveform) (*VoltageSource, error) {
	if a == b {
		return nil, validationf("voltage source %q: self-short (a == b == %q)", name, a)
	}
	return &VoltageSource{name: name, a: a, b: b, W: w}, nil
}

func (e *VoltageSource) sealedElement()  {}
func (e *VoltageSource) Name() string    { return e.name }
func (e *VoltageSource) Nodes() []string { return []string{e.a, e.b} }
func (e *VoltageSource) ExtraVars() int  { return 1 } // branch current

type CurrentSource struct {
	name string
	a, b string
	W    waveform.Waveform
}

func NewCurrentSource(name, a, b string, w waveform.Waveform) (*CurrentSource, error) {
	if a == b {
		return nil, validationf("current source %q: self-short (a == b == %q)", name, a)
	}
	return &CurrentSource{name: name, a: a, b: b, W: w}, nil
}

func (e *CurrentSource) sealedElement()  {}
func (e *CurrentSource) Name() string    { return e.name }
func (e *CurrentSource) Nodes() []string { return []string{e.a, e.b} }
func (e *CurrentSource) ExtraVars() int  { return 0 }

// --- Controlled sources (E/F/G/H) -----------------------------------------

type ControlledKind int

const (
	VCVS ControlledKind = iota // voltage-controlled voltage source (E)
	VCCS                       // voltage-controlled current source (G)
	CCCS                       // current-controlled current source (F)
	CCVS                       // current-controlled voltage source (H)
)

// ControlledSource covers E/F/G/H. For VCVS/VCCS, ctrlP/ctrlN are the
// controlling node pair. For CCCS/CCVS, ctrlElement names the controlling
// element, which must itself expose a current unknown (a VoltageSource,
// Inductor, or another CCVS/VCVS) — spec §4.2.
type ControlledSource struct {
	name         string
	kind         ControlledKind
	outP, outN   string
	ctrlP, ctrlN string
	ctrlElement  string
	gain         float64
}

func NewVCVS(name, outP, outN, ctrlP, ctrlN string, gain float64) (*ControlledSource, error) {
	return &ControlledSource{name: name, kind: VCVS, outP: outP, outN: outN, ctrlP: ctrlP, ctrlN: ctrlN, gain: gain}, nil
}

func NewVCCS(name, outP, outN, ctrlP, ctrlN string, gain float64) (*ControlledSource, error) {
	return &ControlledSource{name: name, kind: VCCS, outP: outP, outN: outN, ctrlP: ctrlP, ctrlN: ctrlN, gain: gain}, nil
}

func NewCCCS(name, outP, outN, ctrlElement string, gain float64) (*ControlledSource, error) {
	if ctrlElement == "" {
		return nil, validationf("CCCS %q: controlling element reference required", name)
	}
	return &ControlledSource{name: name, kind: CCCS, outP: outP, outN: outN, ctrlElement: ctrlElement, gain: gain}, nil
}

func NewCCVS(name, outP, outN, ctrlElement string, gain float64) (*ControlledSource, error) {
	if ctrlElement == "" {
		return nil, validationf("CCVS %q: controlling element reference required", name)
	}
	return &ControlledSource{name: name, kind: CCVS, outP: outP, outN: outN, ctrlElement: ctrlElement, gain: gain}, nil
}

func (e *ControlledSource) sealedElement()  {}
func (e *ControlledSource) Name() string    { return e.name }
func (e *ControlledSource) Nodes() []string { return []string{e.outP, e.outN, e.ctrlP, e.ctrlN} }
func (e *ControlledSource) ExtraVars() int {
	switch e.kind {
	case VCVS, CCVS:
		return 1
	default:
		return 0
	}
}

// --- Diode ----------------------------------------------------------------

type DiodeMode int

const (
	DiodeShockley DiodeMode = iota
	DiodeComplementarity
)

type Diode struct {
	name           string
	anode, cathode string
	Mode           DiodeMode
	// Shockley
	Is, N, Vt, Rs float64
	// Complementarity
	Vf, Ron float64
}

func NewShockleyDiode(name, anode, cathode string, is, n, vt, rs float64) (*Diode, error) {
	if is <= 0 || n <= 0 || vt <= 0 {
		return nil, validationf("diode %q: Is, n, Vt must be > 0", name)
	}
	return &Diode{name: name, anode: anode, cathode: cathode, Mode: DiodeShockley, Is: is, N: n, Vt: vt, Rs: rs}, nil
}

func NewComplementarityDiode(name, anode, cathode string, vf, ron float64) (*Diode, error) {
	if ron <= 0 {
		return nil, validationf("diode %q: Ron must be > 0", name)
	}
	return &Diode{name: name, anode: anode, cathode: cathode, Mode: DiodeComplementarity, Vf: vf, Ron: ron}, nil
}

func (e *Diode) sealedElement()  {}
func (e *Diode) Name() string    { return e.name }
func (e *Diode) Nodes() []string { return []string{e.anode, e.cathode} }
func (e *Diode) ExtraVars() int {
	if e.Mode == DiodeComplementarity {
		return 1 // complementarity current z
	}
	return 0
}

// --- MOSFET -----------------------------------------------------------

type MosfetMode int

const (
	MosfetSquareLaw MosfetMode = iota
	MosfetSwitch
)

type MosfetPolarity int

const (
	NMOS MosfetPolarity = iota
	PMOS
)

type Mosfet struct {
	name          string
	d, g, s       string
	Polarity      MosfetPolarity
	Mode          MosfetMode
	Vth, Kp, W, L float64 // square-law
	Ron, Roff     float64 // switch
	BodyDiodeVf   float64 // body diode forward voltage (switch mode)
}

func NewSquareLawMosfet(name, d, g, s string, polarity MosfetPolarity, vth, kp, w, l float64) (*Mosfet, error) {
	if kp <= 0 || w <= 0 || l <= 0 {
		return nil, validationf("mosfet %q: Kp, W, L must be > 0", name)
	}
	return &Mosfet{name: name, d: d, g: g, s: s, Polarity: polarity, Mode: MosfetSquareLaw, Vth: vth, Kp: kp, W: w, L: l}, nil
}

func NewSwitchMosfet(name, d, g, s string, polarity MosfetPolarity, vth, ron, roff, bodyDiodeVf float64) (*Mosfet, error) {
	if ron <= 0 || roff <= 0 {
		return nil, validationf("mosfet %q: Ron, Roff must be > 0", name)
	}
	return &Mosfet{name: name, d: d, g: g, s: s, Polarity: polarity, Mode: MosfetSwitch, Vth: vth, Ron: ron, Roff: roff, BodyDiodeVf: bodyDiodeVf}, nil
}

func (e *Mosfet) sealedElement()  {}
func (e *Mosfet) Name() string    { return e.name }
func (e *Mosfet) Nodes() []string { return []string{e.d, e.g, e.s} }
// ExtraVars reserves one auxiliary unknown in switch mode: the body
// diode's complementarity branch current. The channel's on/off state is a
// direct function of Vgs vs Vth, stamped as a plain conductance, and needs
// no auxiliary unknown of its own.
func (e *Mosfet) ExtraVars() int {
	if e.Mode == MosfetSwitch {
		return 1
	}
	return 0
}

func (e *Mosfet) IsSwitchMode() bool { return e.Mode == MosfetSwitch }
func (e *Mosfet) GateNode() string   { return e.g }
func (e *Mosfet) SourceNode() string { return e.s }
func (e *Mosfet) Threshold() float64 { return e.Vth }
