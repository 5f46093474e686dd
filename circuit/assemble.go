package circuit

import (
	"fmt"
	"math"

	"github.com/edp1096/swspice/internal/companion"
	"github.com/edp1096/swspice/internal/lcp"
	"github.com/edp1096/swspice/internal/linalg"
)

// StepContext is the per-Newton-iteration assembly context — spec §4.2's
// assemble(ctx) contract (ctx.matrix/ctx.rhs are the passed-in System;
// ctx.node_index/ctx.extra_var_index are CompiledCircuit methods;
// ctx.t, ctx.h, ctx.x_prev, ctx.x_iter, ctx.gmin are the fields below).
type StepContext struct {
	T, H   float64
	Method companion.Method
	XPrev  []float64 // committed previous solution, len == cc.Size()
	XIter  []float64 // current Newton iterate; nil on the first iteration
	Gmin   float64
	// SourceScale implements source stepping (spec §4.5): every
	// independent source's waveform value is multiplied by this factor,
	// 1.0 under normal operation.
	SourceScale float64
}

func (c *CompiledCircuit) valueAt(x []float64, nodeName string) float64 {
	if x == nil {
		return 0
	}
	idx := c.nodeOf(nodeName)
	if idx < 0 {
		return 0
	}
	return x[idx]
}

func (c *CompiledCircuit) extraAt(x []float64, elementName string, i int) float64 {
	if x == nil {
		return 0
	}
	idx, err := c.extraVar(elementName, i)
	if err != nil {
		return 0
	}
	return x[idx]
}

// Assemble clears sys and restamps every element plus Gmin injection —
// spec §4.3 responsibility (4). Element traversal order never affects the
// result since stamping is strictly additive (invariant honored by
// construction: every branch below only calls Add/AddRHS, never Set).
func Assemble(cc *CompiledCircuit, sys *linalg.System, ctx StepContext) error {
	sys.Clear()

	scale := ctx.SourceScale
	if scale == 0 {
		scale = 1.0
	}

	for _, e := range cc.Elements {
		var err error
		switch el := e.(type) {
		case *Resistor:
			err = cc.stampResistor(sys, el)
		case *Capacitor:
			err = cc.stampCapacitor(sys, el, ctx)
		case *Inductor:
			err = cc.stampInductor(sys, el, ctx)
		case *Coupling:
			err = cc.stampCoupling(sys, el, ctx)
		case *IdealTransformer:
			err = cc.stampIdealTransformer(sys, el)
		case *VoltageSource:
			err = cc.stampVoltageSource(sys, el, ctx, scale)
		case *CurrentSource:
			err = cc.stampCurrentSource(sys, el, ctx, scale)
		case *ControlledSource:
			err = cc.stampControlledSource(sys, el, ctx)
		case *Diode:
			err = cc.stampDiode(sys, el, ctx)
		case *Mosfet:
			err = cc.stampMosfet(sys, el, ctx)
		}
		if err != nil {
			return err
		}
	}

	sys.LoadGmin(ctx.Gmin)
	return nil
}

// stampConductance is the shared two-terminal conductance pattern used by
// R, the capacitor/inductor companion models, Ron/Roff switches, etc.
func stampConductance(sys *linalg.System, a, b int, g float64) error {
	if a >= 0 {
		if err := sys.Add(a, a, g); err != nil {
			return err
		}
	}
	if b >= 0 {
		if err := sys.Add(b, b, g); err != nil {
			return err
		}
	}
	if a >= 0 && b >= 0 {
		if err := sys.Add(a, b, -g); err != nil {
			return err
		}
		if err := sys.Add(b, a, -g); err != nil {
			return err
		}
	}
	return nil
}

func stampCurrentInto(sys *linalg.System, a, b int, i float64) error {
	if a >= 0 {
		if err := sys.AddRHS(a, i); err != nil {
			return err
		}
	}
	if b >= 0 {
		if err := sys.AddRHS(b, -i); err != nil {
			return err
		}
	}
	return nil
}

// --- Resistor -----------------------------------------------------------

func (c *CompiledCircuit) stampResistor(sys *linalg.System, e *Resistor) error {
	a, b := c.nodeOf(e.a), c.nodeOf(e.b)
	return stampConductance(sys, a, b, 1.0/e.R)
}

// --- Capacitor (spec §4.2, Open Question #1 resolved: Ieq = Geq*Vprev, +a/-b) --

func (c *CompiledCircuit) stampCapacitor(sys *linalg.System, e *Capacitor, ctx StepContext) error {
	a, b := c.nodeOf(e.a), c.nodeOf(e.b)
	st := c.States[e.name]

	if ctx.H <= 0 {
		// DC / first point: open circuit, Gmin only.
		return nil
	}

	geq, ieq := companion.Capacitor(ctx.Method, e.C, ctx.H, st.V0, st.I0)
	if err := stampConductance(sys, a, b, geq); err != nil {
		return err
	}
	return stampCurrentInto(sys, a, b, ieq)
}

// --- Inductor (spec §4.2) -------------------------------------------------

func (c *CompiledCircuit) stampInductor(sys *linalg.System, e *Inductor, ctx StepContext) error {
	a, b := c.nodeOf(e.a), c.nodeOf(e.b)
	ib, err := c.extraVar(e.name, 0)
	if err != nil {
		return err
	}
	st := c.States[e.name]

	var req, history float64
	if ctx.H <= 0 {
		req, history = companion.DCReq, 0
	} else {
		req, history = companion.Inductor(ctx.Method, e.L, ctx.H, st.I0, st.V0)
	}

	// Incidence: node rows get +-1 in the branch-current column; branch
	// row gets +-1 in the node columns and -Req on its own diagonal.
	if a >= 0 {
		if err := sys.Add(a, ib, 1); err != nil {
			return err
		}
		if err := sys.Add(ib, a, 1); err != nil {
			return err
		}
	}
	if b >= 0 {
		if err := sys.Add(b, ib, -1); err != nil {
			return err
		}
		if err := sys.Add(ib, b, -1); err != nil {
			return err
		}
	}
	if err := sys.Add(ib, ib, -req); err != nil {
		return err
	}
	return sys.AddRHS(ib, -history)
}

// --- Coupled inductor / K element (spec §4.2, dot-terminal redesign) -----

func (c *CompiledCircuit) stampCoupling(sys *linalg.System, e *Coupling, ctx StepContext) error {
	if ctx.H <= 0 {
		return nil
	}
	l1, _ := c.elementByName(e.L1)
	l2, _ := c.elementByName(e.L2)
	ind1, ind2 := l1.(*Inductor), l2.(*Inductor)

	ib1, err := c.extraVar(e.L1, 0)
	if err != nil {
		return err
	}
	ib2, err := c.extraVar(e.L2, 0)
	if err != nil {
		return err
	}

	m := e.K * math.Sqrt(ind1.L*ind2.L)

	// Pair sign: +1 if both currents enter from their dot terminal, -1
	// otherwise (spec §4.2/§9's dot-terminal redesign).
	sign := 1.0
	if ind1.Dot != ind2.Dot {
		sign = -1.0
	}

	var mReq float64
	if ctx.Method == companion.Trapezoidal {
		mReq = 2 * m / ctx.H
	} else {
		mReq = m / ctx.H
	}
	mReq *= sign

	st1, st2 := c.States[e.L1], c.States[e.L2]

	// Cross branch-current coupling terms.
	if err := sys.Add(ib1, ib2, -mReq); err != nil {
		return err
	}
	if err := sys.Add(ib2, ib1, -mReq); err != nil {
		return err
	}

	// Cross history terms (mutual contribution to each branch's RHS).
	if err := sys.AddRHS(ib1, mReq*st2.I0); err != nil {
		return err
	}
	return sys.AddRHS(ib2, mReq*st1.I0)
}

// --- Ideal transformer (spec §4.2) ---------------------------------------

func (c *CompiledCircuit) stampIdealTransformer(sys *linalg.System, e *IdealTransformer) error {
	p1, p2 := c.nodeOf(e.p1), c.nodeOf(e.p2)
	s1, s2 := c.nodeOf(e.s1), c.nodeOf(e.s2)
	ip, err := c.extraVar(e.name, 0)
	if err != nil {
		return err
	}
	is, err := c.extraVar(e.name, 1)
	if err != nil {
		return err
	}
	n := e.TurnsRatio

	// Incidence for I_p at primary nodes, I_s at secondary nodes.
	if p1 >= 0 {
		if err := sys.Add(p1, ip, 1); err != nil {
			return err
		}
	}
	if p2 >= 0 {
		if err := sys.Add(p2, ip, -1); err != nil {
			return err
		}
	}
	if s1 >= 0 {
		if err := sys.Add(s1, is, 1); err != nil {
			return err
		}
	}
	if s2 >= 0 {
		if err := sys.Add(s2, is, -1); err != nil {
			return err
		}
	}

	// Constraint row 1 (at ip): V_p - n*V_s = 0.
	if p1 >= 0 {
		if err := sys.Add(ip, p1, 1); err != nil {
			return err
		}
	}
	if p2 >= 0 {
		if err := sys.Add(ip, p2, -1); err != nil {
			return err
		}
	}
	if s1 >= 0 {
		if err := sys.Add(ip, s1, -n); err != nil {
			return err
		}
	}
	if s2 >= 0 {
		if err := sys.Add(ip, s2, n); err != nil {
			return err
		}
	}

	// Constraint row 2 (at is): n*I_p + I_s = 0.
	if err := sys.Add(is, ip, n); err != nil {
		return err
	}
	return sys.Add(is, is, 1)
}

// --- Independent sources (spec §4.2) -------------------------------------

func (c *CompiledCircuit) stampVoltageSource(sys *linalg.System, e *VoltageSource, ctx StepContext, scale float64) error {
	a, b := c.nodeOf(e.a), c.nodeOf(e.b)
	ib, err := c.extraVar(e.name, 0)
	if err != nil {
		return err
	}

	if a >= 0 {
		if err := sys.Add(a, ib, 1); err != nil {
			return err
		}
		if err := sys.Add(ib, a, 1); err != nil {
			return err
		}
	}
	if b >= 0 {
		if err := sys.Add(b, ib, -1); err != nil {
			return err
		}
		if err := sys.Add(ib, b, -1); err != nil {
			return err
		}
	}

	v := e.W.Eval(ctx.T) * scale
	if ov, ok := c.Overrides[e.name]; ok {
		v = ov
	}
	return sys.AddRHS(ib, v)
}

func (c *CompiledCircuit) stampCurrentSource(sys *linalg.System, e *CurrentSource, ctx StepContext, scale float64) error {
	a, b := c.nodeOf(e.a), c.nodeOf(e.b)
	i := e.W.Eval(ctx.T) * scale
	if ov, ok := c.Overrides[e.name]; ok {
		i = ov
	}
	return stampCurrentInto(sys, a, b, i)
}

// --- Controlled sources (spec §4.2) --------------------------------------

func (c *CompiledCircuit) stampControlledSource(sys *linalg.System, e *ControlledSource, ctx StepContext) error {
	outP, outN := c.nodeOf(e.outP), c.nodeOf(e.outN)

	switch e.kind {
	case VCCS:
		ctrlP, ctrlN := c.nodeOf(e.ctrlP), c.nodeOf(e.ctrlN)
		g := e.gain
		add := func(r, cIdx int, v float64) error {
			if r < 0 || cIdx < 0 {
				return nil
			}
			return sys.Add(r, cIdx, v)
		}
		if err := add(outP, ctrlP, g); err != nil {
			return err
		}
		if err := add(outP, ctrlN, -g); err != nil {
			return err
		}
		if err := add(outN, ctrlP, -g); err != nil {
			return err
		}
		return add(outN, ctrlN, g)

	case VCVS:
		ib, err := c.extraVar(e.name, 0)
		if err != nil {
			return err
		}
		ctrlP, ctrlN := c.nodeOf(e.ctrlP), c.nodeOf(e.ctrlN)
		if outP >= 0 {
			if err := sys.Add(outP, ib, 1); err != nil {
				return err
			}
			if err := sys.Add(ib, outP, 1); err != nil {
				return err
			}
		}
		if outN >= 0 {
			if err := sys.Add(outN, ib, -1); err != nil {
				return err
			}
			if err := sys.Add(ib, outN, -1); err != nil {
				return err
			}
		}
		if ctrlP >= 0 {
			if err := sys.Add(ib, ctrlP, -e.gain); err != nil {
				return err
			}
		}
		if ctrlN >= 0 {
			if err := sys.Add(ib, ctrlN, e.gain); err != nil {
				return err
			}
		}
		return nil

	case CCCS:
		ctrlIdx, err := c.extraVar(e.ctrlElement, 0)
		if err != nil {
			return err
		}
		g := e.gain
		if outP >= 0 {
			if err := sys.Add(outP, ctrlIdx, g); err != nil {
				return err
			}
		}
		if outN >= 0 {
			if err := sys.Add(outN, ctrlIdx, -g); err != nil {
				return err
			}
		}
		return nil

	case CCVS:
		ib, err := c.extraVar(e.name, 0)
		if err != nil {
			return err
		}
		ctrlIdx, err := c.extraVar(e.ctrlElement, 0)
		if err != nil {
			return err
		}
		if outP >= 0 {
			if err := sys.Add(outP, ib, 1); err != nil {
				return err
			}
			if err := sys.Add(ib, outP, 1); err != nil {
				return err
			}
		}
		if outN >= 0 {
			if err := sys.Add(outN, ib, -1); err != nil {
				return err
			}
			if err := sys.Add(ib, outN, -1); err != nil {
				return err
			}
		}
		return sys.Add(ib, ctrlIdx, -e.gain)
	}
	return nil
}

// --- Diode (spec §4.2) -----------------------------------------------------

const diodeVmax = 0.8

func (c *CompiledCircuit) stampDiode(sys *linalg.System, e *Diode, ctx StepContext) error {
	a, cath := c.nodeOf(e.anode), c.nodeOf(e.cathode)

	if e.Mode == DiodeShockley {
		vPrev := c.valueAt(ctx.XIter, e.anode) - c.valueAt(ctx.XIter, e.cathode)
		if vPrev > diodeVmax {
			// Above Vmax the exponential is replaced by its tangent line at
			// Vmax (linear extrapolation) to avoid exp overflow; at or below
			// Vmax the exponential model is used as is.
			iAtMax := e.Is * math.Expm1(diodeVmax/(e.N*e.Vt))
			gAtMax := e.Is / (e.N * e.Vt) * math.Exp(diodeVmax/(e.N*e.Vt))
			i := iAtMax + gAtMax*(vPrev-diodeVmax)
			if err := stampConductance(sys, a, cath, gAtMax); err != nil {
				return err
			}
			return stampCurrentInto(sys, a, cath, gAtMax*vPrev-i)
		}
		vt := e.N * e.Vt
		g := e.Is / vt * math.Exp(vPrev/vt)
		i := e.Is * math.Expm1(vPrev/vt)
		ieq := i - g*vPrev
		if err := stampConductance(sys, a, cath, g); err != nil {
			return err
		}
		return stampCurrentInto(sys, a, cath, -ieq)
	}

	return c.stampComplementaritySwitch(sys, e.name, a, cath, e.Vf, e.Ron, ctx, 0)
}

// stampComplementaritySwitch implements the ideal PWL switch of spec
// §4.2/§4.4: w = Vf - V_ak + Ron*z, z = I_forward, w,z>=0, w.z=0. Each
// Newton iteration re-linearizes around the current iterate via a 1x1
// Lemke solve (spec §4.4's substitution "yields a standard LCP in z"),
// then stamps the branch as either Ron-conducting or fully blocking for
// this iteration — Newton convergence settles on the self-consistent
// region. extraSlot selects which of the element's extra vars is this
// switch's branch-current/complementarity unknown (the diode has one;
// the MOSFET's sole extra var is its body diode's).
func (c *CompiledCircuit) stampComplementaritySwitch(sys *linalg.System, elementName string, a, k int, vf, ron float64, ctx StepContext, extraSlot int) error {
	ib, err := c.extraVar(elementName, extraSlot)
	if err != nil {
		return err
	}

	vPrev := 0.0
	if ctx.XIter != nil {
		var va, vk float64
		if a >= 0 {
			va = ctx.XIter[a]
		}
		if k >= 0 {
			vk = ctx.XIter[k]
		}
		vPrev = va - vk
	}

	q := vf - vPrev
	res, err := lcp.Solve([][]float64{{ron}}, []float64{q})
	if err != nil {
		return err
	}
	if res.Status != lcp.Solved {
		return fmt.Errorf("%s: lcp %s: %w", elementName, res.Status, ErrLCPFailed)
	}

	conducting := res.Z[0] > 0

	if conducting {
		// V_a - V_k - Ron*I = Vf
		if a >= 0 {
			if err := sys.Add(ib, a, 1); err != nil {
				return err
			}
			if err := sys.Add(a, ib, 1); err != nil {
				return err
			}
		}
		if k >= 0 {
			if err := sys.Add(ib, k, -1); err != nil {
				return err
			}
			if err := sys.Add(k, ib, -1); err != nil {
				return err
			}
		}
		if err := sys.Add(ib, ib, -ron); err != nil {
			return err
		}
		return sys.AddRHS(ib, vf)
	}

	// Blocking: force I = 0, no coupling into the node KCL rows.
	return sys.Add(ib, ib, 1)
}

// --- MOSFET (spec §4.2) ---------------------------------------------------

func (c *CompiledCircuit) stampMosfet(sys *linalg.System, e *Mosfet, ctx StepContext) error {
	d, g, s := c.nodeOf(e.d), c.nodeOf(e.g), c.nodeOf(e.s)

	if e.Mode == MosfetSquareLaw {
		return c.stampMosfetSquareLaw(sys, e, d, g, s, ctx)
	}
	return c.stampMosfetSwitch(sys, e, d, g, s, ctx)
}

func (c *CompiledCircuit) stampMosfetSquareLaw(sys *linalg.System, e *Mosfet, d, g, s int, ctx StepContext) error {
	vgs := c.valueAt(ctx.XIter, e.g) - c.valueAt(ctx.XIter, e.s)
	vds := c.valueAt(ctx.XIter, e.d) - c.valueAt(ctx.XIter, e.s)

	vov := vgs - e.Vth
	beta := e.Kp * e.W / e.L

	var ids, gm, gds float64
	switch {
	case vov <= 0: // cutoff
		ids, gm, gds = 0, 0, 0
	case vds < vov: // linear/triode
		ids = beta * (vov*vds - 0.5*vds*vds)
		gm = beta * vds
		gds = beta * (vov - vds)
	default: // saturation
		ids = 0.5 * beta * vov * vov
		gm = beta * vov
		gds = 0
	}

	// Linearized companion: Ids(vgs,vds) stamped as conductances from the
	// Newton iterate plus an equivalent current source, drain-to-source.
	ieq := ids - gm*vgs - gds*vds

	addGM := func(row, col int, val float64) error {
		if row < 0 || col < 0 {
			return nil
		}
		return sys.Add(row, col, val)
	}

	if err := addGM(d, g, gm); err != nil {
		return err
	}
	if err := addGM(d, s, -gm); err != nil {
		return err
	}
	if err := addGM(s, g, -gm); err != nil {
		return err
	}
	if err := addGM(s, s, gm); err != nil {
		return err
	}
	if err := stampConductance(sys, d, s, gds); err != nil {
		return err
	}
	return stampCurrentInto(sys, d, s, -ieq)
}

func (c *CompiledCircuit) stampMosfetSwitch(sys *linalg.System, e *Mosfet, d, g, s int, ctx StepContext) error {
	vgs := c.valueAt(ctx.XIter, e.g) - c.valueAt(ctx.XIter, e.s)

	ron := e.Roff
	if vgs >= e.Vth {
		ron = e.Ron
	}
	if err := stampConductance(sys, d, s, 1.0/ron); err != nil {
		return err
	}

	// Body diode: anode = source, cathode = drain (Open Question #3
	// resolution, spec §9). Its complementarity z is the MOSFET's sole
	// extra variable (slot 0) — the channel above is a plain conductance.
	return c.stampComplementaritySwitch(sys, e.name, s, d, e.BodyDiodeVf, e.Ron, ctx, 0)
}
