// Package companion centralizes the per-step companion-model generation
// for reactive elements, replacing the teacher's duplicated discretization
// logic (pkg/device/capacitor.go hardcodes backward Euler only;
// pkg/device/inductor.go uses a Gear-order-1 coefficient table that is
// numerically backward Euler under a different name). Spec §9: "centralize
// companion-model generation in a small helper that, given element type
// and method, returns (Geq, Ieq) functions."
package companion

// Method is the reactive-element time-discretization rule.
type Method int

const (
	BackwardEuler Method = iota
	Trapezoidal
)

// Capacitor returns the backward-Euler or trapezoidal companion model for
// a capacitor of value c over step h, given the previous branch voltage
// and (for trapezoidal) previous branch current.
//
// Backward Euler: Geq = C/h, Ieq = Geq*Vprev.
// Trapezoidal:    Geq = 2C/h, Ieq = Geq*Vprev + Iprev.
//
// Open-question resolution (spec §9): Ieq is oriented a->b, i.e. it is
// added with + at node a and - at node b — the caller (circuit's
// stampCapacitor) applies that sign, not this helper, since only the caller knows
// which terminal is a.
func Capacitor(method Method, c, h, vPrev, iPrev float64) (geq, ieq float64) {
	switch method {
	case Trapezoidal:
		geq = 2 * c / h
		ieq = geq*vPrev + iPrev
	default:
		geq = c / h
		ieq = geq * vPrev
	}
	return geq, ieq
}

// Inductor returns the companion model for an inductor of value l over
// step h, expressed as a series resistance Req and a branch-row history
// RHS term per spec §4.2:
//
// Backward Euler: Req = L/h, history = Req*Iprev.
// Trapezoidal:    Req = 2L/h, history = Req*Iprev + Vprev.
//
// The branch equation stamped by the caller is:
//
//	V_a - V_b - Req*I_L = -history
func Inductor(method Method, l, h, iPrev, vPrev float64) (req, history float64) {
	switch method {
	case Trapezoidal:
		req = 2 * l / h
		history = req*iPrev + vPrev
	default:
		req = l / h
		history = req * iPrev
	}
	return req, history
}

// DCReq is the tiny series resistance used in place of Req at DC (h<=0 or
// undefined), keeping the branch row non-singular while approximating a
// short (spec §4.2: "At DC, Req -> 0+ (short) with a tiny resistance").
const DCReq = 1e-9
