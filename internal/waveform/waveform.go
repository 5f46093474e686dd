// Package waveform evaluates independent-source excitation functions.
//
// Grounded on the teacher's pkg/device/isource.go, the only element in
// edp1096-toy-spice with a working PULSE/PWL implementation — its sibling
// pkg/device/vsource.go left getPulseVoltage/getPWLVoltage as stubs
// returning a constant. Unifying both source kinds onto one evaluator here
// means voltage and current sources can never diverge in behavior again.
package waveform

import "math"

// Kind identifies which excitation function a Waveform evaluates.
type Kind int

const (
	DC Kind = iota
	SIN
	PULSE
	EXP
	PWL
)

// Waveform is a sealed value: exactly one Kind's parameter set is
// meaningful for a given instance, set by the matching constructor.
type Waveform struct {
	kind Kind

	dc float64

	// SIN: off + amp*exp(-damp*(t-delay))*sin(2*pi*freq*(t-delay)+phase)
	sinOffset, sinAmplitude, sinFreq, sinDelay, sinDamp, sinPhase float64

	// PULSE: v1 -> v2 -> v1, piecewise linear ramps
	p1, p2, pDelay, pRise, pFall, pWidth, pPeriod float64

	// EXP: two-time-constant exponential transition
	e1, e2, eDelay1, eTau1, eDelay2, eTau2 float64

	// PWL: linear interpolation between (time[i], value[i]) pairs
	times, values []float64
}

func NewDC(value float64) Waveform { return Waveform{kind: DC, dc: value} }

// NewSIN matches spec §4.2's SIN formula:
// Voff + Va*exp(-damp*(t-Td))*sin(2*pi*f*(t-Td)+phi), active for t >= Td.
func NewSIN(offset, amplitude, freq, delay, damp, phaseDeg float64) Waveform {
	return Waveform{
		kind: SIN, dc: offset,
		sinOffset: offset, sinAmplitude: amplitude, sinFreq: freq,
		sinDelay: delay, sinDamp: damp, sinPhase: phaseDeg * math.Pi / 180.0,
	}
}

func NewPULSE(v1, v2, delay, rise, fall, width, period float64) Waveform {
	return Waveform{
		kind: PULSE, dc: v1,
		p1: v1, p2: v2, pDelay: delay, pRise: rise, pFall: fall,
		pWidth: width, pPeriod: period,
	}
}

// NewEXP matches spec §4.2's EXP grammar (v1 v2 td1 tau1 td2 tau2): holds
// at v1 until td1, rises exponentially with time constant tau1 toward v2,
// then at td2 decays exponentially with time constant tau2 back toward v1.
func NewEXP(v1, v2, delay1, tau1, delay2, tau2 float64) Waveform {
	return Waveform{
		kind: EXP, dc: v1,
		e1: v1, e2: v2, eDelay1: delay1, eTau1: tau1, eDelay2: delay2, eTau2: tau2,
	}
}

// NewPWL takes parallel time/value slices, already validated non-decreasing
// in time by the caller.
func NewPWL(times, values []float64) Waveform {
	dc := 0.0
	if len(values) > 0 {
		dc = values[0]
	}
	return Waveform{kind: PWL, dc: dc, times: times, values: values}
}

// DCValue is the value held at t<=0, used for the DC operating point and
// as the t=0 anchor for source stepping (spec §4.2: "Waveforms are
// evaluated only for t > 0; at t = 0 the DC operating point uses a
// separately held DC value").
func (w Waveform) DCValue() float64 { return w.dc }

// Eval returns the excitation value at time t. Clamping/out-of-range
// behavior never errors (spec §7: "clamp to nearest endpoint ... never
// fail the simulation"); callers that want the diagnostic warning check
// InRange themselves.
func (w Waveform) Eval(t float64) float64 {
	if t <= 0 {
		return w.dc
	}
	switch w.kind {
	case DC:
		return w.dc
	case SIN:
		return w.evalSIN(t)
	case PULSE:
		return w.evalPULSE(t)
	case EXP:
		return w.evalEXP(t)
	case PWL:
		return w.evalPWL(t)
	default:
		return 0
	}
}

// InRange reports whether t falls within the explicit PWL breakpoints;
// meaningless (always true) for other kinds.
func (w Waveform) InRange(t float64) bool {
	if w.kind != PWL || len(w.times) == 0 {
		return true
	}
	return t >= w.times[0] && t <= w.times[len(w.times)-1]
}

func (w Waveform) evalSIN(t float64) float64 {
	if t < w.sinDelay {
		return w.sinOffset
	}
	tt := t - w.sinDelay
	damp := 1.0
	if w.sinDamp != 0 {
		damp = math.Exp(-w.sinDamp * tt)
	}
	return w.sinOffset + w.sinAmplitude*damp*math.Sin(2*math.Pi*w.sinFreq*tt+w.sinPhase)
}

func (w Waveform) evalPULSE(t float64) float64 {
	if t < w.pDelay {
		return w.p1
	}

	tt := t - w.pDelay
	if w.pPeriod > 0 {
		tt = math.Mod(tt, w.pPeriod)
	}

	if tt < w.pRise {
		if w.pRise == 0 {
			return w.p2
		}
		return w.p1 + (w.p2-w.p1)*tt/w.pRise
	}

	if tt < w.pRise+w.pWidth {
		return w.p2
	}

	fallStart := w.pRise + w.pWidth
	if tt < fallStart+w.pFall {
		if w.pFall == 0 {
			return w.p1
		}
		return w.p2 - (w.p2-w.p1)*(tt-fallStart)/w.pFall
	}

	return w.p1
}

func (w Waveform) evalEXP(t float64) float64 {
	if t < w.eDelay1 {
		return w.e1
	}
	if t < w.eDelay2 {
		tau := w.eTau1
		if tau <= 0 {
			return w.e2
		}
		return w.e1 + (w.e2-w.e1)*(1-math.Exp(-(t-w.eDelay1)/tau))
	}
	v2 := w.e1 + (w.e2-w.e1)*(1-math.Exp(-(w.eDelay2-w.eDelay1)/nz(w.eTau1)))
	tau := w.eTau2
	if tau <= 0 {
		return w.e1
	}
	return v2 + (w.e1-v2)*(1-math.Exp(-(t-w.eDelay2)/tau))
}

func (w Waveform) evalPWL(t float64) float64 {
	if len(w.times) == 0 {
		return 0
	}
	if t <= w.times[0] {
		return w.values[0]
	}
	last := len(w.times) - 1
	if t >= w.times[last] {
		return w.values[last]
	}
	for i := 1; i <= last; i++ {
		if t <= w.times[i] {
			t0, t1 := w.times[i-1], w.times[i]
			v0, v1 := w.values[i-1], w.values[i]
			slope := (v1 - v0) / (t1 - t0)
			return v0 + slope*(t-t0)
		}
	}
	return w.values[last]
}

func nz(v float64) float64 {
	if v == 0 {
		return 1e-15
	}
	return v
}
