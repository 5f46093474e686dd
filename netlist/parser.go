// Package netlist parses SPICE-style text netlists into circuit.Element
// values, and carries the analysis directives (.op/.tran/.dc) that select
// and configure the analysis/ entry point to run afterward.
//
// Grounded on the teacher's pkg/netlist/parser.go line-scanner and
// ParseValue unit-suffix table; CreateDevice's switch is replaced here by
// buildElement dispatching to circuit.New* constructors instead of
// device.New* ones, and PULSE/PWL source parameters now reach a waveform
// that actually evaluates them (internal/waveform), unlike the teacher's
// device.NewPulseVoltageSource/NewPWLVoltageSource stubs.
package netlist

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/companion"
	"github.com/edp1096/swspice/internal/waveform"
)

// AnalysisType is the .op/.tran/.dc directive found in the netlist.
type AnalysisType int

const (
	AnalysisOP AnalysisType = iota
	AnalysisTRAN
	AnalysisDC
)

// TranParam holds .tran tstep tstop [tstart [tmax]] [uic].
type TranParam struct {
	TStep, TStop, TStart, TMax float64
	UIC                        bool
}

// DCParam holds .dc source start stop increment.
type DCParam struct {
	Source               string
	Start, Stop, Increment float64
}

// Netlist is the parsed, not-yet-compiled circuit description.
type Netlist struct {
	Title     string
	Raw       []rawElement
	Analysis  AnalysisType
	Tran      TranParam
	DC        DCParam
	Method    companion.Method
}

type rawElement struct {
	typ    string
	name   string
	nodes  []string
	value  float64
	params map[string]string
}

var unitMap = map[string]float64{
	"T": 1e12, "G": 1e9, "meg": 1e6, "K": 1e3, "k": 1e3,
	"m": 1e-3, "u": 1e-6, "n": 1e-9, "p": 1e-12, "f": 1e-15,
}

var valueRe = regexp.MustCompile(`^([-+]?\d*\.?\d+)(meg|[TGKkmunpf])?s?$`)

// ParseValue converts a SPICE value literal with an optional unit suffix
// (1k -> 1000, 10u -> 1e-5) to a float64.
func ParseValue(val string) (float64, error) {
	m := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if m == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	if m[2] != "" {
		if mult, ok := unitMap[m[2]]; ok {
			num *= mult
		}
	}
	return num, nil
}

// Parse reads a text netlist, returning its parsed (but not compiled) form.
func Parse(input string) (*Netlist, error) {
	scanner := bufio.NewScanner(strings.NewReader(input))
	nl := &Netlist{Method: companion.Trapezoidal}

	if scanner.Scan() {
		nl.Title = strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "*"))
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if err := parseDirective(nl, line); err != nil {
				return nil, err
			}
			continue
		}
		elem, err := parseElementLine(line)
		if err != nil {
			return nil, err
		}
		nl.Raw = append(nl.Raw, *elem)
	}
	return nl, nil
}

func parseDirective(nl *Netlist, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fmt.Errorf("empty directive")
	}
	switch strings.ToLower(fields[0]) {
	case ".op":
		nl.Analysis = AnalysisOP

	case ".tran":
		nl.Analysis = AnalysisTRAN
		if len(fields) < 3 {
			return fmt.Errorf(".tran needs at least tstep and tstop")
		}
		var err error
		if nl.Tran.TStep, err = ParseValue(fields[1]); err != nil {
			return fmt.Errorf("invalid tstep: %w", err)
		}
		if nl.Tran.TStop, err = ParseValue(fields[2]); err != nil {
			return fmt.Errorf("invalid tstop: %w", err)
		}
		for i := 3; i < len(fields); i++ {
			if strings.EqualFold(fields[i], "uic") {
				nl.Tran.UIC = true
				continue
			}
			if i == 3 {
				if nl.Tran.TStart, err = ParseValue(fields[i]); err != nil {
					return fmt.Errorf("invalid tstart: %w", err)
				}
			}
			if i == 4 {
				if nl.Tran.TMax, err = ParseValue(fields[i]); err != nil {
					return fmt.Errorf("invalid tmax: %w", err)
				}
			}
		}
		if nl.Tran.TMax == 0 {
			nl.Tran.TMax = nl.Tran.TStep
		}

	case ".dc":
		nl.Analysis = AnalysisDC
		if len(fields) < 5 {
			return fmt.Errorf(".dc needs source, start, stop, increment")
		}
		var err error
		nl.DC.Source = fields[1]
		if nl.DC.Start, err = ParseValue(fields[2]); err != nil {
			return fmt.Errorf("invalid dc start: %w", err)
		}
		if nl.DC.Stop, err = ParseValue(fields[3]); err != nil {
			return fmt.Errorf("invalid dc stop: %w", err)
		}
		if nl.DC.Increment, err = ParseValue(fields[4]); err != nil {
			return fmt.Errorf("invalid dc increment: %w", err)
		}

	case ".method":
		if len(fields) < 2 {
			return fmt.Errorf(".method needs an argument")
		}
		if strings.EqualFold(fields[1], "be") || strings.EqualFold(fields[1], "backward_euler") {
			nl.Method = companion.BackwardEuler
		} else {
			nl.Method = companion.Trapezoidal
		}

	default:
		return fmt.Errorf("unsupported directive: %s", fields[0])
	}
	return nil
}

func parseElementLine(line string) (*rawElement, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("invalid element line: %s", line)
	}
	typ := strings.ToUpper(string(fields[0][0]))
	elem := &rawElement{name: fields[0], typ: typ, params: map[string]string{}}

	switch typ {
	case "V", "I":
		return parseSourceLine(fields, typ)

	case "D":
		elem.nodes = fields[1:3]
		if len(fields) > 3 {
			elem.params["model"] = fields[3]
		}
		return elem, nil

	case "M":
		if len(fields) < 4 {
			return nil, fmt.Errorf("mosfet needs drain, gate, source: %s", line)
		}
		elem.typ = "M"
		elem.nodes = fields[1:4]
		for _, kv := range fields[4:] {
			k, v, ok := strings.Cut(kv, "=")
			if ok {
				elem.params[strings.ToLower(k)] = v
			}
		}
		return elem, nil

	default:
		// R, L, C, K
		elem.nodes = fields[1 : len(fields)-1]
		val, err := ParseValue(fields[len(fields)-1])
		if err != nil {
			return nil, err
		}
		elem.value = val
		return elem, nil
	}
}

func parseSourceLine(fields []string, typ string) (*rawElement, error) {
	if len(fields) < 4 {
		return nil, fmt.Errorf("insufficient %s-source parameters", typ)
	}
	elem := &rawElement{name: fields[0], typ: typ, nodes: fields[1:3], params: map[string]string{}}

	remaining := strings.Join(fields[3:], " ")
	remaining = strings.ReplaceAll(remaining, "(", " ( ")
	remaining = strings.ReplaceAll(remaining, ")", " ) ")
	words := strings.Fields(remaining)
	if len(words) == 0 {
		return nil, fmt.Errorf("missing %s-source type", typ)
	}

	switch strings.ToUpper(words[0]) {
	case "DC":
		if len(words) < 2 {
			return nil, fmt.Errorf("missing DC value")
		}
		elem.params["type"] = "dc"
		v, err := ParseValue(words[1])
		if err != nil {
			return nil, err
		}
		elem.value = v
	case "SIN":
		elem.params["type"] = "sin"
		elem.params["args"] = strings.Trim(strings.Join(words[1:], " "), "() ")
	case "PULSE":
		elem.params["type"] = "pulse"
		elem.params["args"] = strings.Trim(strings.Join(words[1:], " "), "() ")
	case "EXP":
		elem.params["type"] = "exp"
		elem.params["args"] = strings.Trim(strings.Join(words[1:], " "), "() ")
	case "PWL":
		elem.params["type"] = "pwl"
		elem.params["args"] = strings.Trim(strings.Join(words[1:], " "), "() ")
	default:
		return nil, fmt.Errorf("unsupported %s-source type: %s", typ, words[0])
	}
	return elem, nil
}

// Build compiles the parsed netlist into a circuit.CompiledCircuit.
func Build(nl *Netlist) (*circuit.CompiledCircuit, error) {
	items := make([]any, 0, len(nl.Raw))
	for _, r := range nl.Raw {
		el, err := buildElement(r)
		if err != nil {
			return nil, fmt.Errorf("netlist: element %q: %w", r.name, err)
		}
		items = append(items, el)
	}
	return circuit.Compile(nl.Title, items)
}

func buildElement(r rawElement) (any, error) {
	n := func(i int) string {
		if i < len(r.nodes) {
			return r.nodes[i]
		}
		return "0"
	}
	switch r.typ {
	case "R":
		return circuit.NewResistor(r.name, n(0), n(1), r.value)
	case "C":
		return circuit.NewCapacitor(r.name, n(0), n(1), r.value, 0)
	case "L":
		return circuit.NewInductor(r.name, n(0), n(1), r.value, 0, circuit.DotA)
	case "V":
		w, err := buildWaveform(r)
		if err != nil {
			return nil, err
		}
		return circuit.NewVoltageSource(r.name, n(0), n(1), w)
	case "I":
		w, err := buildWaveform(r)
		if err != nil {
			return nil, err
		}
		return circuit.NewCurrentSource(r.name, n(0), n(1), w)
	case "D":
		return circuit.NewShockleyDiode(r.name, n(0), n(1), 1e-14, 1.0, 0.025, 0)
	case "M":
		vth := parseNumParam(r.params, "vth", 2.0)
		kp := parseNumParam(r.params, "kp", 2e-5)
		w := parseNumParam(r.params, "w", 100e-6)
		l := parseNumParam(r.params, "l", 1e-6)
		return circuit.NewSquareLawMosfet(r.name, n(0), n(1), n(2), circuit.NMOS, vth, kp, w, l)
	default:
		return nil, fmt.Errorf("unsupported element type: %s", r.typ)
	}
}

func parseNumParam(params map[string]string, key string, fallback float64) float64 {
	if s, ok := params[key]; ok {
		if v, err := ParseValue(s); err == nil {
			return v
		}
	}
	return fallback
}

func buildWaveform(r rawElement) (waveform.Waveform, error) {
	switch r.params["type"] {
	case "", "dc":
		return waveform.NewDC(r.value), nil
	case "sin":
		parts := strings.Fields(r.params["args"])
		if len(parts) < 3 {
			return waveform.Waveform{}, fmt.Errorf("insufficient SIN parameters")
		}
		offset, err := ParseValue(parts[0])
		if err != nil {
			return waveform.Waveform{}, err
		}
		amp, err := ParseValue(parts[1])
		if err != nil {
			return waveform.Waveform{}, err
		}
		freq, err := ParseValue(parts[2])
		if err != nil {
			return waveform.Waveform{}, err
		}
		phase := 0.0
		if len(parts) > 3 {
			if phase, err = ParseValue(parts[3]); err != nil {
				return waveform.Waveform{}, err
			}
		}
		return waveform.NewSIN(offset, amp, freq, 0, 0, phase), nil

	case "pulse":
		parts := strings.Fields(r.params["args"])
		if len(parts) < 7 {
			return waveform.Waveform{}, fmt.Errorf("insufficient PULSE parameters")
		}
		vals := make([]float64, 7)
		for i := range vals {
			v, err := ParseValue(parts[i])
			if err != nil {
				return waveform.Waveform{}, err
			}
			vals[i] = v
		}
		return waveform.NewPULSE(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5], vals[6]), nil

	case "exp":
		parts := strings.Fields(r.params["args"])
		if len(parts) < 6 {
			return waveform.Waveform{}, fmt.Errorf("insufficient EXP parameters")
		}
		vals := make([]float64, 6)
		for i := range vals {
			v, err := ParseValue(parts[i])
			if err != nil {
				return waveform.Waveform{}, err
			}
			vals[i] = v
		}
		return waveform.NewEXP(vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]), nil

	case "pwl":
		parts := strings.Fields(r.params["args"])
		if len(parts) < 4 || len(parts)%2 != 0 {
			return waveform.Waveform{}, fmt.Errorf("PWL needs non-empty pairs of time-value")
		}
		n := len(parts) / 2
		times := make([]float64, n)
		values := make([]float64, n)
		for i := 0; i < n; i++ {
			t, err := ParseValue(parts[2*i])
			if err != nil {
				return waveform.Waveform{}, err
			}
			v, err := ParseValue(parts[2*i+1])
			if err != nil {
				return waveform.Waveform{}, err
			}
			if i > 0 && t <= times[i-1] {
				return waveform.Waveform{}, fmt.Errorf("PWL time points must be strictly increasing")
			}
			times[i], values[i] = t, v
		}
		return waveform.NewPWL(times, values), nil

	default:
		return waveform.Waveform{}, fmt.Errorf("unsupported waveform type: %s", r.params["type"])
	}
}
