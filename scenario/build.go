package scenario

import (
	"fmt"

	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/waveform"
)

// Build compiles a Doc into a circuit.CompiledCircuit, dispatching each
// ElementSpec to the matching circuit.New* constructor. This is the
// declarative-to-typed boundary spec.md's netlist collaborator needs too
// (see netlist.Build, which does the same from SPICE text with its own buildWaveform).
func Build(doc *Doc) (*circuit.CompiledCircuit, error) {
	items := make([]any, 0, len(doc.Elements))
	for _, es := range doc.Elements {
		el, err := buildElement(es)
		if err != nil {
			return nil, fmt.Errorf("scenario: element %q: %w", es.Name, err)
		}
		items = append(items, el)
	}
	return circuit.Compile(doc.Title, items)
}

func buildElement(es ElementSpec) (any, error) {
	switch es.Kind {
	case "R":
		return circuit.NewResistor(es.Name, node(es, 0), node(es, 1), es.Value)

	case "C":
		return circuit.NewCapacitor(es.Name, node(es, 0), node(es, 1), es.Value, paramFloat(es, "ic", 0))

	case "L":
		dot := circuit.DotA
		if s, _ := es.Params["dot"].(string); s == "b" {
			dot = circuit.DotB
		}
		return circuit.NewInductor(es.Name, node(es, 0), node(es, 1), es.Value, paramFloat(es, "ic", 0), dot)

	case "K":
		l1, _ := es.Params["l1"].(string)
		l2, _ := es.Params["l2"].(string)
		return circuit.NewCoupling(es.Name, l1, l2, es.Value)

	case "XFMR":
		if len(es.Nodes) != 4 {
			return nil, fmt.Errorf("ideal transformer needs 4 nodes (p1,p2,s1,s2)")
		}
		return circuit.NewIdealTransformer(es.Name,
			[2]string{es.Nodes[0], es.Nodes[1]}, [2]string{es.Nodes[2], es.Nodes[3]}, es.Value)

	case "V":
		w, err := buildWaveform(es)
		if err != nil {
			return nil, err
		}
		return circuit.NewVoltageSource(es.Name, node(es, 0), node(es, 1), w)

	case "I":
		w, err := buildWaveform(es)
		if err != nil {
			return nil, err
		}
		return circuit.NewCurrentSource(es.Name, node(es, 0), node(es, 1), w)

	case "D":
		mode, _ := es.Params["mode"].(string)
		if mode == "complementarity" {
			return circuit.NewComplementarityDiode(es.Name, node(es, 0), node(es, 1),
				paramFloat(es, "vf", 0.7), paramFloat(es, "ron", 0.01))
		}
		return circuit.NewShockleyDiode(es.Name, node(es, 0), node(es, 1),
			paramFloat(es, "is", 1e-14), paramFloat(es, "n", 1.0), paramFloat(es, "vt", 0.025), paramFloat(es, "rs", 0))

	case "M":
		if len(es.Nodes) != 3 {
			return nil, fmt.Errorf("mosfet needs 3 nodes (d,g,s)")
		}
		polarity := circuit.NMOS
		if s, _ := es.Params["polarity"].(string); s == "pmos" {
			polarity = circuit.PMOS
		}
		mode, _ := es.Params["mode"].(string)
		if mode == "switch" {
			return circuit.NewSwitchMosfet(es.Name, es.Nodes[0], es.Nodes[1], es.Nodes[2], polarity,
				paramFloat(es, "vth", 2.0), paramFloat(es, "ron", 0.05), paramFloat(es, "roff", 1e6), paramFloat(es, "body_vf", 0.7))
		}
		return circuit.NewSquareLawMosfet(es.Name, es.Nodes[0], es.Nodes[1], es.Nodes[2], polarity,
			paramFloat(es, "vth", 2.0), paramFloat(es, "kp", 2e-5), paramFloat(es, "w", 100e-6), paramFloat(es, "l", 1e-6))

	default:
		return nil, fmt.Errorf("unknown element kind %q", es.Kind)
	}
}

func node(es ElementSpec, i int) string {
	if i < len(es.Nodes) {
		return es.Nodes[i]
	}
	return "0"
}

func paramFloat(es ElementSpec, key string, fallback float64) float64 {
	if v, ok := es.Params[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return fallback
}

func paramFloatSlice(es ElementSpec, key string) []float64 {
	raw, ok := es.Params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			out = append(out, n)
		case int:
			out = append(out, float64(n))
		}
	}
	return out
}

// buildWaveform dispatches on params["type"] ("dc"|"sin"|"pulse"|"exp"|"pwl")
// the same five kinds spec §4.2 names, mirroring netlist's
// parseSourceLine/buildWaveform but off a map instead of SPICE text.
func buildWaveform(es ElementSpec) (waveform.Waveform, error) {
	kind, _ := es.Params["type"].(string)
	switch kind {
	case "", "dc":
		return waveform.NewDC(es.Value), nil
	case "sin":
		return waveform.NewSIN(
			paramFloat(es, "offset", 0), paramFloat(es, "amplitude", es.Value), paramFloat(es, "freq", 60),
			paramFloat(es, "delay", 0), paramFloat(es, "damp", 0), paramFloat(es, "phase", 0)), nil
	case "pulse":
		return waveform.NewPULSE(
			paramFloat(es, "v1", 0), paramFloat(es, "v2", es.Value), paramFloat(es, "delay", 0),
			paramFloat(es, "rise", 1e-9), paramFloat(es, "fall", 1e-9),
			paramFloat(es, "width", 1e-3), paramFloat(es, "period", 2e-3)), nil
	case "exp":
		return waveform.NewEXP(
			paramFloat(es, "v1", 0), paramFloat(es, "v2", es.Value),
			paramFloat(es, "delay1", 0), paramFloat(es, "tau1", 1e-3),
			paramFloat(es, "delay2", 1e-3), paramFloat(es, "tau2", 1e-3)), nil
	case "pwl":
		times := paramFloatSlice(es, "times")
		values := paramFloatSlice(es, "values")
		if len(times) == 0 || len(times) != len(values) {
			return waveform.Waveform{}, fmt.Errorf("pwl: times/values must be equal-length, non-empty")
		}
		return waveform.NewPWL(times, values), nil
	default:
		return waveform.Waveform{}, fmt.Errorf("unsupported waveform type %q", kind)
	}
}
