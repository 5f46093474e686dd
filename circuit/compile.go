package circuit

import (
	"fmt"
	"strings"
)

// composite is implemented by element kinds that must be expanded to
// primitives before indexing (spec invariant #4) — currently only
// Transformer.
type composite interface {
	flatten() ([]Element, error)
}

// ElementState holds the mutable per-element memory (previous branch
// voltage/current) that companion models and complementarity switches
// read and the driver commits/rolls back at step boundaries. Kept
// separate from the immutable Element value itself (spec §9: "replace
// with an immutable compiled-circuit value"; element records stay
// immutable, their time-varying memory lives here).
type ElementState struct {
	V0, V1 float64 // branch voltage: V0 = current committed, V1 = previous
	I0, I1 float64 // branch current (or charge, for LTE estimation)

	// DiodeVPrev/MosfetRegion are not part of committed history; the
	// current assembly code neither reads nor writes them.
	DiodeVPrev   float64
	MosfetRegion int
}

func (s ElementState) snapshot() ElementState { return s }

// CompiledCircuit is the immutable result of Compile: every composite has
// been flattened, every node and extra variable has a stable integer
// index, and every element's mutable history is tracked in States.
type CompiledCircuit struct {
	Name string

	Elements []Element

	NodeIndex map[string]int // non-ground node name -> [0, NumNodes)
	NumNodes  int

	ExtraIndex map[string][]int // element name -> global extra-var indices, [NumNodes, NumNodes+NumExtra)
	NumExtra   int

	States map[string]*ElementState

	// Overrides holds control-callback-driven instantaneous source values
	// (spec §6's stepped_transient control_callback), keyed by source
	// element name. Unlike Element records these are intentionally
	// mutable — they are driver-owned control input, not element
	// identity, applied "before the next assemble" per spec §6.
	Overrides map[string]float64

	// byName indexes elements for CCCS/CCVS controlling-element lookup
	// and for coupling-pair resolution.
	byName map[string]Element
}

// SetOverride forces the named independent source to evaluate to value
// for subsequent Assemble calls, until ClearOverrides is called.
func (c *CompiledCircuit) SetOverride(name string, value float64) {
	if c.Overrides == nil {
		c.Overrides = make(map[string]float64)
	}
	c.Overrides[name] = value
}

// ClearOverrides removes all control-callback overrides.
func (c *CompiledCircuit) ClearOverrides() {
	c.Overrides = nil
}

// Size is the total MNA system dimension N+E.
func (c *CompiledCircuit) Size() int { return c.NumNodes + c.NumExtra }

func isGround(name string) bool {
	return name == "" || name == "0" || strings.EqualFold(name, "gnd")
}

// nodeOf returns the 0-based node index, or -1 for ground.
func (c *CompiledCircuit) nodeOf(name string) int {
	if isGround(name) {
		return -1
	}
	idx, ok := c.NodeIndex[name]
	if !ok {
		return -1
	}
	return idx
}

// extraVar returns the global index of the i-th extra unknown declared by
// the named element (spec §9's declarative request API: the element
// doesn't store its own index, the compiled circuit hands it back).
func (c *CompiledCircuit) extraVar(elementName string, i int) (int, error) {
	idxs, ok := c.ExtraIndex[elementName]
	if !ok || i >= len(idxs) {
		return 0, fmt.Errorf("circuit: element %q has no extra var #%d", elementName, i)
	}
	return idxs[i], nil
}

func (c *CompiledCircuit) elementByName(name string) (Element, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// Compile flattens composites, assigns node/extra-variable indices, and
// validates the circuit — spec §4.3 responsibilities (1)-(3) plus the
// Lifecycle paragraph's "validated ... and handed to the compiler" step.
//
// items may contain any Element or a *Transformer (composite); Transformer
// values are expanded to primitive Inductor/Coupling elements here and
// never appear in the returned CompiledCircuit.Elements (invariant #4).
func Compile(name string, items []any) (*CompiledCircuit, error) {
	elements, err := flattenAll(items)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Element, len(elements))
	for _, e := range elements {
		if _, dup := byName[e.Name()]; dup {
			return nil, validationf("duplicate element name %q", e.Name())
		}
		byName[e.Name()] = e
	}

	if err := validateReferences(elements, byName); err != nil {
		return nil, err
	}

	nodeIndex := make(map[string]int)
	for _, e := range elements {
		for _, n := range e.Nodes() {
			if isGround(n) {
				continue
			}
			if _, ok := nodeIndex[n]; !ok {
				nodeIndex[n] = len(nodeIndex)
			}
		}
	}

	extraIndex := make(map[string][]int)
	next := len(nodeIndex)
	for _, e := range elements {
		n := e.ExtraVars()
		if n == 0 {
			continue
		}
		idxs := make([]int, n)
		for i := 0; i < n; i++ {
			idxs[i] = next
			next++
		}
		extraIndex[e.Name()] = idxs
	}

	states := make(map[string]*ElementState, len(elements))
	for _, e := range elements {
		st := &ElementState{}
		switch el := e.(type) {
		case *Capacitor:
			st.V0, st.V1 = el.IC, el.IC
		case *Inductor:
			st.I0, st.I1 = el.IC, el.IC
		}
		states[e.Name()] = st
	}

	return &CompiledCircuit{
		Name:       name,
		Elements:   elements,
		NodeIndex:  nodeIndex,
		NumNodes:   len(nodeIndex),
		ExtraIndex: extraIndex,
		NumExtra:   next - len(nodeIndex),
		States:     states,
		byName:     byName,
	}, nil
}

func flattenAll(items []any) ([]Element, error) {
	var out []Element
	for _, it := range items {
		switch v := it.(type) {
		case composite:
			prims, err := v.flatten()
			if err != nil {
				return nil, err
			}
			out = append(out, prims...)
		case Element:
			out = append(out, v)
		default:
			return nil, validationf("unsupported circuit item type %T", it)
		}
	}
	return out, nil
}

func validateReferences(elements []Element, byName map[string]Element) error {
	for _, e := range elements {
		switch el := e.(type) {
		case *Coupling:
			l1, ok1 := byName[el.L1]
			l2, ok2 := byName[el.L2]
			if !ok1 {
				return validationf("coupling %q: unknown inductor %q", el.name, el.L1)
			}
			if !ok2 {
				return validationf("coupling %q: unknown inductor %q", el.name, el.L2)
			}
			if _, ok := l1.(*Inductor); !ok {
				return validationf("coupling %q: %q is not an inductor", el.name, el.L1)
			}
			if _, ok := l2.(*Inductor); !ok {
				return validationf("coupling %q: %q is not an inductor", el.name, el.L2)
			}
		case *ControlledSource:
			if el.kind == CCCS || el.kind == CCVS {
				ctrl, ok := byName[el.ctrlElement]
				if !ok {
					return validationf("controlled source %q: unknown controlling element %q", el.name, el.ctrlElement)
				}
				if ctrl.ExtraVars() == 0 {
					return validationf("controlled source %q: controlling element %q exposes no branch current", el.name, el.ctrlElement)
				}
			}
		}
	}
	return nil
}
