// Package scenario loads declarative circuit+analysis descriptions from
// YAML files, per SPEC_FULL.md's ambient configuration section.
// cmd/spice does not use it; it reads text netlists only.
//
// The teacher has no config-file layer at all (toy-spice only takes a
// netlist path on argv); gopkg.in/yaml.v3 is pulled into this corpus as an
// indirect dependency of katalvlaran-lvlath (pulled in transitively via
// its own config loading) — this package is the first direct consumer.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edp1096/swspice/internal/companion"
)

// Doc is the root of a scenario YAML file: a netlist-equivalent element
// list plus an analysis directive, both declarative.
type Doc struct {
	Title     string           `yaml:"title"`
	Elements  []ElementSpec    `yaml:"elements"`
	Analysis  AnalysisSpec     `yaml:"analysis"`
}

// ElementSpec is one line of the declarative element list. Kind selects
// which circuit.New* constructor builds the element; Params holds its
// type-specific fields as a loosely-typed map, validated by the builder in
// build.go (kept here rather than circuit/ itself so circuit stays free
// of a YAML dependency — only the collaborator layer needs it).
type ElementSpec struct {
	Kind   string         `yaml:"kind"`
	Name   string         `yaml:"name"`
	Nodes  []string       `yaml:"nodes"`
	Value  float64        `yaml:"value"`
	Params map[string]any `yaml:"params"`
}

// AnalysisSpec picks and configures one of the three spec §6 analyses.
type AnalysisSpec struct {
	Type    string  `yaml:"type"` // "dc", "transient", "stepped"
	TStart  float64 `yaml:"t_start"`
	TStop   float64 `yaml:"t_stop"`
	H       float64 `yaml:"h"`
	Method  string  `yaml:"method"` // "backward_euler" | "trapezoidal"
	MaxStep float64 `yaml:"max_step"`
}

// CompanionMethod maps the YAML string onto companion.Method, defaulting to
// Trapezoidal (spec §4.1's default integration method).
func (a AnalysisSpec) CompanionMethod() companion.Method {
	if a.Method == "backward_euler" {
		return companion.BackwardEuler
	}
	return companion.Trapezoidal
}

// Load reads and parses a scenario file from path.
func Load(path string) (*Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes scenario YAML from an in-memory buffer.
func Parse(data []byte) (*Doc, error) {
	var doc Doc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("scenario: parse: %w", err)
	}
	if len(doc.Elements) == 0 {
		return nil, fmt.Errorf("scenario: no elements declared")
	}
	return &doc, nil
}
