package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDivider(t *testing.T) {
	doc, err := Parse([]byte(dividerYAML))
	require.NoError(t, err)

	cc, err := Build(doc)
	require.NoError(t, err)
	assert.Equal(t, 2, cc.NumNodes)
	assert.Contains(t, cc.NodeIndex, "in")
	assert.Contains(t, cc.NodeIndex, "out")
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	doc := &Doc{
		Title: "bad",
		Elements: []ElementSpec{
			{Kind: "ZZZ", Name: "X1", Nodes: []string{"a", "0"}, Value: 1},
		},
	}
	_, err := Build(doc)
	assert.Error(t, err)
}

func TestBuildTransformerRequiresFourNodes(t *testing.T) {
	doc := &Doc{
		Title: "bad-xfmr",
		Elements: []ElementSpec{
			{Kind: "XFMR", Name: "T1", Nodes: []string{"p1", "p2"}, Value: 2.0},
		},
	}
	_, err := Build(doc)
	assert.Error(t, err)
}

func TestBuildMosfetSwitchMode(t *testing.T) {
	doc := &Doc{
		Title: "sw",
		Elements: []ElementSpec{
			{Kind: "V", Name: "VG", Nodes: []string{"g", "0"}, Value: 5},
			{Kind: "V", Name: "VD", Nodes: []string{"d", "0"}, Value: 10},
			{
				Kind: "M", Name: "M1", Nodes: []string{"d", "g", "0"},
				Params: map[string]any{"mode": "switch", "vth": 2.0, "ron": 0.05, "roff": 1e6, "body_vf": 0.7},
			},
		},
	}
	cc, err := Build(doc)
	require.NoError(t, err)
	require.Contains(t, cc.ExtraIndex, "M1")
}

func TestBuildWaveformPulse(t *testing.T) {
	es := ElementSpec{
		Name: "V1", Value: 5,
		Params: map[string]any{"type": "pulse", "v1": 0.0, "v2": 5.0, "delay": 0.0, "width": 1e-3, "period": 2e-3},
	}
	w, err := buildWaveform(es)
	require.NoError(t, err)
	assert.Equal(t, 0.0, w.Eval(0))
}

func TestBuildWaveformPWLRequiresEqualLengths(t *testing.T) {
	es := ElementSpec{
		Params: map[string]any{
			"type":   "pwl",
			"times":  []any{0.0, 1e-3},
			"values": []any{0.0},
		},
	}
	_, err := buildWaveform(es)
	assert.Error(t, err)
}

func TestBuildWaveformUnknownTypeErrors(t *testing.T) {
	es := ElementSpec{Params: map[string]any{"type": "bogus"}}
	_, err := buildWaveform(es)
	assert.Error(t, err)
}

func TestParamFloatFallsBackWhenMissing(t *testing.T) {
	es := ElementSpec{Params: map[string]any{}}
	assert.Equal(t, 0.7, paramFloat(es, "vf", 0.7))
}

func TestParamFloatAcceptsIntFromYAML(t *testing.T) {
	es := ElementSpec{Params: map[string]any{"ic": 3}}
	assert.Equal(t, 3.0, paramFloat(es, "ic", 0))
}
