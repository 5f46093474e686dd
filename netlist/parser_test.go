package netlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/swspice/internal/companion"
)

func TestParseValueUnitSuffixes(t *testing.T) {
	cases := map[string]float64{
		"1k":   1000,
		"1K":   1000,
		"10u":  10e-6,
		"2.2n": 2.2e-9,
		"1meg": 1e6,
		"5":    5,
		"-3.3": -3.3,
	}
	for in, want := range cases {
		got, err := ParseValue(in)
		require.NoErrorf(t, err, "parsing %q", in)
		assert.InDeltaf(t, want, got, want*1e-9+1e-15, "parsing %q", in)
	}
}

func TestParseValueRejectsGarbage(t *testing.T) {
	_, err := ParseValue("not-a-number")
	assert.Error(t, err)
}

const dividerNetlist = `divider test
V1 in 0 DC 10
R1 in out 1k
R2 out 0 2k
.op
`

func TestParseDividerNetlist(t *testing.T) {
	nl, err := Parse(dividerNetlist)
	require.NoError(t, err)
	assert.Equal(t, "divider test", nl.Title)
	assert.Equal(t, AnalysisOP, nl.Analysis)
	require.Len(t, nl.Raw, 3)
}

const tranNetlist = `rc step
V1 in 0 PULSE(0 10 0 1n 1n 1 2)
R1 in out 1k
C1 out 0 1u
.tran 1u 1m
.method be
`

func TestParseTranDirective(t *testing.T) {
	nl, err := Parse(tranNetlist)
	require.NoError(t, err)
	assert.Equal(t, AnalysisTRAN, nl.Analysis)
	assert.InDelta(t, 1e-6, nl.Tran.TStep, 1e-12)
	assert.InDelta(t, 1e-3, nl.Tran.TStop, 1e-9)
	assert.Equal(t, companion.BackwardEuler, nl.Method)
}

const dcSweepNetlist = `sweep test
V1 n1 0 DC 0
R1 n1 0 1k
.dc V1 0 5 1
`

func TestParseDCDirective(t *testing.T) {
	nl, err := Parse(dcSweepNetlist)
	require.NoError(t, err)
	assert.Equal(t, AnalysisDC, nl.Analysis)
	assert.Equal(t, "V1", nl.DC.Source)
	assert.InDelta(t, 0, nl.DC.Start, 1e-12)
	assert.InDelta(t, 5, nl.DC.Stop, 1e-12)
	assert.InDelta(t, 1, nl.DC.Increment, 1e-12)
}

func TestParseRejectsUnsupportedDirective(t *testing.T) {
	_, err := Parse("title\n.ac dec 10 1 1meg\n")
	assert.Error(t, err)
}

func TestBuildDividerNetlist(t *testing.T) {
	nl, err := Parse(dividerNetlist)
	require.NoError(t, err)

	cc, err := Build(nl)
	require.NoError(t, err)
	assert.Contains(t, cc.NodeIndex, "in")
	assert.Contains(t, cc.NodeIndex, "out")
}

func TestBuildMosfetWithParams(t *testing.T) {
	nl, err := Parse("mosfet test\nM1 d g s vth=1.5 kp=3e-5 w=200u l=1u\n.op\n")
	require.NoError(t, err)

	cc, err := Build(nl)
	require.NoError(t, err)
	assert.Contains(t, cc.NodeIndex, "d")
	assert.Contains(t, cc.NodeIndex, "g")
	assert.Contains(t, cc.NodeIndex, "s")
}

func TestBuildRejectsUnsupportedElementType(t *testing.T) {
	_, err := buildElement(rawElement{typ: "Z", name: "Z1", nodes: []string{"a", "0"}})
	assert.Error(t, err)
}

func TestBuildWaveformPWLRequiresIncreasingTimes(t *testing.T) {
	r := rawElement{
		typ: "V", name: "V1", nodes: []string{"a", "0"},
		params: map[string]string{"type": "pwl", "args": "0 0 1e-3 5 5e-4 2"},
	}
	_, err := buildWaveform(r)
	assert.Error(t, err)
}

func TestBuildWaveformSIN(t *testing.T) {
	r := rawElement{
		typ: "V", name: "V1", nodes: []string{"a", "0"},
		params: map[string]string{"type": "sin", "args": "0 10 60"},
	}
	w, err := buildWaveform(r)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, w.Eval(0), 1e-9)
}
