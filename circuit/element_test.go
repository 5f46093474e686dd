package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResistorRejectsNonPositive(t *testing.T) {
	_, err := NewResistor("R1", "a", "b", 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewResistor("R1", "a", "b", -1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewResistorRejectsSelfShort(t *testing.T) {
	_, err := NewResistor("R1", "a", "a", 100)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewResistorOK(t *testing.T) {
	r, err := NewResistor("R1", "a", "b", 100)
	require.NoError(t, err)
	assert.Equal(t, "R1", r.Name())
	assert.Equal(t, []string{"a", "b"}, r.Nodes())
	assert.Equal(t, 0, r.ExtraVars())
}

func TestInductorExtraVars(t *testing.T) {
	l, err := NewInductor("L1", "a", "b", 1e-3, 0, DotA)
	require.NoError(t, err)
	assert.Equal(t, 1, l.ExtraVars())
}

func TestCouplingRejectsBadK(t *testing.T) {
	_, err := NewCoupling("K1", "L1", "L2", 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewCoupling("K1", "L1", "L2", 1.5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIdealTransformerExtraVars(t *testing.T) {
	xf, err := NewIdealTransformer("T1", [2]string{"p1", "p2"}, [2]string{"s1", "s2"}, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 2, xf.ExtraVars())
}

func TestMosfetSwitchAccessors(t *testing.T) {
	m, err := NewSwitchMosfet("M1", "d", "g", "s", NMOS, 2.0, 0.05, 1e6, 0.7)
	require.NoError(t, err)
	assert.True(t, m.IsSwitchMode())
	assert.Equal(t, "g", m.GateNode())
	assert.Equal(t, "s", m.SourceNode())
	assert.Equal(t, 2.0, m.Threshold())
	assert.Equal(t, 1, m.ExtraVars())
}

func TestSquareLawMosfetIsNotSwitchMode(t *testing.T) {
	m, err := NewSquareLawMosfet("M1", "d", "g", "s", NMOS, 2.0, 2e-5, 100e-6, 1e-6)
	require.NoError(t, err)
	assert.False(t, m.IsSwitchMode())
	assert.Equal(t, 0, m.ExtraVars())
}

func TestComplementarityDiodeRequiresPositiveRon(t *testing.T) {
	_, err := NewComplementarityDiode("D1", "a", "k", 0.7, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransformerFlatten(t *testing.T) {
	xf, err := NewTransformer("T1", []Winding{
		{Name: "pri", Nodes: [2]string{"p1", "p2"}, Inductance: 1e-3, Dot: DotA},
		{Name: "sec", Nodes: [2]string{"s1", "s2"}, Inductance: 4e-3, Dot: DotA},
	}, [][]float64{
		{0, 0.99},
		{0.99, 0},
	})
	require.NoError(t, err)

	prims, err := xf.flatten()
	require.NoError(t, err)
	require.Len(t, prims, 3) // 2 inductors + 1 coupling

	var inductors, couplings int
	for _, p := range prims {
		switch p.(type) {
		case *Inductor:
			inductors++
		case *Coupling:
			couplings++
		}
	}
	assert.Equal(t, 2, inductors)
	assert.Equal(t, 1, couplings)
}

func TestTransformerRejectsMismatchedCouplingMatrix(t *testing.T) {
	_, err := NewTransformer("T1", []Winding{
		{Name: "pri", Nodes: [2]string{"p1", "p2"}, Inductance: 1e-3},
		{Name: "sec", Nodes: [2]string{"s1", "s2"}, Inductance: 4e-3},
	}, [][]float64{{0, 1}})
	assert.ErrorIs(t, err, ErrValidation)
}
