package waveform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDC(t *testing.T) {
	w := NewDC(5)
	assert.Equal(t, 5.0, w.DCValue())
	assert.Equal(t, 5.0, w.Eval(0))
	assert.Equal(t, 5.0, w.Eval(100))
}

func TestSIN(t *testing.T) {
	w := NewSIN(1, 2, 1000, 0, 0, 0)
	assert.InDelta(t, 1.0, w.Eval(0), 1e-9)
	quarterPeriod := 1.0 / 1000 / 4
	assert.InDelta(t, 3.0, w.Eval(quarterPeriod), 1e-6)
}

func TestSINDelay(t *testing.T) {
	w := NewSIN(0, 1, 100, 0.01, 0, 0)
	assert.InDelta(t, 0.0, w.Eval(0.005), 1e-12)
}

func TestPULSE(t *testing.T) {
	w := NewPULSE(0, 5, 0, 1e-6, 1e-6, 1e-5, 2e-5)
	assert.Equal(t, 0.0, w.Eval(0))
	assert.InDelta(t, 2.5, w.Eval(0.5e-6), 1e-9)
	assert.Equal(t, 5.0, w.Eval(5e-6))
}

func TestEXP(t *testing.T) {
	w := NewEXP(0, 5, 0, 1e-3, 10e-3, 1e-3)
	assert.Equal(t, 0.0, w.Eval(0))
	assert.Greater(t, w.Eval(1e-3), 0.0)
	assert.Less(t, w.Eval(1e-3), 5.0)
}

func TestPWL(t *testing.T) {
	w := NewPWL([]float64{0, 1, 2}, []float64{0, 10, 0})
	assert.Equal(t, 0.0, w.Eval(0))
	assert.InDelta(t, 5.0, w.Eval(0.5), 1e-9)
	assert.Equal(t, 10.0, w.Eval(1))
	assert.Equal(t, 0.0, w.Eval(2))
}

func TestPWLInRange(t *testing.T) {
	w := NewPWL([]float64{0, 1}, []float64{0, 1})
	assert.True(t, w.InRange(0.5))
	assert.False(t, w.InRange(1.5))
	assert.False(t, w.InRange(-0.1))

	dc := NewDC(1)
	assert.True(t, dc.InRange(1000))
}

func TestPWLClampsOutOfRange(t *testing.T) {
	w := NewPWL([]float64{0, 1}, []float64{0, 10})
	assert.Equal(t, 10.0, w.Eval(5))
	assert.Equal(t, 0.0, w.Eval(-5))
}
