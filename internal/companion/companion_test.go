package companion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapacitorBackwardEuler(t *testing.T) {
	geq, ieq := Capacitor(BackwardEuler, 1e-6, 1e-3, 2.0, 0)
	assert.InDelta(t, 1e-6/1e-3, geq, 1e-12)
	assert.InDelta(t, geq*2.0, ieq, 1e-12)
}

func TestCapacitorTrapezoidal(t *testing.T) {
	geq, ieq := Capacitor(Trapezoidal, 1e-6, 1e-3, 2.0, 0.5)
	wantGeq := 2 * 1e-6 / 1e-3
	assert.InDelta(t, wantGeq, geq, 1e-12)
	assert.InDelta(t, wantGeq*2.0+0.5, ieq, 1e-12)
}

func TestInductorBackwardEuler(t *testing.T) {
	req, history := Inductor(BackwardEuler, 1e-3, 1e-6, 1.5, 0)
	assert.InDelta(t, 1e-3/1e-6, req, 1e-6)
	assert.InDelta(t, req*1.5, history, 1e-6)
}

func TestInductorTrapezoidal(t *testing.T) {
	req, history := Inductor(Trapezoidal, 1e-3, 1e-6, 1.5, 0.2)
	wantReq := 2 * 1e-3 / 1e-6
	assert.InDelta(t, wantReq, req, 1e-3)
	assert.InDelta(t, wantReq*1.5+0.2, history, 1e-3)
}

func TestInductorDCReq(t *testing.T) {
	assert.Equal(t, 1e-9, DCReq)
}
