// Package linalg wraps the sparse direct linear solver used by the MNA
// assembler. It generalizes the teacher's CircuitMatrix into the
// factor(A)->F / solve(F,b)->x contract of spec §4.1, returning errors
// instead of printing warnings.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"github.com/edp1096/sparse"
)

// ErrSingularMatrix reports a zero pivot after pivoting.
var ErrSingularMatrix = errors.New("linalg: singular matrix")

// ErrNonFiniteStamp reports a NaN/Inf value stamped into the system.
var ErrNonFiniteStamp = errors.New("linalg: non-finite stamp")

// System is the sparse (N+E)x(N+E) MNA matrix plus its dense RHS/solution
// vectors. Indices passed to Add* are 0-based; the sparse library beneath
// is 1-based, so System adds one internally and never leaks that detail.
type System struct {
	size     int
	matrix   *sparse.Matrix
	rhs      []float64
	solution []float64
	stamps   []stamp // shadow record of every Add, for ResidualNorm
}

type stamp struct {
	i, j int
	v    float64
}

// NewSystem allocates a system of the given size (N+E).
func NewSystem(size int) (*System, error) {
	config := &sparse.Configuration{
		Real:           true,
		Complex:        false,
		Expandable:     true,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
		PrinterWidth:   140,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("linalg: create matrix: %w", err)
	}

	return &System{
		size:     size,
		matrix:   mat,
		rhs:      make([]float64, size+1),
		solution: make([]float64, size+1),
	}, nil
}

func (s *System) Size() int { return s.size }

// Clear zeros the matrix and RHS for the next Newton iteration, reusing
// the allocated sparsity pattern (spec §4.3: "clear A and b, reusing
// storage and sparsity pattern").
func (s *System) Clear() {
	s.matrix.Clear()
	for i := range s.rhs {
		s.rhs[i] = 0
	}
	s.stamps = s.stamps[:0]
}

// Add accumulates value into A[i,j]. i or j < 0 denotes ground and is a
// no-op (matches the dropped row/column convention of spec §3).
func (s *System) Add(i, j int, value float64) error {
	if i < 0 || j < 0 {
		return nil
	}
	if i >= s.size || j >= s.size {
		return fmt.Errorf("linalg: index out of bounds (i=%d, j=%d, size=%d)", i, j, s.size)
	}
	if isNonFinite(value) {
		return ErrNonFiniteStamp
	}
	s.matrix.GetElement(int64(i+1), int64(j+1)).Real += value
	s.stamps = append(s.stamps, stamp{i: i, j: j, v: value})
	return nil
}

// AddRHS accumulates value into b[i]. i < 0 denotes ground and is a no-op.
func (s *System) AddRHS(i int, value float64) error {
	if i < 0 {
		return nil
	}
	if i >= s.size {
		return fmt.Errorf("linalg: rhs index out of bounds (i=%d, size=%d)", i, s.size)
	}
	if isNonFinite(value) {
		return ErrNonFiniteStamp
	}
	s.rhs[i+1] += value
	return nil
}

// LoadGmin adds gmin to every diagonal entry (spec §4.3's Gmin injection
// policy). Gmin injection is the caller's responsibility, not the
// solver's, per spec §4.1.
func (s *System) LoadGmin(gmin float64) {
	for i := 0; i < s.size; i++ {
		if diag := s.matrix.Diags[i+1]; diag != nil {
			diag.Real += gmin
		}
	}
}

// Factor factors the current matrix contents.
func (s *System) Factor() error {
	if err := s.matrix.Factor(); err != nil {
		return fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}
	return nil
}

// Solve factors the current matrix and solves A x = b, returning the 0-based
// solution vector of length Size().
func (s *System) Solve() ([]float64, error) {
	if err := s.Factor(); err != nil {
		return nil, err
	}

	sol, err := s.matrix.Solve(s.rhs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}
	s.solution = sol

	out := make([]float64, s.size)
	copy(out, sol[1:s.size+1])
	return out, nil
}

// RHS returns a copy of the 0-based RHS vector.
func (s *System) RHS() []float64 {
	out := make([]float64, s.size)
	copy(out, s.rhs[1:s.size+1])
	return out
}

// ResidualNorm returns ||A*x - b||_inf for the system as currently
// assembled, evaluated at x — the r(x_iter) of spec §4.5's convergence
// test, checked alongside ||dx|| rather than assumed small once dx is
// small (a companion-model-linear circuit makes that assumption safe, but
// a genuinely nonlinear stamp like a diode or MOSFET does not).
func (s *System) ResidualNorm(x []float64) float64 {
	r := make([]float64, s.size)
	for _, st := range s.stamps {
		r[st.i] += st.v * x[st.j]
	}
	maxR := 0.0
	for i := range r {
		r[i] -= s.rhs[i+1]
		if a := math.Abs(r[i]); a > maxR {
			maxR = a
		}
	}
	return maxR
}

func (s *System) Destroy() {
	if s.matrix != nil {
		s.matrix.Destroy()
	}
}

func isNonFinite(v float64) bool {
	return v != v || v > maxFinite || v < -maxFinite
}

const maxFinite = 1.0e300
