package su

import (
	"fmt"
	"math"
)

// diagonalTol bounds the relative off-diagonal weight tolerated in an
// evolution Hamiltonian.
const diagonalTol = 1e-12

// RotateToB1 maps a flavor-basis operator into the mass basis, U† v U.
func (v Vector) RotateToB1(p Params) (Vector, error) {
	if p.n != v.n {
		return Vector{}, fmt.Errorf("operator has %d levels, parameters %d: %w", v.n, p.n, ErrDimension)
	}
	u := p.unitary()
	return v.sandwich(u.dagger(), u), nil
}

// RotateToFlavor maps a mass-basis operator back into the flavor basis, U v U†.
func (v Vector) RotateToFlavor(p Params) (Vector, error) {
	if p.n != v.n {
		return Vector{}, fmt.Errorf("operator has %d levels, parameters %d: %w", v.n, p.n, ErrDimension)
	}
	u := p.unitary()
	return v.sandwich(u, u.dagger()), nil
}

// Evolve returns the interaction-picture image e^{iht} v e^{-iht} of v
// after a time t under the reference Hamiltonian h. The time is measured
// from the fixed reference at which the two pictures coincide, not from a
// previous call. h must be diagonal in the basis v is expressed in.
func (v Vector) Evolve(h Vector, t float64) (Vector, error) {
	if h.n != v.n {
		return Vector{}, fmt.Errorf("operator has %d levels, hamiltonian %d: %w", v.n, h.n, ErrDimension)
	}
	if !h.IsDiagonal(diagonalTol) {
		return Vector{}, ErrNotDiagonal
	}

	n := v.n
	r := v.Clone()
	for j := 0; j < n; j++ {
		hj := real(h.m[j*n+j])
		for k := 0; k < n; k++ {
			if j == k {
				continue
			}
			phase := (hj - real(h.m[k*n+k])) * t
			if phase == 0 {
				continue
			}
			s, c := math.Sincos(phase)
			r.m[j*n+k] *= complex(c, s)
		}
	}
	return r, nil
}

// Projector returns |i><i| in an n-level space.
func Projector(n, i int) (Vector, error) {
	if i < 0 || i >= n {
		return Vector{}, fmt.Errorf("projector %d for %d levels: %w", i, n, ErrIndex)
	}
	v := New(n)
	v.m[i*n+i] = 1
	return v, nil
}

func (v Vector) sandwich(left, right cmat) Vector {
	m := cmat{n: v.n, a: v.m}
	prod := left.mul(m).mul(right)
	return Vector{n: v.n, m: prod.a}
}
