package su

import (
	"fmt"
	"math"
)

// Components returns the N² real coefficients of v on the generalized
// Gell-Mann basis. Index 0 is the identity coefficient Tr(v)/N, followed by
// a (symmetric, antisymmetric) pair for every level pair j<k in row order,
// then the N-1 diagonal generators.
func (v Vector) Components() []float64 {
	n := v.n
	c := make([]float64, n*n)
	if n == 0 {
		return c
	}
	c[0] = v.Trace() / float64(n)

	idx := 1
	for j := 0; j < n; j++ {
		for k := j + 1; k < n; k++ {
			x := v.m[j*n+k]
			c[idx] = real(x)
			c[idx+1] = -imag(x)
			idx += 2
		}
	}

	for l := 1; l < n; l++ {
		norm := math.Sqrt(2.0 / float64(l*(l+1)))
		s := 0.0
		for m := 0; m < l; m++ {
			s += real(v.m[m*n+m])
		}
		s -= float64(l) * real(v.m[l*n+l])
		c[idx] = norm * s / 2
		idx++
	}
	return c
}

// FromComponents rebuilds an operator of dimension n from the coefficients
// produced by [Vector.Components].
func FromComponents(n int, c []float64) (Vector, error) {
	if len(c) != n*n {
		return Vector{}, fmt.Errorf("%d components for dimension %d: %w", len(c), n, ErrDimension)
	}
	v := New(n)
	if n == 0 {
		return v, nil
	}
	for i := 0; i < n; i++ {
		v.m[i*n+i] = complex(c[0], 0)
	}

	idx := 1
	for j := 0; j < n; j++ {
		for k := j + 1; k < n; k++ {
			x := complex(c[idx], -c[idx+1])
			v.m[j*n+k] = x
			v.m[k*n+j] = conj(x)
			idx += 2
		}
	}

	for l := 1; l < n; l++ {
		a := c[idx] * math.Sqrt(2.0/float64(l*(l+1)))
		for m := 0; m < l; m++ {
			v.m[m*n+m] += complex(a, 0)
		}
		v.m[l*n+l] -= complex(float64(l)*a, 0)
		idx++
	}
	return v, nil
}
