package su

import (
	"fmt"
	"math"
	"strings"
)

// hermitianTol is the relative tolerance used when validating input matrices.
const hermitianTol = 1e-12

// Vector is a Hermitian operator on an N-level system, stored densely in
// row-major order. The zero value is an operator of dimension 0.
type Vector struct {
	n int
	m []complex128
}

// New returns the zero operator of dimension n.
func New(n int) Vector {
	return Vector{n: n, m: make([]complex128, n*n)}
}

// Identity returns the identity operator of dimension n.
func Identity(n int) Vector {
	v := New(n)
	for i := 0; i < n; i++ {
		v.m[i*n+i] = 1
	}
	return v
}

// Diagonal returns the operator with the given real diagonal.
func Diagonal(d []float64) Vector {
	v := New(len(d))
	for i, x := range d {
		v.m[i*v.n+i] = complex(x, 0)
	}
	return v
}

// FromMatrix builds an operator from a square Hermitian matrix. Matrices
// Hermitian within tolerance are stored as their Hermitian part.
func FromMatrix(a [][]complex128) (Vector, error) {
	n := len(a)
	for i, row := range a {
		if len(row) != n {
			return Vector{}, fmt.Errorf("row %d has %d entries, want %d: %w", i, len(row), n, ErrDimension)
		}
	}

	scale := 0.0
	for i := range a {
		for j := range a[i] {
			scale = math.Max(scale, cabs(a[i][j]))
		}
	}

	v := New(n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d := a[i][j] - conj(a[j][i])
			if cabs(d) > hermitianTol*scale {
				return Vector{}, fmt.Errorf("entry (%d,%d)=%v vs (%d,%d)=%v: %w", i, j, a[i][j], j, i, a[j][i], ErrNotHermitian)
			}
			h := (a[i][j] + conj(a[j][i])) / 2
			v.m[i*n+j] = h
			v.m[j*n+i] = conj(h)
		}
	}
	return v, nil
}

// Dim returns the number of levels.
func (v Vector) Dim() int { return v.n }

// At returns the matrix element (i, j).
func (v Vector) At(i, j int) complex128 { return v.m[i*v.n+j] }

// Matrix returns a copy of the operator as a dense matrix.
func (v Vector) Matrix() [][]complex128 {
	out := make([][]complex128, v.n)
	for i := range out {
		out[i] = make([]complex128, v.n)
		copy(out[i], v.m[i*v.n:(i+1)*v.n])
	}
	return out
}

// Clone returns a deep copy.
func (v Vector) Clone() Vector {
	c := Vector{n: v.n, m: make([]complex128, len(v.m))}
	copy(c.m, v.m)
	return c
}

// Add returns v + o. It panics if the dimensions differ.
func (v Vector) Add(o Vector) Vector {
	mustMatch(v, o)
	r := New(v.n)
	for i := range v.m {
		r.m[i] = v.m[i] + o.m[i]
	}
	return r
}

// Sub returns v - o. It panics if the dimensions differ.
func (v Vector) Sub(o Vector) Vector {
	mustMatch(v, o)
	r := New(v.n)
	for i := range v.m {
		r.m[i] = v.m[i] - o.m[i]
	}
	return r
}

// Scale returns f·v.
func (v Vector) Scale(f float64) Vector {
	r := New(v.n)
	c := complex(f, 0)
	for i := range v.m {
		r.m[i] = c * v.m[i]
	}
	return r
}

// ICommutator returns i[v, o], which is Hermitian for Hermitian operands.
// It panics if the dimensions differ.
func (v Vector) ICommutator(o Vector) Vector {
	mustMatch(v, o)
	n := v.n
	r := New(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var s complex128
			for k := 0; k < n; k++ {
				s += v.m[i*n+k]*o.m[k*n+j] - o.m[i*n+k]*v.m[k*n+j]
			}
			r.m[i*n+j] = complex(0, 1) * s
		}
	}
	return r
}

// Trace returns the (real) trace.
func (v Vector) Trace() float64 {
	t := 0.0
	for i := 0; i < v.n; i++ {
		t += real(v.m[i*v.n+i])
	}
	return t
}

// Dot returns Tr(v·o), which is real for Hermitian operands.
func (v Vector) Dot(o Vector) float64 {
	mustMatch(v, o)
	n := v.n
	s := 0.0
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			s += real(v.m[i*n+k] * o.m[k*n+i])
		}
	}
	return s
}

// IsZero reports whether every element is exactly zero.
func (v Vector) IsZero() bool {
	for _, x := range v.m {
		if x != 0 {
			return false
		}
	}
	return true
}

// IsDiagonal reports whether the off-diagonal elements vanish relative to
// the largest element, within tol.
func (v Vector) IsDiagonal(tol float64) bool {
	scale := 0.0
	for _, x := range v.m {
		scale = math.Max(scale, cabs(x))
	}
	for i := 0; i < v.n; i++ {
		for j := 0; j < v.n; j++ {
			if i != j && cabs(v.m[i*v.n+j]) > tol*scale {
				return false
			}
		}
	}
	return true
}

// Equal reports exact element-wise equality.
func (v Vector) Equal(o Vector) bool {
	if v.n != o.n {
		return false
	}
	for i := range v.m {
		if v.m[i] != o.m[i] {
			return false
		}
	}
	return true
}

// ApproxEqual reports element-wise equality within an absolute tolerance.
func (v Vector) ApproxEqual(o Vector, tol float64) bool {
	if v.n != o.n {
		return false
	}
	for i := range v.m {
		if cabs(v.m[i]-o.m[i]) > tol {
			return false
		}
	}
	return true
}

// MaxAbs returns the largest element modulus.
func (v Vector) MaxAbs() float64 {
	mx := 0.0
	for _, x := range v.m {
		mx = math.Max(mx, cabs(x))
	}
	return mx
}

func (v Vector) String() string {
	var b strings.Builder
	for i := 0; i < v.n; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j := 0; j < v.n; j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			x := v.m[i*v.n+j]
			fmt.Fprintf(&b, "(%+.4e%+.4ei)", real(x), imag(x))
		}
	}
	return b.String()
}

func mustMatch(a, b Vector) {
	if a.n != b.n {
		panic(fmt.Sprintf("su: dimension mismatch %d != %d", a.n, b.n))
	}
}

func conj(x complex128) complex128 { return complex(real(x), -imag(x)) }

func cabs(x complex128) float64 { return math.Hypot(real(x), imag(x)) }
