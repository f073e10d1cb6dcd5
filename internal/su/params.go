package su

import (
	"fmt"
	"math"
)

// Params is the set of mixing angles, CP phases and squared mass
// differences that defines the rotation between the flavor and mass bases.
// Angles and phases are indexed by level pairs i<j. Squared mass
// differences are m_i² - m_0² in eV², indexed from 1.
type Params struct {
	n     int
	theta []float64
	delta []float64
	dm2   []float64
}

// NewParams returns parameters for n levels with every angle, phase and
// splitting set to zero.
func NewParams(n int) Params {
	return Params{
		n:     n,
		theta: make([]float64, n*n),
		delta: make([]float64, n*n),
		dm2:   make([]float64, n),
	}
}

// Dim returns the number of levels.
func (p Params) Dim() int { return p.n }

// Clone returns an independent snapshot.
func (p Params) Clone() Params {
	c := Params{
		n:     p.n,
		theta: append([]float64(nil), p.theta...),
		delta: append([]float64(nil), p.delta...),
		dm2:   append([]float64(nil), p.dm2...),
	}
	return c
}

func (p Params) pair(i, j int) (int, error) {
	if i < 0 || j <= i || j >= p.n {
		return 0, fmt.Errorf("pair (%d,%d) for %d levels: %w", i, j, p.n, ErrIndex)
	}
	return i*p.n + j, nil
}

// SetMixingAngle sets θ_ij in radians. Requires 0 <= i < j < n.
func (p *Params) SetMixingAngle(i, j int, angle float64) error {
	k, err := p.pair(i, j)
	if err != nil {
		return err
	}
	p.theta[k] = angle
	return nil
}

// MixingAngle returns θ_ij, or 0 for an invalid pair.
func (p Params) MixingAngle(i, j int) float64 {
	k, err := p.pair(i, j)
	if err != nil {
		return 0
	}
	return p.theta[k]
}

// SetPhase sets the CP phase δ_ij in radians. Requires 0 <= i < j < n.
func (p *Params) SetPhase(i, j int, phase float64) error {
	k, err := p.pair(i, j)
	if err != nil {
		return err
	}
	p.delta[k] = phase
	return nil
}

// Phase returns δ_ij, or 0 for an invalid pair.
func (p Params) Phase(i, j int) float64 {
	k, err := p.pair(i, j)
	if err != nil {
		return 0
	}
	return p.delta[k]
}

// SetEnergyDifference sets m_i² - m_0² in eV². Requires 1 <= i < n.
func (p *Params) SetEnergyDifference(i int, dm2 float64) error {
	if i < 1 || i >= p.n {
		return fmt.Errorf("mass index %d for %d levels: %w", i, p.n, ErrIndex)
	}
	p.dm2[i] = dm2
	return nil
}

// EnergyDifference returns m_i² - m_0², or 0 for an invalid index.
func (p Params) EnergyDifference(i int) float64 {
	if i < 1 || i >= p.n {
		return 0
	}
	return p.dm2[i]
}

// Unitary returns the mixing matrix U with flavor rows and mass columns,
// built as the ordered product of complex plane rotations
// U = R_{n-2,n-1} ... R_{0,2} R_{0,1}. For three levels this is the usual
// R23 · U13(δ) · R12.
func (p Params) Unitary() [][]complex128 {
	u := p.unitary()
	out := make([][]complex128, p.n)
	for i := range out {
		out[i] = append([]complex128(nil), u.a[i*p.n:(i+1)*p.n]...)
	}
	return out
}

func (p Params) unitary() cmat {
	u := eye(p.n)
	for j := p.n - 1; j >= 1; j-- {
		for i := j - 1; i >= 0; i-- {
			th := p.theta[i*p.n+j]
			if th == 0 {
				continue
			}
			u = u.mul(rotation(p.n, i, j, th, p.delta[i*p.n+j]))
		}
	}
	return u
}

func rotation(n, i, j int, theta, delta float64) cmat {
	r := eye(n)
	s, c := math.Sincos(theta)
	ph := complex(math.Cos(delta), -math.Sin(delta))
	r.a[i*n+i] = complex(c, 0)
	r.a[j*n+j] = complex(c, 0)
	r.a[i*n+j] = complex(s, 0) * ph
	r.a[j*n+i] = -complex(s, 0) * conj(ph)
	return r
}

// cmat is a general (not necessarily Hermitian) complex matrix.
type cmat struct {
	n int
	a []complex128
}

func eye(n int) cmat {
	m := cmat{n: n, a: make([]complex128, n*n)}
	for i := 0; i < n; i++ {
		m.a[i*n+i] = 1
	}
	return m
}

func (m cmat) mul(o cmat) cmat {
	n := m.n
	r := cmat{n: n, a: make([]complex128, n*n)}
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			x := m.a[i*n+k]
			if x == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				r.a[i*n+j] += x * o.a[k*n+j]
			}
		}
	}
	return r
}

func (m cmat) dagger() cmat {
	n := m.n
	r := cmat{n: n, a: make([]complex128, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			r.a[j*n+i] = conj(m.a[i*n+j])
		}
	}
	return r
}
