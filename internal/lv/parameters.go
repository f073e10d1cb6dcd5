package lv

import (
	"fmt"
	"math/cmplx"

	"github.com/san-kum/nusim/internal/su"
)

// Parameters are the two flavor-violating couplings, in eV.
type Parameters struct {
	CEMu   complex128
	CMuTau complex128
}

// FromComponents builds couplings from real and imaginary parts expressed
// in multiples of unit.
func FromComponents(emuRe, emuIm, muTauRe, muTauIm, unit float64) Parameters {
	return Parameters{
		CEMu:   complex(emuRe*unit, emuIm*unit),
		CMuTau: complex(muTauRe*unit, muTauIm*unit),
	}
}

// Matrix returns the n×n flavor-basis generator: CEMu at (1,0), CMuTau at
// (2,1), their conjugates mirrored above the diagonal and zeros elsewhere.
func (p Parameters) Matrix(n int) ([][]complex128, error) {
	if n < 3 {
		return nil, fmt.Errorf("lv: generator needs 3 flavors, got %d: %w", n, su.ErrDimension)
	}
	m := make([][]complex128, n)
	for i := range m {
		m[i] = make([]complex128, n)
	}
	m[1][0] = p.CEMu
	m[0][1] = cmplx.Conj(p.CEMu)
	m[2][1] = p.CMuTau
	m[1][2] = cmplx.Conj(p.CMuTau)
	return m, nil
}

func (p Parameters) String() string {
	return fmt.Sprintf("c_emu=%v c_mutau=%v", p.CEMu, p.CMuTau)
}

// parametersOf reads the couplings back from a generator matrix.
func parametersOf(m [][]complex128) (Parameters, error) {
	if len(m) < 3 || len(m[1]) < 1 || len(m[2]) < 2 {
		return Parameters{}, fmt.Errorf("lv: generator needs 3 flavors, got %d: %w", len(m), su.ErrDimension)
	}
	return Parameters{CEMu: m[1][0], CMuTau: m[2][1]}, nil
}
