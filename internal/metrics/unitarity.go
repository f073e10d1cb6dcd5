package metrics

import (
	"math"

	"github.com/san-kum/nusim/internal/dynamo"
	"github.com/san-kum/nusim/internal/su"
)

// Unitarity tracks the largest change of Tr ρ over the density matrices
// packed in the state, relative to the first observation. Unitary evolution
// keeps it at rounding level.
type Unitarity struct {
	name     string
	flavors  int
	initial  []float64
	maxDrift float64
}

func NewUnitarity(flavors int) *Unitarity {
	return &Unitarity{
		name:    "unitarity",
		flavors: flavors,
	}
}

func (u *Unitarity) Name() string { return u.name }

func (u *Unitarity) Observe(x dynamo.State, t float64) {
	nn := u.flavors * u.flavors
	blocks := len(x) / nn
	if u.initial == nil {
		u.initial = make([]float64, blocks)
		for k := range u.initial {
			u.initial[k] = float64(u.flavors) * x[k*nn]
		}
		return
	}
	for k := 0; k < blocks && k < len(u.initial); k++ {
		tr := float64(u.flavors) * x[k*nn]
		u.maxDrift = math.Max(u.maxDrift, math.Abs(tr-u.initial[k]))
	}
}

func (u *Unitarity) Value() float64 { return u.maxDrift }

func (u *Unitarity) Reset() {
	u.initial = nil
	u.maxDrift = 0
}

// Purity tracks the largest relative change of Tr ρ² over the density
// matrices in the state. Evolution under any Hermitian Hamiltonian keeps it
// constant, so growth signals integrator error.
type Purity struct {
	name     string
	flavors  int
	initial  []float64
	maxDrift float64
}

func NewPurity(flavors int) *Purity {
	return &Purity{
		name:    "purity_drift",
		flavors: flavors,
	}
}

func (p *Purity) Name() string { return p.name }

func (p *Purity) Observe(x dynamo.State, t float64) {
	nn := p.flavors * p.flavors
	blocks := len(x) / nn
	first := p.initial == nil
	if first {
		p.initial = make([]float64, blocks)
	}
	for k := 0; k < blocks && k < len(p.initial); k++ {
		rho, err := su.FromComponents(p.flavors, x[k*nn:(k+1)*nn])
		if err != nil {
			return
		}
		purity := rho.Dot(rho)
		if first {
			p.initial[k] = purity
			continue
		}
		if p.initial[k] != 0 {
			drift := math.Abs(purity-p.initial[k]) / p.initial[k]
			p.maxDrift = math.Max(p.maxDrift, drift)
		}
	}
}

func (p *Purity) Value() float64 { return p.maxDrift }

func (p *Purity) Reset() {
	p.initial = nil
	p.maxDrift = 0
}
