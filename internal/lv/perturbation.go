package lv

import (
	"fmt"
	"math"

	"github.com/san-kum/nusim/internal/su"
)

// Status is the readiness of a Perturbation.
type Status int

const (
	// NotReady covers both never configured and invalidated.
	NotReady Status = iota
	Ready
)

func (s Status) String() string {
	if s == Ready {
		return "ready"
	}
	return "not ready"
}

// FreeHamiltonian returns the reference Hamiltonian at energy E in the
// working basis. It must be diagonal there.
type FreeHamiltonian func(E float64) su.Vector

// Perturbation stores a flavor-violating generator rotated into the working
// basis and its interaction-picture image at every energy node.
//
// Transitions: any Set moves to Ready; Invalidate moves to NotReady. Refresh
// and Inject fail with ErrNotConfigured while NotReady.
type Perturbation struct {
	dim int

	params    Parameters
	hasParams bool
	raw       su.Vector
	op        su.Vector
	status    Status

	cache []su.Vector
	fresh bool

	power int
}

// NewPerturbation returns a NotReady perturbation for nodes energy nodes of
// a dim-level system, with energy power 1.
func NewPerturbation(nodes, dim int) *Perturbation {
	cache := make([]su.Vector, nodes)
	for i := range cache {
		cache[i] = su.New(dim)
	}
	return &Perturbation{
		dim:   dim,
		cache: cache,
		power: 1,
	}
}

func (p *Perturbation) Status() Status   { return p.status }
func (p *Perturbation) EnergyPower() int { return p.power }
func (p *Perturbation) Nodes() int       { return len(p.cache) }

// HasParameters reports whether the last Set carried couplings. After
// SetFromOperator the stored couplings are undefined.
func (p *Perturbation) HasParameters() bool { return p.hasParams }

// Parameters returns the couplings recorded by the last parameter or matrix Set.
func (p *Perturbation) Parameters() (Parameters, bool) {
	return p.params, p.hasParams
}

// Operator returns the generator in the working basis as of the last Set.
func (p *Perturbation) Operator() su.Vector { return p.op.Clone() }

// Cached returns the evolved operator of node ie from the last refresh.
func (p *Perturbation) Cached(ie int) (su.Vector, error) {
	if ie < 0 || ie >= len(p.cache) {
		return su.Vector{}, fmt.Errorf("lv: node %d of %d: %w", ie, len(p.cache), su.ErrIndex)
	}
	return p.cache[ie].Clone(), nil
}

// SetFromParameters builds the generator from p and rotates it with rot.
func (p *Perturbation) SetFromParameters(params Parameters, rot su.Params) error {
	m, err := params.Matrix(p.dim)
	if err != nil {
		return err
	}
	op, err := su.FromMatrix(m)
	if err != nil {
		return err
	}
	if err := p.apply(op, rot); err != nil {
		return err
	}
	p.params = params
	p.hasParams = true
	return nil
}

// SetFromMatrix uses m as the flavor-basis generator and reads the
// couplings back from its (1,0) and (2,1) entries.
func (p *Perturbation) SetFromMatrix(m [][]complex128, rot su.Params) error {
	params, err := parametersOf(m)
	if err != nil {
		return err
	}
	op, err := su.FromMatrix(m)
	if err != nil {
		return err
	}
	if err := p.apply(op, rot); err != nil {
		return err
	}
	p.params = params
	p.hasParams = true
	return nil
}

// SetFromOperator uses op, given in the flavor basis, as the generator.
// Stored couplings are left as they were and no longer describe it.
func (p *Perturbation) SetFromOperator(op su.Vector, rot su.Params) error {
	if err := p.apply(op, rot); err != nil {
		return err
	}
	p.hasParams = false
	return nil
}

func (p *Perturbation) apply(op su.Vector, rot su.Params) error {
	if op.Dim() != p.dim {
		return fmt.Errorf("lv: generator has %d levels, want %d: %w", op.Dim(), p.dim, su.ErrDimension)
	}
	rotated, err := op.RotateToB1(rot)
	if err != nil {
		return err
	}
	p.raw = op.Clone()
	p.op = rotated
	p.status = Ready
	p.fresh = false
	return nil
}

// Reapply rotates the last flavor-basis generator again with rot.
func (p *Perturbation) Reapply(rot su.Params) error {
	if p.raw.Dim() == 0 {
		return &ConfigError{Op: "reapply"}
	}
	hasParams := p.hasParams
	if err := p.apply(p.raw, rot); err != nil {
		return err
	}
	p.hasParams = hasParams
	return nil
}

// SetEnergyPower sets the exponent n of the E^n scaling. It applies from
// the next Inject.
func (p *Perturbation) SetEnergyPower(n int) { p.power = n }

// Invalidate moves to NotReady. Couplings and the flavor-basis generator
// are kept.
func (p *Perturbation) Invalidate() {
	p.status = NotReady
	p.fresh = false
}

// Refresh evolves the generator to time x at every node, measured from
// tInitial, under h0 at the node's energy.
func (p *Perturbation) Refresh(x, tInitial float64, energies []float64, h0 FreeHamiltonian) error {
	if p.status != Ready {
		return &ConfigError{Op: "refresh"}
	}
	if len(energies) != len(p.cache) {
		return fmt.Errorf("lv: %d energies for %d nodes: %w", len(energies), len(p.cache), su.ErrDimension)
	}

	cache := make([]su.Vector, len(p.cache))
	for i, E := range energies {
		v, err := p.op.Evolve(h0(E), x-tInitial)
		if err != nil {
			return fmt.Errorf("lv: node %d: %w", i, err)
		}
		cache[i] = v
	}
	p.cache = cache
	p.fresh = true
	return nil
}

// Term returns sign × E^n × cache[ie], with sign -1 for antiparticles.
func (p *Perturbation) Term(ie int, energy float64, antiparticle bool) (su.Vector, error) {
	if p.status != Ready {
		return su.Vector{}, &ConfigError{Op: "inject"}
	}
	if !p.fresh {
		return su.Vector{}, ErrCacheStale
	}
	if ie < 0 || ie >= len(p.cache) {
		return su.Vector{}, fmt.Errorf("lv: node %d of %d: %w", ie, len(p.cache), su.ErrIndex)
	}

	f := math.Pow(energy, float64(p.power))
	if antiparticle {
		f = -f
	}
	return p.cache[ie].Scale(f), nil
}

// Inject adds the perturbation term of node ie to base.
func (p *Perturbation) Inject(ie int, energy float64, antiparticle bool, base su.Vector) (su.Vector, error) {
	term, err := p.Term(ie, energy, antiparticle)
	if err != nil {
		return su.Vector{}, err
	}
	if base.Dim() != p.dim {
		return su.Vector{}, fmt.Errorf("lv: hamiltonian has %d levels, want %d: %w", base.Dim(), p.dim, su.ErrDimension)
	}
	return base.Add(term), nil
}

// Clone returns a deep copy.
func (p *Perturbation) Clone() *Perturbation {
	c := *p
	c.raw = p.raw.Clone()
	c.op = p.op.Clone()
	c.cache = make([]su.Vector, len(p.cache))
	for i, v := range p.cache {
		c.cache[i] = v.Clone()
	}
	return &c
}
