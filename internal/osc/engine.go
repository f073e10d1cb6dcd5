package osc

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/nusim/internal/dynamo"
	"github.com/san-kum/nusim/internal/su"
)

// Engine evolves one density matrix per energy node and channel.
// It is not safe for concurrent use.
type Engine struct {
	energies []float64
	n        int
	nt       NeutrinoType
	params   su.Params

	t        float64
	tInitial float64
	state    []su.Vector
	stateSet bool

	ext Extension
	log *slog.Logger
	err error

	// time of the last extension refresh
	preparedAt float64
	prepared   bool
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithParams replaces the default mixing parameters.
func WithParams(p su.Params) Option {
	return func(e *Engine) { e.params = p.Clone() }
}

// WithTime sets the engine clock, which also becomes the reference time.
func WithTime(t float64) Option {
	return func(e *Engine) {
		e.t = t
		e.tInitial = t
	}
}

// New builds an engine for the given energy nodes (eV).
func New(energies []float64, flavors int, nt NeutrinoType, opts ...Option) (*Engine, error) {
	if len(energies) == 0 {
		return nil, ErrNoEnergies
	}
	for _, E := range energies {
		if !(E > 0) || math.IsInf(E, 0) {
			return nil, fmt.Errorf("energy %g: %w", E, ErrNoEnergies)
		}
	}
	if flavors < MinFlavors || flavors > MaxFlavors {
		return nil, fmt.Errorf("%d flavors: %w", flavors, ErrFlavors)
	}
	if nt < Neutrino || nt > Both {
		return nil, fmt.Errorf("osc: invalid neutrino type %d", int(nt))
	}

	e := &Engine{
		energies: append([]float64(nil), energies...),
		n:        flavors,
		nt:       nt,
		params:   DefaultParams(flavors),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.params.Dim() != flavors {
		return nil, fmt.Errorf("parameters for %d levels, engine %d: %w", e.params.Dim(), flavors, su.ErrDimension)
	}

	e.state = make([]su.Vector, len(energies)*nt.Channels())
	for i := range e.state {
		e.state[i] = su.New(flavors)
	}
	return e, nil
}

func (e *Engine) Energies() []float64   { return append([]float64(nil), e.energies...) }
func (e *Engine) Energy(ie int) float64 { return e.energies[ie] }
func (e *Engine) Nodes() int            { return len(e.energies) }
func (e *Engine) Flavors() int          { return e.n }
func (e *Engine) Type() NeutrinoType    { return e.nt }
func (e *Engine) Channels() int         { return e.nt.Channels() }
func (e *Engine) Time() float64         { return e.t }
func (e *Engine) TInitial() float64     { return e.tInitial }
func (e *Engine) Logger() *slog.Logger  { return e.log }

// Params returns a snapshot of the current mixing parameters.
func (e *Engine) Params() su.Params { return e.params.Clone() }

// SetExtension installs the Hamiltonian extension; nil removes it.
func (e *Engine) SetExtension(ext Extension) {
	e.ext = ext
	e.prepared = false
}

func (e *Engine) SetMixingAngle(i, j int, angle float64) error {
	return e.params.SetMixingAngle(i, j, angle)
}

func (e *Engine) SetCPPhase(i, j int, phase float64) error {
	return e.params.SetPhase(i, j, phase)
}

// SetSquareMassDifference sets m_i² - m_0² in eV².
func (e *Engine) SetSquareMassDifference(i int, dm2 float64) error {
	return e.params.SetEnergyDifference(i, dm2)
}

// IsAntiparticle reports whether channel irho carries antineutrinos.
func (e *Engine) IsAntiparticle(irho int) bool {
	return (e.nt == Both && irho == 1) || e.nt == Antineutrino
}

// H0 is the free Hamiltonian at energy E in the mass basis, diag(Δm²_i/2E).
// Vacuum propagation uses the same mass Hamiltonian for both channels.
func (e *Engine) H0(E float64, irho int) su.Vector {
	d := make([]float64, e.n)
	for i := 1; i < e.n; i++ {
		d[i] = e.params.EnergyDifference(i) / (2 * E)
	}
	return su.Diagonal(d)
}

// HI is the engine's own interaction Hamiltonian, which is zero in vacuum.
func (e *Engine) HI(ie, irho int) su.Vector {
	return su.New(e.n)
}

func (e *Engine) index(ie, irho int) (int, error) {
	if ie < 0 || ie >= len(e.energies) || irho < 0 || irho >= e.Channels() {
		return 0, fmt.Errorf("node %d channel %d: %w", ie, irho, ErrNodeIndex)
	}
	return ie*e.Channels() + irho, nil
}

// SetInitialFlavor prepares every node and channel in the same incoherent
// flavor mixture. The engine clock becomes the reference time.
func (e *Engine) SetInitialFlavor(weights []float64) error {
	v := make([][][]float64, len(e.energies))
	for ie := range v {
		v[ie] = make([][]float64, e.Channels())
		for irho := range v[ie] {
			v[ie][irho] = weights
		}
	}
	return e.SetInitialState(v)
}

// SetInitialState prepares node ie, channel irho as the flavor mixture
// v[ie][irho]. The engine clock becomes the reference time.
func (e *Engine) SetInitialState(v [][][]float64) error {
	if len(v) != len(e.energies) {
		return fmt.Errorf("%d nodes given, engine has %d: %w", len(v), len(e.energies), ErrNodeIndex)
	}

	state := make([]su.Vector, len(e.state))
	for ie := range v {
		if len(v[ie]) != e.Channels() {
			return fmt.Errorf("node %d: %d channels given, want %d: %w", ie, len(v[ie]), e.Channels(), ErrNodeIndex)
		}
		for irho, w := range v[ie] {
			if len(w) != e.n {
				return fmt.Errorf("node %d channel %d: %d flavors given, want %d: %w", ie, irho, len(w), e.n, ErrNodeIndex)
			}
			flavor := su.Diagonal(w)
			mass, err := flavor.RotateToB1(e.params)
			if err != nil {
				return err
			}
			state[ie*e.Channels()+irho] = mass
		}
	}

	e.state = state
	e.stateSet = true
	e.tInitial = e.t
	return nil
}

// State returns the interaction-picture density matrix of a node.
func (e *Engine) State(ie, irho int) (su.Vector, error) {
	k, err := e.index(ie, irho)
	if err != nil {
		return su.Vector{}, err
	}
	return e.state[k].Clone(), nil
}

// EvalFlavorAtNode returns the probability of flavor flv at node ie,
// channel irho, at the engine's current time.
func (e *Engine) EvalFlavorAtNode(flv, ie, irho int) (float64, error) {
	k, err := e.index(ie, irho)
	if err != nil {
		return 0, err
	}
	if !e.stateSet {
		return 0, ErrNoInitialState
	}
	proj, err := su.Projector(e.n, flv)
	if err != nil {
		return 0, fmt.Errorf("flavor %d: %w", flv, ErrNodeIndex)
	}
	proj, err = proj.RotateToB1(e.params)
	if err != nil {
		return 0, err
	}

	schr, err := e.state[k].Evolve(e.H0(e.energies[ie], irho), -(e.t - e.tInitial))
	if err != nil {
		return 0, err
	}
	return schr.Dot(proj), nil
}

// StateDim implements dynamo.System.
func (e *Engine) StateDim() int {
	return len(e.state) * e.n * e.n
}

// PreStep implements dynamo.PreStepper. It clears the fault recorded by
// the previous step and lets the extension prepare for t.
func (e *Engine) PreStep(t float64) error {
	e.err = nil
	e.prepared = false
	return e.prepare(t)
}

// prepare refreshes the extension when the evaluation time moves. Queries
// at the same time share one refresh.
func (e *Engine) prepare(t float64) error {
	if e.ext == nil || (e.prepared && e.preparedAt == t) {
		return nil
	}
	if err := e.ext.PreDerive(t); err != nil {
		e.prepared = false
		return err
	}
	e.preparedAt, e.prepared = t, true
	return nil
}

// Err implements dynamo.Faulter.
func (e *Engine) Err() error { return e.err }

// Derive implements dynamo.System: dρ/dt = -i[H_I, ρ] for every node and
// channel, on the generalized Gell-Mann components.
func (e *Engine) Derive(x dynamo.State, t float64) dynamo.State {
	nn := e.n * e.n
	dx := make(dynamo.State, len(x))
	if e.err != nil {
		return dx
	}
	if err := e.prepare(t); err != nil {
		e.err = err
		return dx
	}

	ch := e.Channels()
	for ie := range e.energies {
		for irho := 0; irho < ch; irho++ {
			k := ie*ch + irho
			rho, err := su.FromComponents(e.n, x[k*nn:(k+1)*nn])
			if err != nil {
				e.err = err
				return dx
			}
			h, err := e.hamiltonian(ie, irho)
			if err != nil {
				e.err = err
				return dx
			}
			copy(dx[k*nn:(k+1)*nn], rho.ICommutator(h).Components())
		}
	}
	return dx
}

func (e *Engine) hamiltonian(ie, irho int) (su.Vector, error) {
	base := e.HI(ie, irho)
	if e.ext == nil {
		return base, nil
	}
	return e.ext.HI(ie, irho, base)
}

func (e *Engine) pack() dynamo.State {
	nn := e.n * e.n
	x := make(dynamo.State, len(e.state)*nn)
	for k, v := range e.state {
		copy(x[k*nn:], v.Components())
	}
	return x
}

func (e *Engine) unpack(x dynamo.State) error {
	nn := e.n * e.n
	state := make([]su.Vector, len(e.state))
	for k := range state {
		v, err := su.FromComponents(e.n, x[k*nn:(k+1)*nn])
		if err != nil {
			return err
		}
		state[k] = v
	}
	e.state = state
	return nil
}

// Run controls a propagation.
type Run struct {
	Dt        float64
	Adaptive  bool
	Tolerance float64
	MinDt     float64
	MaxDt     float64
	Metrics   []dynamo.Metric
	Observers []dynamo.Observer
}

// Propagate advances the engine by distance (1/eV) with integ. On failure
// the engine keeps its previous state and clock.
func (e *Engine) Propagate(ctx context.Context, integ dynamo.Integrator, distance float64, run Run) (*dynamo.Result, error) {
	if !e.stateSet {
		return nil, ErrNoInitialState
	}

	sim := dynamo.New(e, integ)
	for _, m := range run.Metrics {
		sim.AddMetric(m)
	}
	for _, o := range run.Observers {
		sim.AddObserver(o)
	}

	cfg := dynamo.Config{
		Start:         e.t,
		Dt:            run.Dt,
		Duration:      distance,
		Adaptive:      run.Adaptive,
		Tolerance:     run.Tolerance,
		MinDt:         run.MinDt,
		MaxDt:         run.MaxDt,
		ValidateState: true,
	}

	e.log.Debug("propagating", "from", e.t, "distance", distance, "nodes", len(e.energies), "channels", e.Channels())

	result, err := sim.Run(ctx, e.pack(), cfg)
	if err != nil {
		return nil, err
	}

	final, tEnd := result.Final()
	if err := e.unpack(final); err != nil {
		return nil, err
	}
	e.t = tEnd
	return result, nil
}

// Clone returns a deep copy without the extension.
func (e *Engine) Clone() *Engine {
	c := *e
	c.energies = append([]float64(nil), e.energies...)
	c.params = e.params.Clone()
	c.state = make([]su.Vector, len(e.state))
	for i, v := range e.state {
		c.state[i] = v.Clone()
	}
	c.ext = nil
	c.err = nil
	c.prepared = false
	return &c
}
