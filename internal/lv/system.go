package lv

import (
	"fmt"
	"io"

	"github.com/san-kum/nusim/internal/osc"
	"github.com/san-kum/nusim/internal/su"
)

// System is an oscillation engine carrying a flavor-violating perturbation.
// It shadows the engine's mixing-angle and CP-phase setters so that a change
// of the rotation invalidates the perturbation.
type System struct {
	*osc.Engine
	pert *Perturbation
}

// NewSystem builds the engine and installs the perturbation as its
// Hamiltonian extension. The perturbation starts NotReady.
func NewSystem(energies []float64, flavors int, nt osc.NeutrinoType, opts ...osc.Option) (*System, error) {
	if flavors < 3 {
		return nil, fmt.Errorf("lv: %d flavors, need at least 3: %w", flavors, osc.ErrFlavors)
	}
	e, err := osc.New(energies, flavors, nt, opts...)
	if err != nil {
		return nil, err
	}
	return wrap(e), nil
}

func wrap(e *osc.Engine) *System {
	s := &System{
		Engine: e,
		pert:   NewPerturbation(e.Nodes(), e.Flavors()),
	}
	e.SetExtension(extension{s})
	return s
}

// extension adapts a System to osc.Extension.
type extension struct{ s *System }

// PreDerive refreshes the evolved operators at evaluation time t.
func (x extension) PreDerive(t float64) error {
	return x.s.Refresh(t)
}

func (x extension) HI(ie, irho int, base su.Vector) (su.Vector, error) {
	return x.s.pert.Inject(ie, x.s.Energy(ie), x.s.IsAntiparticle(irho), base)
}

// Refresh evolves the perturbation to time t at every node.
//
// The free Hamiltonian is taken for the neutrino channel: neutrinos and
// antineutrinos are assumed to share the same mass Hamiltonian.
func (s *System) Refresh(t float64) error {
	return s.pert.Refresh(t, s.TInitial(), s.Energies(), func(E float64) su.Vector {
		return s.H0(E, 0)
	})
}

// Hamiltonian returns the interaction Hamiltonian the integrator sees at
// node ie, channel irho: the engine's own plus the perturbation term.
func (s *System) Hamiltonian(ie, irho int) (su.Vector, error) {
	return extension{s}.HI(ie, irho, s.Engine.HI(ie, irho))
}

func (s *System) Status() Status      { return s.pert.Status() }
func (s *System) EnergyPower() int    { return s.pert.EnergyPower() }
func (s *System) HasParameters() bool { return s.pert.HasParameters() }

// Perturbation exposes the store for inspection.
func (s *System) Perturbation() *Perturbation { return s.pert }

// SetFromComponents sets the couplings from their parts in multiples of unit.
func (s *System) SetFromComponents(emuRe, emuIm, muTauRe, muTauIm, unit float64) error {
	return s.SetFromParameters(FromComponents(emuRe, emuIm, muTauRe, muTauIm, unit))
}

func (s *System) SetFromParameters(p Parameters) error {
	if err := s.pert.SetFromParameters(p, s.Params()); err != nil {
		return err
	}
	s.Logger().Debug("perturbation set", "source", "parameters", "c_emu", p.CEMu, "c_mutau", p.CMuTau)
	return nil
}

func (s *System) SetFromMatrix(m [][]complex128) error {
	if err := s.pert.SetFromMatrix(m, s.Params()); err != nil {
		return err
	}
	s.Logger().Debug("perturbation set", "source", "matrix")
	return nil
}

// SetFromOperator sets the generator from a flavor-basis operator.
func (s *System) SetFromOperator(op su.Vector) error {
	if err := s.pert.SetFromOperator(op, s.Params()); err != nil {
		return err
	}
	s.Logger().Debug("perturbation set", "source", "operator")
	return nil
}

func (s *System) SetEnergyPower(n int) {
	s.pert.SetEnergyPower(n)
}

// SetMixingAngle updates the engine and invalidates the perturbation, even
// when the engine rejects the update.
func (s *System) SetMixingAngle(i, j int, angle float64) error {
	err := s.Engine.SetMixingAngle(i, j, angle)
	s.invalidate("mixing angle", i, j)
	return err
}

// SetCPPhase updates the engine and invalidates the perturbation, even when
// the engine rejects the update.
func (s *System) SetCPPhase(i, j int, phase float64) error {
	err := s.Engine.SetCPPhase(i, j, phase)
	s.invalidate("cp phase", i, j)
	return err
}

func (s *System) invalidate(what string, i, j int) {
	s.pert.Invalidate()
	s.Logger().Debug("perturbation invalidated", "changed", what, "i", i, "j", j)
}

// Reset rotates the last generator again with the current mixing
// parameters, making the perturbation Ready.
func (s *System) Reset() error {
	if err := s.pert.Reapply(s.Params()); err != nil {
		return err
	}
	s.Logger().Debug("perturbation reset")
	return nil
}

// Clone returns an independent copy of the engine and perturbation.
func (s *System) Clone() *System {
	c := &System{
		Engine: s.Engine.Clone(),
		pert:   s.pert.Clone(),
	}
	c.Engine.SetExtension(extension{c})
	return c
}

// DumpProbabilities writes one line per node: the energy, then for every
// flavor the neutrino and antineutrino probability. A channel the system
// does not evolve prints 0.
func (s *System) DumpProbabilities(w io.Writer) error {
	for ie := 0; ie < s.Nodes(); ie++ {
		if _, err := fmt.Fprintf(w, "%g", s.Energy(ie)); err != nil {
			return err
		}
		for flv := 0; flv < s.Flavors(); flv++ {
			nu, nubar, err := s.channelProbabilities(flv, ie)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, " %g %g", nu, nubar); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func (s *System) channelProbabilities(flv, ie int) (nu, nubar float64, err error) {
	switch s.Type() {
	case osc.Neutrino:
		nu, err = s.EvalFlavorAtNode(flv, ie, 0)
	case osc.Antineutrino:
		nubar, err = s.EvalFlavorAtNode(flv, ie, 0)
	case osc.Both:
		if nu, err = s.EvalFlavorAtNode(flv, ie, 0); err != nil {
			return 0, 0, err
		}
		nubar, err = s.EvalFlavorAtNode(flv, ie, 1)
	}
	return nu, nubar, err
}
