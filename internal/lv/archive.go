package lv

import (
	"errors"
	"fmt"

	"github.com/san-kum/nusim/internal/osc"
	"github.com/san-kum/nusim/internal/storage"
)

const (
	couplingsGroup = "c_values"
	engineGroup    = "engine"

	attrEMuReal   = "c_e_mu_real"
	attrEMuImag   = "c_e_mu_imag"
	attrMuTauReal = "c_mu_tau_real"
	attrMuTauImag = "c_mu_tau_imag"
)

// WriteArchive stores the engine and the raw couplings under group. The
// rotated operator is not stored; loading rotates again with the mixing
// parameters active at that time. Couplings are written only if the last
// Set carried them.
func (s *System) WriteArchive(a *storage.Archive, group string) {
	s.Engine.WriteArchive(a, storage.Join(group, engineGroup))

	p, ok := s.pert.Parameters()
	if !ok {
		s.Logger().Warn("perturbation has no couplings to write", "group", group)
		return
	}
	s.Logger().Info("writing perturbation couplings", "group", storage.Join(group, couplingsGroup), "c_emu", p.CEMu, "c_mutau", p.CMuTau)

	g := a.Group(storage.Join(group, couplingsGroup))
	g.SetAttribute(attrEMuReal, real(p.CEMu))
	g.SetAttribute(attrEMuImag, imag(p.CEMu))
	g.SetAttribute(attrMuTauReal, real(p.CMuTau))
	g.SetAttribute(attrMuTauImag, imag(p.CMuTau))
}

// LoadSystem rebuilds a System written by WriteArchive. Stored couplings
// go through SetFromParameters; without them the perturbation is NotReady.
func LoadSystem(a *storage.Archive, group string, opts ...osc.Option) (*System, error) {
	e, err := osc.Load(a, storage.Join(group, engineGroup), opts...)
	if err != nil {
		return nil, err
	}
	if e.Flavors() < 3 {
		return nil, fmt.Errorf("lv: %d flavors, need at least 3: %w", e.Flavors(), osc.ErrFlavors)
	}
	s := wrap(e)

	g, err := a.Lookup(storage.Join(group, couplingsGroup))
	if errors.Is(err, storage.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var v [4]float64
	for i, name := range []string{attrEMuReal, attrEMuImag, attrMuTauReal, attrMuTauImag} {
		if v[i], err = g.Attribute(name); err != nil {
			return nil, err
		}
	}
	if err := s.SetFromParameters(FromComponents(v[0], v[1], v[2], v[3], 1)); err != nil {
		return nil, err
	}
	return s, nil
}
