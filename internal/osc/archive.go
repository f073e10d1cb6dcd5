package osc

import (
	"fmt"
	"math"

	"github.com/san-kum/nusim/internal/storage"
	"github.com/san-kum/nusim/internal/su"
)

// WriteArchive stores the engine under group: grid, type, mixing
// parameters, clocks and the interaction-picture state.
func (e *Engine) WriteArchive(a *storage.Archive, group string) {
	g := a.Group(group)
	g.SetDataset("energies", e.energies)
	g.SetLabel("neutrino_type", e.nt.String())
	g.SetAttribute("flavors", float64(e.n))
	g.SetAttribute("t", e.t)
	g.SetAttribute("t_initial", e.tInitial)

	var angles, phases []float64
	for j := 1; j < e.n; j++ {
		for i := 0; i < j; i++ {
			angles = append(angles, e.params.MixingAngle(i, j))
			phases = append(phases, e.params.Phase(i, j))
		}
	}
	dm2 := make([]float64, e.n-1)
	for i := 1; i < e.n; i++ {
		dm2[i-1] = e.params.EnergyDifference(i)
	}
	g.SetDataset("mixing_angles", angles)
	g.SetDataset("cp_phases", phases)
	g.SetDataset("square_mass_differences", dm2)

	if e.stateSet {
		g.SetDataset("state", e.pack())
	}
}

// Load rebuilds an engine written by WriteArchive.
func Load(a *storage.Archive, group string, opts ...Option) (*Engine, error) {
	g, err := a.Lookup(group)
	if err != nil {
		return nil, err
	}

	energies, err := g.Dataset("energies")
	if err != nil {
		return nil, err
	}
	label, err := g.Label("neutrino_type")
	if err != nil {
		return nil, err
	}
	nt, err := ParseNeutrinoType(label)
	if err != nil {
		return nil, err
	}
	fl, err := g.Attribute("flavors")
	if err != nil {
		return nil, err
	}
	n := int(fl)

	params := su.NewParams(n)
	angles, err := g.Dataset("mixing_angles")
	if err != nil {
		return nil, err
	}
	phases, err := g.Dataset("cp_phases")
	if err != nil {
		return nil, err
	}
	dm2, err := g.Dataset("square_mass_differences")
	if err != nil {
		return nil, err
	}
	pairs := n * (n - 1) / 2
	if len(angles) != pairs || len(phases) != pairs || len(dm2) != n-1 {
		return nil, fmt.Errorf("mixing datasets for %d flavors: %w", n, su.ErrDimension)
	}
	k := 0
	for j := 1; j < n; j++ {
		for i := 0; i < j; i++ {
			if err := params.SetMixingAngle(i, j, angles[k]); err != nil {
				return nil, err
			}
			if err := params.SetPhase(i, j, phases[k]); err != nil {
				return nil, err
			}
			k++
		}
	}
	for i := 1; i < n; i++ {
		if err := params.SetEnergyDifference(i, dm2[i-1]); err != nil {
			return nil, err
		}
	}

	t, err := g.Attribute("t")
	if err != nil {
		return nil, err
	}
	tInitial, err := g.Attribute("t_initial")
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithParams(params)}, opts...)
	e, err := New(energies, n, nt, opts...)
	if err != nil {
		return nil, err
	}
	e.t = t
	e.tInitial = tInitial

	if x, err := g.Dataset("state"); err == nil {
		if len(x) != e.StateDim() {
			return nil, fmt.Errorf("state has %d entries, engine %d: %w", len(x), e.StateDim(), su.ErrDimension)
		}
		if err := e.unpack(x); err != nil {
			return nil, err
		}
		e.stateSet = true
	}
	return e, nil
}

// AtmosphericBaseline returns the vacuum path length (in km) from the
// production height to a detector at the surface for a given cos(zenith).
func AtmosphericBaseline(cosz, earthRadius, height float64) float64 {
	r := earthRadius
	R := earthRadius + height
	return -r*cosz + math.Sqrt(R*R-r*r*(1-cosz*cosz))
}
