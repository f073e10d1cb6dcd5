package lv

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/nusim/internal/dynamo"
	"github.com/san-kum/nusim/internal/osc"
	"github.com/san-kum/nusim/internal/storage"
	"github.com/san-kum/nusim/internal/su"
	"github.com/san-kum/nusim/internal/units"
)

// Atmospheric holds one System per cos(zenith) bin, each travelling the
// vacuum baseline from the production height to the detector.
type Atmospheric struct {
	cosz    []float64
	systems []*System
}

func NewAtmospheric(cosz, energies []float64, flavors int, nt osc.NeutrinoType, opts ...osc.Option) (*Atmospheric, error) {
	if err := checkZenith(cosz); err != nil {
		return nil, err
	}
	a := &Atmospheric{cosz: append([]float64(nil), cosz...)}
	for i := range cosz {
		s, err := NewSystem(energies, flavors, nt, opts...)
		if err != nil {
			return nil, fmt.Errorf("lv: bin %d: %w", i, err)
		}
		a.systems = append(a.systems, s)
	}
	return a, nil
}

func checkZenith(cosz []float64) error {
	if len(cosz) == 0 {
		return fmt.Errorf("lv: no zenith bins: %w", osc.ErrNodeIndex)
	}
	for i, c := range cosz {
		if !(c >= -1 && c <= 1) {
			return fmt.Errorf("lv: cos(zenith) %g in bin %d outside [-1, 1]", c, i)
		}
	}
	return nil
}

func (a *Atmospheric) Len() int                { return len(a.systems) }
func (a *Atmospheric) CosZenith(i int) float64 { return a.cosz[i] }
func (a *Atmospheric) System(i int) *System    { return a.systems[i] }
func (a *Atmospheric) CosZeniths() []float64   { return append([]float64(nil), a.cosz...) }
func (a *Atmospheric) Baseline(i int) float64  { return baseline(a.cosz[i]) }
func (a *Atmospheric) Systems() []*System      { return append([]*System(nil), a.systems...) }
func (a *Atmospheric) Type() osc.NeutrinoType  { return a.systems[0].Type() }
func (a *Atmospheric) Energies() []float64     { return a.systems[0].Energies() }

// baseline is the vacuum path length in 1/eV.
func baseline(cosz float64) float64 {
	return osc.AtmosphericBaseline(cosz, units.EarthRadius, units.ProductionHeight)
}

func (a *Atmospheric) batch() Batch {
	b := make(Batch, len(a.systems))
	for i, s := range a.systems {
		b[i] = s
	}
	return b
}

func (a *Atmospheric) SetFromComponents(emuRe, emuIm, muTauRe, muTauIm, unit float64) error {
	return a.batch().SetFromComponents(emuRe, emuIm, muTauRe, muTauIm, unit)
}

func (a *Atmospheric) SetFromParameters(p Parameters) error {
	return a.batch().SetFromParameters(p)
}

func (a *Atmospheric) SetFromOperator(op su.Vector) error {
	return a.batch().SetFromOperator(op)
}

func (a *Atmospheric) SetEnergyPower(n int) {
	a.batch().SetEnergyPower(n)
}

// SetMixingAngle updates every bin. Every bin is invalidated even when an
// update fails; the first error is returned.
func (a *Atmospheric) SetMixingAngle(i, j int, angle float64) error {
	var first error
	for _, s := range a.systems {
		if err := s.SetMixingAngle(i, j, angle); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *Atmospheric) SetCPPhase(i, j int, phase float64) error {
	var first error
	for _, s := range a.systems {
		if err := s.SetCPPhase(i, j, phase); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *Atmospheric) SetSquareMassDifference(i int, dm2 float64) error {
	for _, s := range a.systems {
		if err := s.SetSquareMassDifference(i, dm2); err != nil {
			return err
		}
	}
	return nil
}

func (a *Atmospheric) SetInitialFlavor(weights []float64) error {
	for i, s := range a.systems {
		if err := s.SetInitialFlavor(weights); err != nil {
			return fmt.Errorf("lv: bin %d: %w", i, err)
		}
	}
	return nil
}

// Evolve propagates every bin over its baseline in parallel. Each bin gets
// its own integrator from newIntegrator and its own run settings from run,
// which is called with the bin index and baseline. The first failure
// cancels the remaining bins at their next step.
func (a *Atmospheric) Evolve(ctx context.Context, newIntegrator func() dynamo.Integrator, run func(bin int, baseline float64) osc.Run) ([]*dynamo.Result, error) {
	results := make([]*dynamo.Result, len(a.systems))
	g, gctx := errgroup.WithContext(ctx)

	for i, s := range a.systems {
		g.Go(func() error {
			L := baseline(a.cosz[i])
			res, err := s.Propagate(gctx, newIntegrator(), L, run(i, L))
			if err != nil {
				return fmt.Errorf("lv: bin %d (cosz=%g): %w", i, a.cosz[i], err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// WriteArchive stores every bin under costh_<i> with its cos(zenith).
func (a *Atmospheric) WriteArchive(ar *storage.Archive) {
	ar.Group("/").SetDataset("costh", a.cosz)
	for i, s := range a.systems {
		s.WriteArchive(ar, binGroup(i))
	}
}

// LoadAtmospheric rebuilds an Atmospheric written by WriteArchive.
func LoadAtmospheric(ar *storage.Archive, opts ...osc.Option) (*Atmospheric, error) {
	root, err := ar.Lookup("/")
	if err != nil {
		return nil, err
	}
	cosz, err := root.Dataset("costh")
	if err != nil {
		return nil, err
	}
	if err := checkZenith(cosz); err != nil {
		return nil, err
	}
	a := &Atmospheric{cosz: cosz}
	for i := range cosz {
		s, err := LoadSystem(ar, binGroup(i), opts...)
		if err != nil {
			return nil, fmt.Errorf("lv: bin %d: %w", i, err)
		}
		a.systems = append(a.systems, s)
	}
	return a, nil
}

func binGroup(i int) string {
	return fmt.Sprintf("/costh_%d", i)
}
