package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/nusim/internal/config"
	"github.com/san-kum/nusim/internal/dynamo"
	"github.com/san-kum/nusim/internal/lv"
	"github.com/san-kum/nusim/internal/osc"
	"github.com/san-kum/nusim/internal/storage"
	"github.com/san-kum/nusim/internal/su"
	"github.com/san-kum/nusim/internal/units"
)

var flavorNames = []string{"e", "mu", "tau", "s1", "s2", "s3"}

// Experiment is a configured vacuum or atmospheric run.
type Experiment struct {
	cfg      *config.Config
	registry *Registry
	log      *slog.Logger

	system *lv.System
	atm    *lv.Atmospheric
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) {
		if l != nil {
			e.log = l
		}
	}
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// Outcome is the result of Run.
type Outcome struct {
	Meta    storage.RunMetadata
	Table   storage.Table
	Results []*dynamo.Result
}

// New validates cfg and builds the systems with their perturbation and
// initial state.
func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := e.registry.GetIntegrator(cfg.Propagation.Integrator); err != nil {
		return nil, err
	}

	nt, err := osc.ParseNeutrinoType(cfg.NeutrinoType)
	if err != nil {
		return nil, err
	}
	params, err := Params(cfg)
	if err != nil {
		return nil, err
	}
	energies := cfg.EnergiesGeV()
	for i := range energies {
		energies[i] *= units.GeV
	}
	engineOpts := []osc.Option{osc.WithParams(params), osc.WithLogger(e.log)}

	type target interface {
		lv.Target
		SetFromComponents(emuRe, emuIm, muTauRe, muTauIm, unit float64) error
		SetInitialFlavor(weights []float64) error
	}
	var tg target

	switch cfg.System {
	case "atmospheric":
		e.atm, err = lv.NewAtmospheric(cfg.CosZenith(), energies, cfg.Flavors, nt, engineOpts...)
		tg = e.atm
	default:
		if cfg.Flavors >= 3 {
			e.system, err = lv.NewSystem(energies, cfg.Flavors, nt, engineOpts...)
		} else {
			err = fmt.Errorf("experiment: the perturbed system needs 3 flavors, got %d", cfg.Flavors)
		}
		tg = e.system
	}
	if err != nil {
		return nil, err
	}

	p := cfg.Perturbation
	if p.Enabled {
		if err := tg.SetFromComponents(p.CEMuRe, p.CEMuIm, p.CMuTauRe, p.CMuTauIm, units.EV); err != nil {
			return nil, err
		}
	} else if err := tg.SetFromParameters(lv.Parameters{}); err != nil {
		return nil, err
	}
	tg.SetEnergyPower(p.EnergyPower)

	if err := tg.SetInitialFlavor(cfg.InitialState()); err != nil {
		return nil, err
	}
	return e, nil
}

// Params builds the mixing parameters of cfg.
func Params(cfg *config.Config) (su.Params, error) {
	p := osc.DefaultParams(cfg.Flavors)
	m := cfg.Mixing
	set := []error{
		p.SetMixingAngle(0, 1, m.Theta12),
		p.SetEnergyDifference(1, m.Dm21),
	}
	if cfg.Flavors >= 3 {
		set = append(set,
			p.SetMixingAngle(0, 2, m.Theta13),
			p.SetMixingAngle(1, 2, m.Theta23),
			p.SetPhase(0, 2, m.Delta13),
			p.SetEnergyDifference(2, m.Dm31),
		)
	}
	for _, err := range set {
		if err != nil {
			return su.Params{}, err
		}
	}
	return p, nil
}

func (e *Experiment) System() *lv.System           { return e.system }
func (e *Experiment) Atmospheric() *lv.Atmospheric { return e.atm }
func (e *Experiment) Config() *config.Config       { return e.cfg }

func (e *Experiment) newIntegrator() dynamo.Integrator {
	integ, _ := e.registry.GetIntegrator(e.cfg.Propagation.Integrator)
	return integ
}

func (e *Experiment) run(L float64, observers ...dynamo.Observer) osc.Run {
	p := e.cfg.Propagation
	dt := p.DtKm * units.Km
	if dt > L {
		dt = L
	}
	return osc.Run{
		Dt:        dt,
		Adaptive:  p.Adaptive,
		Tolerance: p.Tolerance,
		MinDt:     dt * 1e-6,
		MaxDt:     10 * dt,
		Metrics:   e.registry.DefaultMetrics(e.cfg.Flavors),
		Observers: observers,
	}
}

// Run propagates the systems and tabulates the final flavor probabilities.
func (e *Experiment) Run(ctx context.Context, observers ...dynamo.Observer) (*Outcome, error) {
	out := &Outcome{Meta: e.metadata()}

	if e.atm != nil {
		e.log.Info("evolving atmospheric bins", "bins", e.atm.Len(), "nodes", e.atm.System(0).Nodes())
		results, err := e.atm.Evolve(ctx, e.newIntegrator, func(bin int, L float64) osc.Run {
			return e.run(L)
		})
		if err != nil {
			return nil, err
		}
		out.Results = results
		out.Table, err = e.atmosphericTable()
		if err != nil {
			return nil, err
		}
	} else {
		L := e.cfg.Propagation.BaselineKm * units.Km
		e.log.Info("propagating", "baseline_km", e.cfg.Propagation.BaselineKm, "nodes", e.system.Nodes())
		res, err := e.system.Propagate(ctx, e.newIntegrator(), L, e.run(L, observers...))
		if err != nil {
			return nil, err
		}
		out.Results = []*dynamo.Result{res}
		out.Table, err = Probabilities(e.system, nil)
		if err != nil {
			return nil, err
		}
	}

	out.Meta.Metrics = mergeMetrics(out.Results)
	return out, nil
}

func (e *Experiment) metadata() storage.RunMetadata {
	p := e.cfg.Perturbation
	return storage.RunMetadata{
		System:       e.cfg.System,
		Flavors:      e.cfg.Flavors,
		NeutrinoType: e.cfg.NeutrinoType,
		Nodes:        e.cfg.Energy.Nodes,
		BaselineKm:   e.cfg.Propagation.BaselineKm,
		DtKm:         e.cfg.Propagation.DtKm,
		Integrator:   e.cfg.Propagation.Integrator,
		Perturbation: storage.Perturbation{
			Enabled:     p.Enabled,
			CEMu:        [2]float64{p.CEMuRe, p.CEMuIm},
			CMuTau:      [2]float64{p.CMuTauRe, p.CMuTauIm},
			EnergyPower: p.EnergyPower,
		},
	}
}

// mergeMetrics keeps the worst value of every metric over all results.
func mergeMetrics(results []*dynamo.Result) map[string]float64 {
	merged := make(map[string]float64)
	for _, r := range results {
		if r == nil {
			continue
		}
		for k, v := range r.Metrics {
			if cur, ok := merged[k]; !ok || v > cur {
				merged[k] = v
			}
		}
	}
	return merged
}

func (e *Experiment) atmosphericTable() (storage.Table, error) {
	var table storage.Table
	for i, s := range e.atm.Systems() {
		t, err := Probabilities(s, []string{"cosz"})
		if err != nil {
			return storage.Table{}, err
		}
		table.Header = t.Header
		for _, row := range t.Rows {
			row[0] = e.atm.CosZenith(i)
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}

// Probabilities tabulates the current flavor probabilities of s, one row per
// energy node: the leading columns (zero-filled), the energy in GeV, then
// one column per flavor and channel.
func Probabilities(s *lv.System, leading []string) (storage.Table, error) {
	header := append([]string(nil), leading...)
	header = append(header, "energy_gev")
	prefixes := channelPrefixes(s.Type())
	for _, pre := range prefixes {
		for flv := 0; flv < s.Flavors(); flv++ {
			header = append(header, pre+"_"+flavorNames[flv])
		}
	}

	table := storage.Table{Header: header}
	for ie := 0; ie < s.Nodes(); ie++ {
		row := make([]float64, len(leading), len(header))
		row = append(row, s.Energy(ie)/units.GeV)
		for irho := range prefixes {
			for flv := 0; flv < s.Flavors(); flv++ {
				p, err := s.EvalFlavorAtNode(flv, ie, irho)
				if err != nil {
					return storage.Table{}, err
				}
				row = append(row, p)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func channelPrefixes(nt osc.NeutrinoType) []string {
	switch nt {
	case osc.Antineutrino:
		return []string{"nubar"}
	case osc.Both:
		return []string{"nu", "nubar"}
	default:
		return []string{"nu"}
	}
}
