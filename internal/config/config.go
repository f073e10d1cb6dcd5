package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/nusim/internal/osc"
)

const (
	DefaultFlavors     = 3
	DefaultNodes       = 50
	DefaultMinGeV      = 1.0
	DefaultMaxGeV      = 100.0
	DefaultBaselineKm  = 1300.0
	DefaultDtKm        = 10.0
	DefaultTolerance   = 1e-9
	DefaultEnergyPower = 1

	DefaultTheta12 = 0.563942
	DefaultTheta13 = 0.154085
	DefaultTheta23 = 0.785398
	DefaultDm21    = 7.65e-05
	DefaultDm31    = 0.00247
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid configuration")

type Config struct {
	System        string             `yaml:"system"`
	Flavors       int                `yaml:"flavors"`
	NeutrinoType  string             `yaml:"neutrino_type"`
	Energy        EnergyConfig       `yaml:"energy"`
	Mixing        MixingConfig       `yaml:"mixing"`
	Perturbation  PerturbationConfig `yaml:"perturbation"`
	Propagation   PropagationConfig  `yaml:"propagation"`
	InitialFlavor []float64          `yaml:"initial_flavor"`
	Zenith        ZenithConfig       `yaml:"zenith"`
}

type EnergyConfig struct {
	MinGeV float64 `yaml:"min_gev"`
	MaxGeV float64 `yaml:"max_gev"`
	Nodes  int     `yaml:"nodes"`
	Log    bool    `yaml:"log"`
}

// MixingConfig holds the three-flavor mixing parameters. Additional
// flavors are unmixed.
type MixingConfig struct {
	Theta12 float64 `yaml:"theta12"`
	Theta13 float64 `yaml:"theta13"`
	Theta23 float64 `yaml:"theta23"`
	Delta13 float64 `yaml:"delta13"`
	Dm21    float64 `yaml:"dm21"`
	Dm31    float64 `yaml:"dm31"`
}

// PerturbationConfig holds the couplings in eV.
type PerturbationConfig struct {
	Enabled     bool    `yaml:"enabled"`
	CEMuRe      float64 `yaml:"c_emu_re"`
	CEMuIm      float64 `yaml:"c_emu_im"`
	CMuTauRe    float64 `yaml:"c_mutau_re"`
	CMuTauIm    float64 `yaml:"c_mutau_im"`
	EnergyPower int     `yaml:"energy_power"`
}

type PropagationConfig struct {
	BaselineKm float64 `yaml:"baseline_km"`
	DtKm       float64 `yaml:"dt_km"`
	Integrator string  `yaml:"integrator"`
	Adaptive   bool    `yaml:"adaptive"`
	Tolerance  float64 `yaml:"tolerance"`
}

// ZenithConfig spaces Bins values of cos(zenith) evenly over [Min, Max].
type ZenithConfig struct {
	Bins int     `yaml:"bins"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

func DefaultConfig() *Config {
	return &Config{
		System:       "vacuum",
		Flavors:      DefaultFlavors,
		NeutrinoType: "neutrino",
		Energy: EnergyConfig{
			MinGeV: DefaultMinGeV,
			MaxGeV: DefaultMaxGeV,
			Nodes:  DefaultNodes,
			Log:    true,
		},
		Mixing: MixingConfig{
			Theta12: DefaultTheta12,
			Theta13: DefaultTheta13,
			Theta23: DefaultTheta23,
			Dm21:    DefaultDm21,
			Dm31:    DefaultDm31,
		},
		Perturbation: PerturbationConfig{
			EnergyPower: DefaultEnergyPower,
		},
		Propagation: PropagationConfig{
			BaselineKm: DefaultBaselineKm,
			DtKm:       DefaultDtKm,
			Integrator: "rk4",
			Tolerance:  DefaultTolerance,
		},
		InitialFlavor: []float64{0, 1, 0},
		Zenith: ZenithConfig{
			Bins: 10,
			Min:  -1,
			Max:  0,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch c.System {
	case "vacuum", "atmospheric":
	default:
		return fmt.Errorf("unknown system %q: %w", c.System, ErrInvalid)
	}
	if c.Flavors < osc.MinFlavors || c.Flavors > osc.MaxFlavors {
		return fmt.Errorf("flavors must be in [%d, %d], got %d: %w", osc.MinFlavors, osc.MaxFlavors, c.Flavors, ErrInvalid)
	}
	if c.Perturbation.Enabled && c.Flavors < 3 {
		return fmt.Errorf("perturbation needs 3 flavors: %w", ErrInvalid)
	}
	if _, err := osc.ParseNeutrinoType(c.NeutrinoType); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	if c.Energy.Nodes < 1 {
		return fmt.Errorf("energy nodes must be positive: %w", ErrInvalid)
	}
	if c.Energy.MinGeV <= 0 || c.Energy.MaxGeV < c.Energy.MinGeV {
		return fmt.Errorf("energy range [%g, %g] GeV: %w", c.Energy.MinGeV, c.Energy.MaxGeV, ErrInvalid)
	}
	if c.Propagation.DtKm <= 0 {
		return fmt.Errorf("dt_km must be positive: %w", ErrInvalid)
	}
	if c.System == "vacuum" && c.Propagation.BaselineKm <= 0 {
		return fmt.Errorf("baseline_km must be positive: %w", ErrInvalid)
	}
	if c.Propagation.Adaptive && c.Propagation.Tolerance <= 0 {
		return fmt.Errorf("adaptive stepping needs a positive tolerance: %w", ErrInvalid)
	}
	if len(c.InitialFlavor) == 0 || len(c.InitialFlavor) > c.Flavors {
		return fmt.Errorf("initial_flavor needs 1 to %d entries: %w", c.Flavors, ErrInvalid)
	}
	if c.System == "atmospheric" {
		z := c.Zenith
		if z.Bins < 1 || z.Min < -1 || z.Max > 1 || z.Max < z.Min {
			return fmt.Errorf("zenith bins %d over [%g, %g]: %w", z.Bins, z.Min, z.Max, ErrInvalid)
		}
	}
	return nil
}

// EnergiesGeV returns the energy grid in GeV.
func (c *Config) EnergiesGeV() []float64 {
	n := c.Energy.Nodes
	out := make([]float64, n)
	if n == 1 {
		out[0] = c.Energy.MinGeV
		return out
	}
	lo, hi := c.Energy.MinGeV, c.Energy.MaxGeV
	for i := range out {
		f := float64(i) / float64(n-1)
		if c.Energy.Log {
			out[i] = lo * math.Pow(hi/lo, f)
		} else {
			out[i] = lo + (hi-lo)*f
		}
	}
	return out
}

// InitialState returns the initial flavor weights padded to Flavors entries.
func (c *Config) InitialState() []float64 {
	w := make([]float64, c.Flavors)
	copy(w, c.InitialFlavor)
	return w
}

// CosZenith returns the cos(zenith) value of every bin.
func (c *Config) CosZenith() []float64 {
	n := c.Zenith.Bins
	out := make([]float64, n)
	if n == 1 {
		out[0] = c.Zenith.Min
		return out
	}
	for i := range out {
		out[i] = c.Zenith.Min + (c.Zenith.Max-c.Zenith.Min)*float64(i)/float64(n-1)
	}
	return out
}
