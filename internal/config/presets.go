package config

import "sort"

var Presets = map[string]func() *Config{
	"standard": DefaultConfig,
	"lv-emu": func() *Config {
		c := DefaultConfig()
		c.Perturbation = PerturbationConfig{Enabled: true, CEMuRe: 2e-23, EnergyPower: 1}
		return c
	},
	"lv-mutau": func() *Config {
		c := DefaultConfig()
		c.Perturbation = PerturbationConfig{Enabled: true, CMuTauRe: 1e-23, CMuTauIm: 1e-23, EnergyPower: 1}
		return c
	},
	"lv-n2": func() *Config {
		c := DefaultConfig()
		c.Energy.MinGeV, c.Energy.MaxGeV = 10, 1000
		c.Perturbation = PerturbationConfig{Enabled: true, CMuTauRe: 1e-33, EnergyPower: 2}
		return c
	},
	"antineutrino": func() *Config {
		c := DefaultConfig()
		c.NeutrinoType = "antineutrino"
		c.Perturbation = PerturbationConfig{Enabled: true, CEMuRe: 2e-23, EnergyPower: 1}
		return c
	},
	"atmospheric": func() *Config {
		c := DefaultConfig()
		c.System = "atmospheric"
		c.NeutrinoType = "both"
		c.Energy.Nodes = 20
		c.Propagation.DtKm = 50
		c.Perturbation = PerturbationConfig{Enabled: true, CMuTauRe: 1e-23, EnergyPower: 1}
		return c
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
