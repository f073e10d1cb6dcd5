// Package units holds the natural-unit constants used across the simulator.
//
// Energies are measured in eV and lengths/times in 1/eV (ħ = c = 1).
package units

const (
	EV  = 1.0
	KeV = 1.0e3 * EV
	MeV = 1.0e6 * EV
	GeV = 1.0e9 * EV
	TeV = 1.0e12 * EV

	// Meter is one meter expressed in 1/eV.
	Meter = 5.067730937e6
	Km    = 1.0e3 * Meter
	Cm    = 1.0e-2 * Meter

	// EarthRadius is the mean radius used for atmospheric baselines.
	EarthRadius = 6371.0 * Km
	// ProductionHeight is the mean height of neutrino production in the atmosphere.
	ProductionHeight = 22.0 * Km
)
