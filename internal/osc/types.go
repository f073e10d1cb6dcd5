package osc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/nusim/internal/su"
)

var (
	// ErrNoEnergies indicates an empty or non-positive energy grid.
	ErrNoEnergies = errors.New("osc: energy grid must be non-empty and positive")

	// ErrFlavors indicates an unsupported number of flavors.
	ErrFlavors = errors.New("osc: unsupported number of flavors")

	// ErrNoInitialState indicates propagation before an initial state was set.
	ErrNoInitialState = errors.New("osc: initial state not set")

	// ErrNodeIndex indicates an out-of-range node, channel or flavor index.
	ErrNodeIndex = errors.New("osc: index out of range")
)

const (
	MinFlavors = 2
	MaxFlavors = 6
)

// NeutrinoType selects which channels an engine evolves.
type NeutrinoType int

const (
	Neutrino NeutrinoType = iota
	Antineutrino
	Both
)

func (t NeutrinoType) String() string {
	switch t {
	case Neutrino:
		return "neutrino"
	case Antineutrino:
		return "antineutrino"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("NeutrinoType(%d)", int(t))
	}
}

// Channels returns the number of density matrices per energy node.
func (t NeutrinoType) Channels() int {
	if t == Both {
		return 2
	}
	return 1
}

func ParseNeutrinoType(s string) (NeutrinoType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neutrino", "nu":
		return Neutrino, nil
	case "antineutrino", "nubar":
		return Antineutrino, nil
	case "both":
		return Both, nil
	default:
		return 0, fmt.Errorf("osc: unknown neutrino type %q", s)
	}
}

// Extension contributes to the interaction Hamiltonian of an Engine.
//
// PreDerive is called at the start of every integration step and again
// whenever the integrator evaluates the derivative at a new time within
// the step, before any HI call at that time. HI receives the engine's own
// interaction Hamiltonian for the node and channel and returns the
// Hamiltonian the integrator should see.
type Extension interface {
	PreDerive(x float64) error
	HI(ie, irho int, base su.Vector) (su.Vector, error)
}

// DefaultParams returns the standard three-flavor mixing parameters,
// padded with zero mixing for additional (sterile) states.
func DefaultParams(n int) su.Params {
	p := su.NewParams(n)
	if n >= 2 {
		_ = p.SetMixingAngle(0, 1, 0.563942)
		_ = p.SetEnergyDifference(1, 7.65e-05)
	}
	if n >= 3 {
		_ = p.SetMixingAngle(0, 2, 0.154085)
		_ = p.SetMixingAngle(1, 2, 0.785398)
		_ = p.SetEnergyDifference(2, 0.00247)
	}
	return p
}
