package lv

import (
	"fmt"

	"github.com/san-kum/nusim/internal/su"
)

// Target is one trajectory instance a Batch configures.
type Target interface {
	SetFromParameters(p Parameters) error
	SetFromOperator(op su.Vector) error
	SetEnergyPower(n int)
}

// Batch forwards perturbation setters to its targets in order. A failing
// target stops the fan-out: earlier targets keep the new setting, later
// ones are untouched, and the batch must be treated as inconsistent.
type Batch []Target

func (b Batch) SetFromComponents(emuRe, emuIm, muTauRe, muTauIm, unit float64) error {
	return b.SetFromParameters(FromComponents(emuRe, emuIm, muTauRe, muTauIm, unit))
}

func (b Batch) SetFromParameters(p Parameters) error {
	for i, t := range b {
		if err := t.SetFromParameters(p); err != nil {
			return fmt.Errorf("lv: batch instance %d: %w", i, err)
		}
	}
	return nil
}

func (b Batch) SetFromOperator(op su.Vector) error {
	for i, t := range b {
		if err := t.SetFromOperator(op); err != nil {
			return fmt.Errorf("lv: batch instance %d: %w", i, err)
		}
	}
	return nil
}

func (b Batch) SetEnergyPower(n int) {
	for _, t := range b {
		t.SetEnergyPower(n)
	}
}
