package lv

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates use of a perturbation that was never set or
	// was invalidated by a change of the mixing parameters.
	ErrNotConfigured = errors.New("lv: perturbation not configured")

	// ErrCacheStale indicates a Hamiltonian query with no refresh since the
	// last Set.
	ErrCacheStale = errors.New("lv: evolved operator not refreshed since last set")
)

// ConfigError reports the operation that found the perturbation NotReady.
type ConfigError struct {
	Op string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("lv: %s: perturbation not configured, set it after changing mixing parameters", e.Op)
}

func (e *ConfigError) Unwrap() error {
	return ErrNotConfigured
}
