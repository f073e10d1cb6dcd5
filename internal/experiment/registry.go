package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/nusim/internal/dynamo"
	"github.com/san-kum/nusim/internal/integrators"
	"github.com/san-kum/nusim/internal/metrics"
)

type Registry struct {
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }

	return r
}

// GetIntegrator returns a new integrator. Integrators keep scratch space,
// so every concurrent propagation needs its own.
func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics(flavors int) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewUnitarity(flavors),
		metrics.NewPurity(flavors),
	}
}
