package dynamo

import (
	"context"
	"fmt"
	"math"
)

type Simulator struct {
	dyn        System
	integrator Integrator
	metrics    []Metric
	observers  []Observer
}

func New(dyn System, integrator Integrator) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run integrates from cfg.Start over cfg.Duration. The final step is
// shortened so the run ends exactly at cfg.Start+cfg.Duration. On failure
// the partial result is returned together with a *SimulationError.
func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("state has %d entries, system %d: %w", len(x0), s.dyn.StateDim(), ErrDimensionMismatch)
	}

	steps := int(math.Ceil(cfg.Duration / cfg.Dt))
	result := &Result{
		States:  make([]State, 0, steps+1),
		Times:   make([]float64, 0, steps+1),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := cfg.Start
	end := cfg.Start + cfg.Duration
	dt := cfg.Dt
	eps := 1e-12 * math.Max(math.Abs(end), cfg.Dt)

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	for i := 0; end-t > eps; i++ {
		select {
		case <-ctx.Done():
			return result, &SimulationError{Step: i, Time: t, Wrapped: ctx.Err()}
		default:
		}

		for _, m := range s.metrics {
			m.Observe(x, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, t)
		}

		h := math.Min(dt, end-t)

		if err := s.preStep(t); err != nil {
			return result, &SimulationError{Step: i, Time: t, Wrapped: err}
		}

		var newX State
		used := h
		if cfg.Adaptive {
			var err error
			newX, used, dt, err = s.adaptiveStep(x, t, h, cfg)
			if err != nil {
				return result, &SimulationError{Step: i, Time: t, Wrapped: err}
			}
		} else {
			newX = s.integrator.Step(s.dyn, x, t, h)
		}

		if err := s.fault(); err != nil {
			return result, &SimulationError{Step: i, Time: t, Wrapped: err}
		}

		if cfg.ValidateState && !newX.IsValid() {
			return result, &SimulationError{Step: i, Time: t, Wrapped: ErrInvalidState}
		}

		x = newX
		t += used
		result.StepsTaken++

		result.States = append(result.States, x.Clone())
		result.Times = append(result.Times, t)
	}

	for _, m := range s.metrics {
		m.Observe(x, t)
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g: %w", cfg.Dt, ErrInvalidConfig)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g: %w", cfg.Duration, ErrInvalidConfig)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for adaptive stepping: %w", ErrInvalidConfig)
	}
	return nil
}

func (s *Simulator) preStep(t float64) error {
	if ps, ok := s.dyn.(PreStepper); ok {
		return ps.PreStep(t)
	}
	return nil
}

func (s *Simulator) fault() error {
	if f, ok := s.dyn.(Faulter); ok {
		return f.Err()
	}
	return nil
}

// adaptiveStep returns the new state, the step actually taken and the
// suggested next step.
func (s *Simulator) adaptiveStep(x State, t, dt float64, cfg Config) (State, float64, float64, error) {
	if adaptive, ok := s.integrator.(AdaptiveIntegrator); ok {
		newX, used, next, err := adaptive.StepAdaptive(s.dyn, x, t, dt, cfg.Tolerance, cfg.MinDt)
		if err != nil {
			return nil, 0, 0, err
		}
		if cfg.MaxDt > 0 {
			next = math.Min(next, cfg.MaxDt)
		}
		return newX, used, next, nil
	}

	x1 := s.integrator.Step(s.dyn, x, t, dt)
	xHalf := s.integrator.Step(s.dyn, x, t, dt/2)
	x2 := s.integrator.Step(s.dyn, xHalf, t+dt/2, dt/2)

	err := x1.Sub(x2).Norm()

	if err > cfg.Tolerance {
		if dt/2 < cfg.MinDt {
			return nil, 0, 0, ErrStepTooSmall
		}
		return s.adaptiveStep(x, t, dt/2, cfg)
	}

	next := dt
	if err < cfg.Tolerance/10 {
		next = dt * 2
		if cfg.MaxDt > 0 {
			next = math.Min(next, cfg.MaxDt)
		}
	}

	return x2, dt, next, nil
}
