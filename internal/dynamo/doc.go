// Package dynamo provides the integration primitives the oscillation engine
// is driven by.
//
// The package defines the fundamental interfaces and types for numerical
// integration of ordinary differential equations (ODEs):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [PreStepper]: optional once-per-step hook run before any derivative
//   - [Integrator]: numerical stepper interface
//   - [Simulator]: orchestrates integration runs
//
// # Example
//
//	sys := osc.New(energies, 3, osc.Neutrino)
//	sim := dynamo.New(sys, integrators.NewRK4())
//	result, err := sim.Run(ctx, x0, cfg)
//
// # Step hooks
//
// A System that also implements [PreStepper] gets PreStep(t) exactly once
// per integration step, at the step's start time, before the integrator
// evaluates any derivative. A PreStep error aborts the run. A System that
// implements [Faulter] is checked after every step, so failures raised
// inside Derive (which has no error return) also abort the run.
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. Independent systems can be
// integrated concurrently, one Simulator per goroutine.
package dynamo
