// Package osc is the vacuum oscillation engine that hosts Hamiltonian
// extensions.
//
// An [Engine] holds a density matrix per energy node and channel, in the
// mass basis and in the interaction picture with respect to the free
// Hamiltonian H0. It implements [dynamo.System], so any integrator from
// internal/integrators can advance it. The base interaction Hamiltonian is
// zero (vacuum). New physics enters through an [Extension], which is asked
// to prepare once per integration step and then to contribute to the
// interaction Hamiltonian at every derivative evaluation.
//
// Energies are in eV and times in 1/eV; see internal/units.
package osc
