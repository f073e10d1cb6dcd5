// Package lv adds a flavor-violating perturbation to the oscillation
// engine.
//
// The perturbation is the Hermitian generator with couplings c_eμ at (1,0)
// and c_μτ at (2,1) in the flavor basis. [Perturbation] rotates it into the
// mass basis with an explicit snapshot of the mixing parameters, refreshes
// its interaction-picture image once per integration step and adds
// ±E^n times that image to the Hamiltonian of every node. A change of a
// mixing angle or CP phase on a [System] makes the perturbation NotReady
// until it is set again; using it in that state returns [ErrNotConfigured].
//
// [Batch] and [Atmospheric] apply the same settings to many trajectories.
package lv
