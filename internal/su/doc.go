// Package su implements Hermitian operators on an N-level system together
// with the basis rotations and free evolution the oscillation engine needs.
//
// A [Vector] is an N×N Hermitian matrix. It can be decomposed on the
// generalized Gell-Mann basis of u(N): the identity followed by the
// symmetric, antisymmetric and diagonal traceless generators. The N²
// real coefficients of that decomposition are what the integrator carries
// as its state (see [Vector.Components] and [FromComponents]).
//
// Rotations between the flavor basis and the mass ("B1") basis are driven
// by a [Params] set of mixing angles, CP phases and squared mass
// differences. All operations return new values; a Vector is never mutated
// in place once built.
//
// # Example
//
//	p := su.NewParams(3)
//	_ = p.SetMixingAngle(0, 1, 0.5839)
//	op, _ := su.FromMatrix(m)
//	mass, _ := op.RotateToB1(p)
//	evolved, _ := mass.Evolve(h0, t)
package su
