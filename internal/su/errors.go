package su

import "errors"

var (
	// ErrDimension indicates operands of different dimension.
	ErrDimension = errors.New("su: dimension mismatch")

	// ErrNotHermitian indicates a matrix that is not Hermitian within tolerance.
	ErrNotHermitian = errors.New("su: matrix is not Hermitian")

	// ErrNotDiagonal indicates a reference Hamiltonian that is not diagonal
	// in the working basis.
	ErrNotDiagonal = errors.New("su: evolution Hamiltonian is not diagonal")

	// ErrIndex indicates an out-of-range level index.
	ErrIndex = errors.New("su: level index out of range")
)
