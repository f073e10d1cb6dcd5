package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/nusim/internal/dynamo"
)

// Dormand-Prince 5(4) tableau. The last stage is evaluated at the
// fifth-order solution, so dpA[6] doubles as the solution weights.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}

	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}

	// Difference between the fifth- and fourth-order weights.
	dpE = [7]float64{71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40}
)

// maxRejections bounds the retries of a single adaptive step.
const maxRejections = 64

// RK45 is the Dormand-Prince embedded pair. Step takes exactly the
// requested step; StepAdaptive retries rejected steps with a smaller one.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64

	k [7]dynamo.State
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	xNew, _ := r.attempt(dyn, x, t, dt, 0)
	return xNew
}

// StepAdaptive advances x by at most dt, keeping the scaled error
// estimate within tol (used as both absolute and relative tolerance).
// It returns the new state, the step actually taken and a suggestion for
// the next step. It fails with dynamo.ErrStepTooSmall when the step would
// have to shrink below minDt.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, t, dt, tol, minDt float64) (dynamo.State, float64, float64, error) {
	if !(tol > 0) {
		return nil, 0, 0, fmt.Errorf("rk45: tolerance must be positive, got %g", tol)
	}

	h := dt
	for range maxRejections {
		xNew, errNorm := r.attempt(dyn, x, t, h, tol)
		if errNorm <= 1 {
			return xNew, h, h * r.grow(errNorm), nil
		}

		// NaN lands here too and takes the largest cut.
		scale := r.minScale
		if errNorm < math.Inf(1) {
			scale = math.Max(r.minScale, r.safety*math.Pow(errNorm, -0.2))
		}
		h *= scale
		if h < minDt || h == 0 {
			break
		}
	}
	return nil, 0, 0, fmt.Errorf("rk45: step at t=%g shrank to %g: %w", t, h, dynamo.ErrStepTooSmall)
}

func (r *RK45) grow(errNorm float64) float64 {
	if errNorm == 0 {
		return r.maxScale
	}
	return math.Min(r.maxScale, math.Max(1, r.safety*math.Pow(errNorm, -0.2)))
}

// attempt takes one step of size h and returns the fifth-order solution
// with the RMS error norm scaled by tol. With tol <= 0 the estimate is
// skipped.
func (r *RK45) attempt(dyn dynamo.System, x dynamo.State, t, h, tol float64) (dynamo.State, float64) {
	n := len(x)
	r.k[0] = dyn.Derive(x, t)

	var xNew dynamo.State
	for s := 1; s < len(dpC); s++ {
		xs := make(dynamo.State, n)
		for i := range xs {
			sum := 0.0
			for j := 0; j < s; j++ {
				sum += dpA[s][j] * r.k[j][i]
			}
			xs[i] = x[i] + h*sum
		}
		if s == len(dpC)-1 {
			xNew = xs
			if tol <= 0 {
				return xNew, 0
			}
		}
		r.k[s] = dyn.Derive(xs, t+dpC[s]*h)
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		e := 0.0
		for s, w := range dpE {
			e += w * r.k[s][i]
		}
		sc := tol + tol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		sum += (h * e / sc) * (h * e / sc)
	}
	if n == 0 {
		return xNew, 0
	}
	return xNew, math.Sqrt(sum / float64(n))
}
