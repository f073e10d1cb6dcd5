package su

import (
	"errors"
	"math"
	"testing"
)

func sample() [][]complex128 {
	return [][]complex128{
		{0.3, complex(0.1, -0.2), complex(0, 0.05)},
		{complex(0.1, 0.2), -0.1, complex(0.4, 0.1)},
		{complex(0, -0.05), complex(0.4, -0.1), 0.7},
	}
}

func TestFromMatrixHermitian(t *testing.T) {
	v, err := FromMatrix(sample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Dim() != 3 {
		t.Errorf("expected dim 3, got %d", v.Dim())
	}
	if v.At(1, 0) != complex(0.1, 0.2) {
		t.Errorf("unexpected element (1,0): %v", v.At(1, 0))
	}
}

func TestFromMatrixRejects(t *testing.T) {
	tests := []struct {
		name string
		m    [][]complex128
		want error
	}{
		{"ragged", [][]complex128{{1, 0}, {0}}, ErrDimension},
		{"not hermitian", [][]complex128{{1, 2}, {3, 1}}, ErrNotHermitian},
		{"complex diagonal", [][]complex128{{complex(1, 1), 0}, {0, 1}}, ErrNotHermitian},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMatrix(tt.m)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFromMatrixNearlyHermitian(t *testing.T) {
	m := sample()
	m[1][0] += complex(4e-14, 2e-14)
	m[2][2] += complex(0, 3e-14)

	v, err := FromMatrix(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if v.At(i, j) != conj(v.At(j, i)) {
				t.Errorf("(%d,%d)=%v is not the conjugate of (%d,%d)=%v", i, j, v.At(i, j), j, i, v.At(j, i))
			}
		}
	}
	if want := complex(0.1+2e-14, 0.2+1e-14); math.Abs(real(v.At(1, 0))-real(want)) > 1e-15 || math.Abs(imag(v.At(1, 0))-imag(want)) > 1e-15 {
		t.Errorf("expected the Hermitian part %v, got %v", want, v.At(1, 0))
	}

	back, err := FromComponents(3, v.Components())
	if err != nil {
		t.Fatal(err)
	}
	if !back.ApproxEqual(v, 1e-14) {
		t.Errorf("components lost part of the operator\n%v\nvs\n%v", back, v)
	}
}

func TestComponentsRoundTrip(t *testing.T) {
	for _, n := range []int{2, 3, 4} {
		m := make([][]complex128, n)
		for i := range m {
			m[i] = make([]complex128, n)
		}
		for i := 0; i < n; i++ {
			m[i][i] = complex(float64(i)*0.7-0.2, 0)
			for j := i + 1; j < n; j++ {
				x := complex(0.1*float64(i+j), -0.3*float64(j-i))
				m[i][j] = x
				m[j][i] = conj(x)
			}
		}
		v, err := FromMatrix(m)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}

		c := v.Components()
		if len(c) != n*n {
			t.Fatalf("n=%d: expected %d components, got %d", n, n*n, len(c))
		}

		back, err := FromComponents(n, c)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if !back.ApproxEqual(v, 1e-14) {
			t.Errorf("n=%d: round trip mismatch\n%v\nvs\n%v", n, back, v)
		}
	}
}

func TestComponentsIdentity(t *testing.T) {
	c := Identity(3).Components()
	if math.Abs(c[0]-1) > 1e-15 {
		t.Errorf("expected identity coefficient 1, got %f", c[0])
	}
	for i := 1; i < len(c); i++ {
		if math.Abs(c[i]) > 1e-15 {
			t.Errorf("expected zero generator coefficient at %d, got %e", i, c[i])
		}
	}
}

func TestFromComponentsLength(t *testing.T) {
	if _, err := FromComponents(3, make([]float64, 8)); !errors.Is(err, ErrDimension) {
		t.Errorf("expected ErrDimension, got %v", err)
	}
}

func TestICommutator(t *testing.T) {
	a := Diagonal([]float64{1, -1})
	b, _ := FromMatrix([][]complex128{{0, 1}, {1, 0}})

	// i[σz, σx] = i·2iσy = -2σy
	got := a.ICommutator(b)
	want, _ := FromMatrix([][]complex128{{0, complex(0, 2)}, {complex(0, -2), 0}})
	if !got.ApproxEqual(want, 1e-15) {
		t.Errorf("unexpected commutator:\n%v", got)
	}

	if !a.ICommutator(a).IsZero() {
		t.Error("operator should commute with itself")
	}
}

func TestTraceAndDot(t *testing.T) {
	v, _ := FromMatrix(sample())
	if math.Abs(v.Trace()-0.9) > 1e-15 {
		t.Errorf("expected trace 0.9, got %f", v.Trace())
	}
	p, _ := Projector(3, 2)
	if math.Abs(v.Dot(p)-0.7) > 1e-15 {
		t.Errorf("expected <2|v|2> = 0.7, got %f", v.Dot(p))
	}
}

func TestAlgebra(t *testing.T) {
	v, _ := FromMatrix(sample())
	w := v.Add(v).Sub(v.Scale(2))
	if w.MaxAbs() > 1e-15 {
		t.Errorf("expected zero, got max %e", w.MaxAbs())
	}
	if !v.Clone().Equal(v) {
		t.Error("clone should be equal")
	}
}

func TestAddDimensionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on dimension mismatch")
		}
	}()
	New(2).Add(New(3))
}
