package spline

import (
	"math"
	"testing"
)

func TestFitErrors(t *testing.T) {
	t.Run("too few samples", func(t *testing.T) {
		if _, err := Fit([]float64{0}, []float64{0}); err != ErrInsufficientSamples {
			t.Errorf("expected ErrInsufficientSamples, got %v", err)
		}
	})

	t.Run("mismatched lengths", func(t *testing.T) {
		if _, err := Fit([]float64{0, 1}, []float64{0}); err != ErrInsufficientSamples {
			t.Errorf("expected ErrInsufficientSamples, got %v", err)
		}
	})

	t.Run("non-increasing xs", func(t *testing.T) {
		if _, err := Fit([]float64{0, 0, 1}, []float64{0, 1, 2}); err != ErrNotStrictlyIncreasing {
			t.Errorf("expected ErrNotStrictlyIncreasing, got %v", err)
		}
	})
}

func TestLinearData(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{0, 2, 4, 6, 8}
	s, err := Fit(xs, ys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, x := range []float64{0, 0.5, 1.5, 2.5, 4} {
		if got := s.At(x); math.Abs(got-2*x) > 1e-9 {
			t.Errorf("At(%f) = %f, want %f", x, got, 2*x)
		}
		if got := s.Deriv(x); math.Abs(got-2) > 1e-9 {
			t.Errorf("Deriv(%f) = %f, want 2", x, got)
		}
	}
}

func TestClimbThenLevelOff(t *testing.T) {
	// Altitude rising then flattening out - the winch-launch climb profile.
	xs := []float64{0, 2, 4, 6, 8}
	ys := []float64{0, 150, 320, 400, 410}
	s, err := Fit(xs, ys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d := s.Deriv(1); d <= 0 {
		t.Errorf("expected positive climb rate early, got %f", d)
	}
	if d := s.Deriv(8); d >= s.Deriv(1) {
		t.Errorf("expected climb rate near the end to be lower than early climb, got %f vs %f", d, s.Deriv(1))
	}
}

func TestKnownPassesThroughSamples(t *testing.T) {
	xs := []float64{0, 1, 2, 3}
	ys := []float64{3, 1, 4, 1}
	s, err := Fit(xs, ys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, x := range xs {
		if got := s.At(x); math.Abs(got-ys[i]) > 1e-9 {
			t.Errorf("At(%f) = %f, want %f", x, got, ys[i])
		}
	}
}
