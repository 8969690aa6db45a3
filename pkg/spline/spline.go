// Package spline fits a natural cubic spline through a set of samples and
// evaluates the interpolant and its first and second derivatives at an
// arbitrary point. It backs the winch/self-launch climb-rate classifier in
// pkg/flightcontext, which needs f'(t) to detect when a climb has ended.
package spline

import (
	"errors"
	"sort"
)

// ErrInsufficientSamples is returned when fewer than two samples are given,
// or when xs and ys differ in length; a cubic spline needs at least two
// points to define a single segment.
var ErrInsufficientSamples = errors.New("spline: at least 2 samples required")

// ErrNotStrictlyIncreasing is returned when the x values are not strictly
// increasing, which the natural cubic spline construction requires.
var ErrNotStrictlyIncreasing = errors.New("spline: xs must be strictly increasing")

// CubicSpline is a natural cubic spline interpolant: second derivatives at
// the first and last knot are zero.
type CubicSpline struct {
	xs, ys   []float64
	a        []float64 // ys, restated for Horner evaluation
	b, c, d  []float64 // per-segment cubic coefficients
}

// Fit builds a natural cubic spline through the given samples. xs must be
// strictly increasing and at least two samples must be given.
func Fit(xs, ys []float64) (*CubicSpline, error) {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return nil, ErrInsufficientSamples
	}
	for i := 1; i < n; i++ {
		if xs[i] <= xs[i-1] {
			return nil, ErrNotStrictlyIncreasing
		}
	}

	h := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h[i] = xs[i+1] - xs[i]
	}

	// Tridiagonal system for the second derivatives (natural boundary
	// conditions: c[0] = c[n-1] = 0). Solved with the Thomas algorithm.
	alpha := make([]float64, n)
	for i := 1; i < n-1; i++ {
		alpha[i] = 3*(ys[i+1]-ys[i])/h[i] - 3*(ys[i]-ys[i-1])/h[i-1]
	}

	l := make([]float64, n)
	mu := make([]float64, n)
	z := make([]float64, n)
	l[0] = 1

	for i := 1; i < n-1; i++ {
		l[i] = 2*(xs[i+1]-xs[i-1]) - h[i-1]*mu[i-1]
		mu[i] = h[i] / l[i]
		z[i] = (alpha[i] - h[i-1]*z[i-1]) / l[i]
	}
	l[n-1] = 1

	c := make([]float64, n)
	b := make([]float64, n-1)
	d := make([]float64, n-1)

	for j := n - 2; j >= 0; j-- {
		c[j] = z[j] - mu[j]*c[j+1]
		b[j] = (ys[j+1]-ys[j])/h[j] - h[j]*(c[j+1]+2*c[j])/3
		d[j] = (c[j+1] - c[j]) / (3 * h[j])
	}

	return &CubicSpline{
		xs: append([]float64(nil), xs...),
		ys: append([]float64(nil), ys...),
		a:  append([]float64(nil), ys...),
		b:  b,
		c:  c,
		d:  d,
	}, nil
}

// segment returns the index i such that xs[i] <= t (clamped to the spline's
// domain at the edges, so extrapolation uses the nearest boundary segment).
func (s *CubicSpline) segment(t float64) int {
	i := sort.SearchFloat64s(s.xs, t) - 1
	if i < 0 {
		i = 0
	}
	if i > len(s.xs)-2 {
		i = len(s.xs) - 2
	}
	return i
}

// At evaluates the interpolant f(t).
func (s *CubicSpline) At(t float64) float64 {
	i := s.segment(t)
	dx := t - s.xs[i]
	return s.a[i] + s.b[i]*dx + s.c[i]*dx*dx + s.d[i]*dx*dx*dx
}

// Deriv evaluates the first derivative f'(t).
func (s *CubicSpline) Deriv(t float64) float64 {
	i := s.segment(t)
	dx := t - s.xs[i]
	return s.b[i] + 2*s.c[i]*dx + 3*s.d[i]*dx*dx
}

// Deriv2 evaluates the second derivative f''(t).
func (s *CubicSpline) Deriv2(t float64) float64 {
	i := s.segment(t)
	dx := t - s.xs[i]
	return 2*s.c[i] + 6*s.d[i]*dx
}
