// Package testutil provides shared test infrastructure for the QE simulator:
// relative-tolerance float assertions and small synthetic materials.
package testutil

import (
	"math"
	"testing"

	"github.com/qesim/qesim/sim/material"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == got {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertSlicesClose compares two slices element-wise with relative tolerance.
func AssertSlicesClose(t *testing.T, name string, want, got []float64, relTol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		before := t.Failed()
		AssertFloat64Equal(t, name, want[i], got[i], relTol)
		if !before && t.Failed() {
			t.Logf("%s: first mismatch at index %d", name, i)
			return
		}
	}
}

// UniformCurve returns a raw curve with attenuation mu at each energy.
func UniformCurve(mu float64, energies ...float64) material.Curve {
	c := make(material.Curve, len(energies))
	for i, e := range energies {
		c[i] = material.Point{Energy: e, Attenuation: mu}
	}
	return c
}

// Filled returns n copies of v.
func Filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
