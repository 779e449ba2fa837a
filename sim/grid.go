package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/qesim/qesim/sim/material"
)

// EnergyGrid is a strictly increasing sequence of photon energies in keV.
// The zero value is an empty grid and is rejected by NewDetector.
type EnergyGrid struct {
	e []float64
}

// NewEnergyGrid validates and copies energies into a grid.
func NewEnergyGrid(energies []float64) (EnergyGrid, error) {
	if len(energies) == 0 {
		return EnergyGrid{}, fmt.Errorf("%w: no energies", ErrInvalidGrid)
	}
	for i, e := range energies {
		if math.IsNaN(e) || math.IsInf(e, 0) || e <= 0 {
			return EnergyGrid{}, fmt.Errorf("%w: energy %g at index %d", ErrInvalidGrid, e, i)
		}
		if i > 0 && e <= energies[i-1] {
			return EnergyGrid{}, fmt.Errorf("%w: not strictly increasing at index %d (%g after %g)",
				ErrInvalidGrid, i, e, energies[i-1])
		}
	}
	c := make([]float64, len(energies))
	copy(c, energies)
	return EnergyGrid{e: c}, nil
}

// GeomGrid returns n energies evenly spaced in log space from lo to hi
// inclusive.
func GeomGrid(lo, hi float64, n int) (EnergyGrid, error) {
	if n < 2 || !(lo > 0) || !(hi > lo) || math.IsInf(hi, 0) {
		return EnergyGrid{}, fmt.Errorf("%w: geometric grid needs 0 < lo < hi and n >= 2 (lo=%g, hi=%g, n=%d)",
			ErrInvalidGrid, lo, hi, n)
	}
	return NewEnergyGrid(floats.LogSpan(make([]float64, n), lo, hi))
}

// Len returns the number of energies.
func (g EnergyGrid) Len() int { return len(g.e) }

// Values returns a copy of the energies.
func (g EnergyGrid) Values() []float64 {
	c := make([]float64, len(g.e))
	copy(c, g.e)
	return c
}

// Equal reports whether both grids hold the same energies.
func (g EnergyGrid) Equal(o EnergyGrid) bool {
	return floats.Equal(g.e, o.e)
}

// Resample linearly interpolates c onto g.
//
// Energies outside the curve's domain take the nearest boundary value. This
// constant extension is a known approximation: widen the source data rather
// than trusting values past its ends.
//
// An energy tabulated more than once (an absorption edge) is kept as a step:
// the first value is approached from below, the last value holds at the edge
// and above it.
func Resample(c material.Curve, g EnergyGrid) ([]float64, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: empty curve", ErrDataUnavailable)
	}
	if g.Len() == 0 {
		return nil, fmt.Errorf("%w: no energies", ErrInvalidGrid)
	}

	xs, ys := edgeSteps(c.Sorted())

	out := make([]float64, g.Len())
	if len(xs) == 1 {
		for i := range out {
			out[i] = ys[0]
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fit curve: %w", err)
	}
	for i, e := range g.e {
		out[i] = pl.Predict(e)
	}

	if g.e[0] < xs[0] || g.e[len(g.e)-1] > xs[len(xs)-1] {
		logrus.Warnf("energy grid [%g, %g] keV extends past data [%g, %g] keV; boundary values held constant",
			g.e[0], g.e[len(g.e)-1], xs[0], xs[len(xs)-1])
	}
	return out, nil
}

// edgeSteps turns each run of equal energies into two knots: the run's first
// value one ulp below the edge and its last value at the edge.
func edgeSteps(sorted material.Curve) (xs, ys []float64) {
	xs = make([]float64, 0, len(sorted))
	ys = make([]float64, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1].Energy == sorted[i].Energy {
			j++
		}
		e := sorted[i].Energy
		if j > i {
			below := math.Nextafter(e, math.Inf(-1))
			if n := len(xs); n == 0 || below > xs[n-1] {
				xs = append(xs, below)
				ys = append(ys, sorted[i].Attenuation)
			}
			logrus.Debugf("resample: edge at %g keV (%g -> %g)", e, sorted[i].Attenuation, sorted[j].Attenuation)
		}
		xs = append(xs, e)
		ys = append(ys, sorted[j].Attenuation)
		i = j + 1
	}
	return xs, ys
}
