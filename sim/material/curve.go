// Package material resolves mass-attenuation curves for chemical formulas.
//
// A [Store] answers from an on-disk cache of one table per formula and falls
// back to a remote [Fetcher] (by default the NIST FFAST database) on a miss.
// Curves are kept in native units (keV, cm²/g) and are never density-scaled
// by the store, so a single cache entry serves every density.
package material

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrDataUnavailable is returned when a curve is neither cached nor
	// obtainable from the remote source, or either one holds malformed data.
	ErrDataUnavailable = errors.New("material: data unavailable")

	// ErrInvalidFormula is returned for formulas that cannot name a cache file.
	ErrInvalidFormula = errors.New("material: invalid formula")
)

// Point is one sample of a curve.
type Point struct {
	Energy      float64 // keV
	Attenuation float64 // cm²/g, or cm⁻¹ once density-scaled
}

// Curve is an attenuation curve sorted ascending by energy.
type Curve []Point

// Energies returns the energy column.
func (c Curve) Energies() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Energy
	}
	return out
}

// Attenuations returns the attenuation column.
func (c Curve) Attenuations() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Attenuation
	}
	return out
}

// Scale returns a copy with every attenuation multiplied by density (g/cm³),
// turning a mass-attenuation curve into a linear one (cm⁻¹).
func (c Curve) Scale(density float64) Curve {
	out := make(Curve, len(c))
	for i, p := range c {
		out[i] = Point{Energy: p.Energy, Attenuation: p.Attenuation * density}
	}
	return out
}

// Sorted returns a copy ordered by energy. Equal energies keep their input
// order.
func (c Curve) Sorted() Curve {
	out := make(Curve, len(c))
	copy(out, c)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Energy < out[j].Energy })
	return out
}

// validate rejects curves that must not be used as attenuation data.
func (c Curve) validate() error {
	if len(c) == 0 {
		return fmt.Errorf("empty curve")
	}
	for i, p := range c {
		if math.IsNaN(p.Energy) || math.IsInf(p.Energy, 0) || math.IsNaN(p.Attenuation) || math.IsInf(p.Attenuation, 0) {
			return fmt.Errorf("row %d: non-finite value", i)
		}
		if p.Energy <= 0 {
			return fmt.Errorf("row %d: non-positive energy %g", i, p.Energy)
		}
		if p.Attenuation < 0 {
			return fmt.Errorf("row %d: negative attenuation %g", i, p.Attenuation)
		}
	}
	return nil
}
