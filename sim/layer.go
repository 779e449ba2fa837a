package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/qesim/qesim/sim/material"
)

// UnitScale converts thickness × attenuation coefficient into an optical
// depth. Thickness is in cm and coefficients in cm⁻¹, so it is 1.
const UnitScale = 1.0

// MicronsPerCM converts micrometres to centimetres.
const MicronsPerCM = 1e4

// Microns returns um micrometres expressed in centimetres.
func Microns(um float64) float64 { return um / MicronsPerCM }

// MaterialCurve is a material's linear attenuation coefficient (cm⁻¹)
// sampled on one energy grid.
type MaterialCurve struct {
	formula string
	grid    EnergyGrid
	coeff   []float64
}

// NewMaterialCurve builds a curve from coefficients already aligned to grid.
func NewMaterialCurve(formula string, grid EnergyGrid, coeff []float64) (MaterialCurve, error) {
	if len(coeff) != grid.Len() {
		return MaterialCurve{}, fmt.Errorf("%w: %s has %d coefficients for %d energies",
			ErrGridMismatch, formula, len(coeff), grid.Len())
	}
	c := make([]float64, len(coeff))
	copy(c, coeff)
	return MaterialCurve{formula: formula, grid: grid, coeff: c}, nil
}

// ResampleMaterial aligns a density-scaled raw curve to grid.
func ResampleMaterial(formula string, raw material.Curve, grid EnergyGrid) (MaterialCurve, error) {
	coeff, err := Resample(raw, grid)
	if err != nil {
		return MaterialCurve{}, fmt.Errorf("resample %s: %w", formula, err)
	}
	return MaterialCurve{formula: formula, grid: grid, coeff: coeff}, nil
}

// Formula returns the material identifier.
func (m MaterialCurve) Formula() string { return m.formula }

// Grid returns the grid the curve is sampled on.
func (m MaterialCurve) Grid() EnergyGrid { return m.grid }

// Coefficients returns a copy of the attenuation coefficients.
func (m MaterialCurve) Coefficients() []float64 { return clone(m.coeff) }

// Layer is one slab of the detector stack. Its arrays are derived once at
// construction; a different thickness or sensitivity needs a new Layer.
type Layer struct {
	material     string
	thickness    float64
	grid         EnergyGrid
	transmission []float64
	absorption   []float64
	sensitivity  []float64
}

// BuildLayer derives transmission, absorption and sensitivity for a slab of
// thickness cm of the curve's material.
func BuildLayer(curve MaterialCurve, thickness float64, s Sensitivity) (Layer, error) {
	if math.IsNaN(thickness) || math.IsInf(thickness, 0) || thickness < 0 {
		return Layer{}, fmt.Errorf("%w: %g cm for %s", ErrInvalidThickness, thickness, curve.formula)
	}
	if curve.grid.Len() == 0 || len(curve.coeff) != curve.grid.Len() {
		return Layer{}, fmt.Errorf("%w: %s is not sampled on a grid", ErrGridMismatch, curve.formula)
	}

	sens, err := s.resolve(curve.grid.Values(), clone(curve.coeff))
	if err != nil {
		return Layer{}, fmt.Errorf("layer %s: %w", curve.formula, err)
	}

	n := len(curve.coeff)
	trans := make([]float64, n)
	abs := make([]float64, n)
	for i, mu := range curve.coeff {
		trans[i] = math.Exp(-thickness * mu * UnitScale)
		abs[i] = 1 - trans[i]
	}

	logrus.Debugf("built layer %s: thickness=%g cm, sensitivity=%s", curve.formula, thickness, s)
	return Layer{
		material:     curve.formula,
		thickness:    thickness,
		grid:         curve.grid,
		transmission: trans,
		absorption:   abs,
		sensitivity:  sens,
	}, nil
}

// Material returns the layer's material identifier.
func (l Layer) Material() string { return l.material }

// Thickness returns the layer thickness in cm.
func (l Layer) Thickness() float64 { return l.thickness }

// Grid returns the energy grid the layer was built on.
func (l Layer) Grid() EnergyGrid { return l.grid }

// Transmission returns the fraction of flux passing through, per energy.
func (l Layer) Transmission() []float64 { return clone(l.transmission) }

// Absorption returns 1 − transmission, per energy.
func (l Layer) Absorption() []float64 { return clone(l.absorption) }

// Sensitivity returns the resolved sensitivity, per energy.
func (l Layer) Sensitivity() []float64 { return clone(l.sensitivity) }

// Config returns the reproducible description of the layer. The sensitivity
// is always written as a concrete array.
func (l Layer) Config() LayerConfig {
	return LayerConfig{
		Material:    l.material,
		Thickness:   l.thickness,
		Sensitivity: Values(l.sensitivity),
	}
}

func clone(s []float64) []float64 {
	c := make([]float64, len(s))
	copy(c, s)
	return c
}
