package sim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/qesim/qesim/sim/material"
)

// DefaultDensities are densities (g/cm³) for common detector materials.
var DefaultDensities = map[string]float64{
	"Al":    2.77,
	"Si":    2.33,
	"SiO2":  2.6,
	"Si3N4": 3.44,
	"SiP2":  2.5,
}

// Resolver returns the raw mass-attenuation curve for a formula.
// *material.Store implements it.
type Resolver interface {
	Resolve(ctx context.Context, formula string) (material.Curve, error)
}

// Materials maps formulas to density-scaled attenuation curves (cm⁻¹) on
// their native energy sampling.
type Materials map[string]material.Curve

// LoadMaterials resolves every formula in densities and scales it by its
// density.
func LoadMaterials(ctx context.Context, r Resolver, densities map[string]float64) (Materials, error) {
	formulas := make([]string, 0, len(densities))
	for f := range densities {
		formulas = append(formulas, f)
	}
	sort.Strings(formulas)

	logrus.Infof("loading %d materials", len(formulas))
	m := make(Materials, len(formulas))
	for _, f := range formulas {
		rho := densities[f]
		if math.IsNaN(rho) || math.IsInf(rho, 0) || rho <= 0 {
			return nil, fmt.Errorf("%w: %s has density %g g/cm³", ErrInvalidDensity, f, rho)
		}
		raw, err := r.Resolve(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("load material %s: %w", f, err)
		}
		m[f] = raw.Scale(rho)
		logrus.Debugf("material %s: %d points, density %g g/cm³", f, len(raw), rho)
	}
	return m, nil
}

// Formulas returns the material identifiers, sorted.
func (m Materials) Formulas() []string {
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Densities selects the densities for formulas from table, failing with
// ErrUnknownMaterial for any formula it does not list.
func Densities(formulas []string, table map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(formulas))
	for _, f := range formulas {
		rho, ok := table[f]
		if !ok {
			return nil, fmt.Errorf("%w: no density configured for %q", ErrUnknownMaterial, f)
		}
		out[f] = rho
	}
	return out, nil
}
