package sim

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Beam is the flux threaded through a stack. Incident is the fraction still
// travelling; Detected is the fraction registered so far.
type Beam struct {
	Incident []float64
	Detected []float64
}

// NewBeam returns a beam with full incident flux and nothing detected.
func NewBeam(g EnergyGrid) Beam {
	b := Beam{
		Incident: make([]float64, g.Len()),
		Detected: make([]float64, g.Len()),
	}
	for i := range b.Incident {
		b.Incident[i] = 1
	}
	return b
}

// Clone returns a deep copy.
func (b Beam) Clone() Beam {
	return Beam{Incident: clone(b.Incident), Detected: clone(b.Detected)}
}

// Propagate passes b through l and returns the resulting beam; b is left
// unchanged. Of the flux reaching the layer, the absorbed part weighted by
// the layer's sensitivity is added to Detected and the transmitted part
// continues as Incident. Absorbed but undetected flux is lost.
func Propagate(b Beam, l Layer) (Beam, error) {
	n := len(l.transmission)
	if len(b.Incident) != n || len(b.Detected) != n {
		return Beam{}, fmt.Errorf("%w: beam has %d/%d points, layer %s has %d",
			ErrGridMismatch, len(b.Incident), len(b.Detected), l.material, n)
	}

	increment := floats.MulTo(make([]float64, n), l.sensitivity, l.absorption)
	floats.Mul(increment, b.Incident)

	return Beam{
		Incident: floats.MulTo(make([]float64, n), b.Incident, l.transmission),
		Detected: floats.AddTo(make([]float64, n), b.Detected, increment),
	}, nil
}

// PropagateAll passes b through layers front to back.
func PropagateAll(b Beam, layers ...Layer) (Beam, error) {
	var err error
	for i, l := range layers {
		if b, err = Propagate(b, l); err != nil {
			return Beam{}, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return b, nil
}
