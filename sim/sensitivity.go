package sim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// SensitivityFunc computes a per-energy sensitivity from the grid energies
// (keV) and the layer material's linear attenuation coefficients (cm⁻¹).
// It must return one value in [0, 1] per energy.
type SensitivityFunc func(energy, attenuation []float64) []float64

// Unity is a SensitivityFunc that counts every absorbed photon.
func Unity(energy, _ []float64) []float64 {
	out := make([]float64, len(energy))
	for i := range out {
		out[i] = 1
	}
	return out
}

type sensitivityKind int

const (
	sensitivityNone sensitivityKind = iota
	sensitivityConstant
	sensitivityValues
	sensitivityFunc
)

// Sensitivity describes what fraction of the energy absorbed in a layer is
// registered as signal. It is resolved into a per-energy array once, when a
// layer is built. The zero value means "unspecified": the layer absorbs but
// registers nothing.
type Sensitivity struct {
	kind   sensitivityKind
	value  float64
	values []float64
	fn     SensitivityFunc
}

// Constant returns a sensitivity of v at every energy.
func Constant(v float64) Sensitivity {
	return Sensitivity{kind: sensitivityConstant, value: v}
}

// Values returns an explicit per-energy sensitivity. v is copied.
func Values(v []float64) Sensitivity {
	c := make([]float64, len(v))
	copy(c, v)
	return Sensitivity{kind: sensitivityValues, values: c}
}

// Func returns a sensitivity computed by fn when the layer is built.
func Func(fn SensitivityFunc) Sensitivity {
	return Sensitivity{kind: sensitivityFunc, fn: fn}
}

// IsSet reports whether anything other than the default was given.
func (s Sensitivity) IsSet() bool { return s.kind != sensitivityNone }

func (s Sensitivity) String() string {
	switch s.kind {
	case sensitivityConstant:
		return fmt.Sprintf("constant(%g)", s.value)
	case sensitivityValues:
		return fmt.Sprintf("values[%d]", len(s.values))
	case sensitivityFunc:
		return "func"
	default:
		return "none"
	}
}

// resolve produces the concrete array for a layer on the given energies.
func (s Sensitivity) resolve(energy, attenuation []float64) ([]float64, error) {
	n := len(energy)
	out := make([]float64, n)
	switch s.kind {
	case sensitivityNone:
		return out, nil
	case sensitivityConstant:
		if err := checkFraction(s.value); err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = s.value
		}
		return out, nil
	case sensitivityValues:
		if len(s.values) != n {
			return nil, fmt.Errorf("%w: %d values for %d energies", ErrInvalidSensitivitySpec, len(s.values), n)
		}
		copy(out, s.values)
	case sensitivityFunc:
		if s.fn == nil {
			return nil, fmt.Errorf("%w: nil function", ErrInvalidSensitivitySpec)
		}
		got := s.fn(energy, attenuation)
		if len(got) != n {
			return nil, fmt.Errorf("%w: function returned %d values for %d energies", ErrInvalidSensitivitySpec, len(got), n)
		}
		copy(out, got)
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidSensitivitySpec, s.kind)
	}
	for i, v := range out {
		if err := checkFraction(v); err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
	}
	return out, nil
}

func checkFraction(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %g is outside [0, 1]", ErrInvalidSensitivitySpec, v)
	}
	return nil
}

// MarshalJSON writes null, a number or an array. Functions cannot be
// serialized; resolve them into Values first.
func (s Sensitivity) MarshalJSON() ([]byte, error) {
	v, err := s.plain()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// UnmarshalJSON accepts null, a number or an array of numbers.
func (s *Sensitivity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = Sensitivity{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var vs []float64
		if err := json.Unmarshal(data, &vs); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSensitivitySpec, err)
		}
		*s = Values(vs)
		return nil
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("%w: expected number, array or null, got %s", ErrInvalidSensitivitySpec, data)
		}
		*s = Constant(v)
		return nil
	}
}

// MarshalYAML mirrors MarshalJSON.
func (s Sensitivity) MarshalYAML() (interface{}, error) {
	return s.plain()
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (s *Sensitivity) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == "!!null" {
			*s = Sensitivity{}
			return nil
		}
		if tag := node.ShortTag(); tag != "!!int" && tag != "!!float" {
			return fmt.Errorf("%w: line %d: expected number, sequence or null, got %s %q",
				ErrInvalidSensitivitySpec, node.Line, tag, node.Value)
		}
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrInvalidSensitivitySpec, node.Line, err)
		}
		*s = Constant(v)
		return nil
	case yaml.SequenceNode:
		var vs []float64
		if err := node.Decode(&vs); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrInvalidSensitivitySpec, node.Line, err)
		}
		*s = Values(vs)
		return nil
	default:
		return fmt.Errorf("%w: line %d: expected number, sequence or null", ErrInvalidSensitivitySpec, node.Line)
	}
}

func (s Sensitivity) plain() (interface{}, error) {
	switch s.kind {
	case sensitivityNone:
		return nil, nil
	case sensitivityConstant:
		return s.value, nil
	case sensitivityValues:
		return s.values, nil
	default:
		return nil, fmt.Errorf("%w: sensitivity functions cannot be serialized", ErrInvalidSensitivitySpec)
	}
}
