package sim

import (
	"errors"

	"github.com/qesim/qesim/sim/material"
)

// Errors returned by detector construction and computation. Match them with
// errors.Is; returned errors wrap them with context.
var (
	// ErrUnknownMaterial indicates a layer references a material the detector
	// was not built with, or one with no configured density.
	ErrUnknownMaterial = errors.New("sim: unknown material")

	// ErrDataUnavailable indicates attenuation data could not be resolved.
	ErrDataUnavailable = material.ErrDataUnavailable

	// ErrInvalidThickness indicates a negative or non-finite thickness.
	ErrInvalidThickness = errors.New("sim: invalid thickness")

	// ErrInvalidSensitivitySpec indicates a sensitivity that is not a
	// function, scalar or array of matching length with values in [0, 1].
	ErrInvalidSensitivitySpec = errors.New("sim: invalid sensitivity spec")

	// ErrGridMismatch indicates arrays built against different energy grids.
	ErrGridMismatch = errors.New("sim: energy grid mismatch")

	// ErrEmptyDetector indicates QE was requested from a detector with no layers.
	ErrEmptyDetector = errors.New("sim: detector has no layers")

	// ErrLayerIndex indicates a layer position outside the stack.
	ErrLayerIndex = errors.New("sim: layer index out of range")

	// ErrInvalidDensity indicates a non-positive or non-finite density.
	ErrInvalidDensity = errors.New("sim: invalid density")

	// ErrInvalidGrid indicates an energy grid that is empty, unordered or
	// holds non-positive energies.
	ErrInvalidGrid = errors.New("sim: invalid energy grid")
)
