// Package sim computes the quantum efficiency (QE) of layered X-ray
// detectors.
//
// # Reading Guide
//
// Follow the data from raw tables to the QE curve:
//   - materials.go: resolve formulas through a Resolver and scale by density
//   - grid.go: the shared EnergyGrid and the linear Resample onto it
//   - layer.go, sensitivity.go: one slab's transmission, absorption and
//     sensitivity arrays
//   - beam.go: forward propagation of a Beam through layers
//   - detector.go: the Detector stack, its mutations and the cached QE
//   - detector_config.go: the JSON/YAML configuration format
//
// # Model
//
// A beam enters layer 0 with full incident flux. Each layer absorbs
// 1 − exp(−t·μ) of the flux reaching it and registers its sensitivity times
// that absorption as detected. The rest passes to the next layer. Layer
// order matters: flux absorbed by an insensitive front layer never reaches
// the sensitive ones.
//
// # Sub-packages
//
//   - sim/material: the on-disk attenuation cache and the NIST FFAST fetcher
//   - sim/internal/table: the two-column numeric table codec
package sim
