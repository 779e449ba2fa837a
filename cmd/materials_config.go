package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/qesim/qesim/sim"
)

// MaterialsConfig is the materials file: densities (g/cm³) keyed by formula.
type MaterialsConfig struct {
	Materials map[string]float64 `yaml:"materials"`
}

// loadDensities returns the density table. Entries from the file at path
// override DefaultDensities; an empty path yields the defaults alone.
func loadDensities(path string) (map[string]float64, error) {
	densities := make(map[string]float64, len(sim.DefaultDensities))
	for f, rho := range sim.DefaultDensities {
		densities[f] = rho
	}
	if path == "" {
		return densities, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading materials file: %w", err)
	}
	// Strict field checking: a misspelt key must not silently fall back to defaults.
	var cfg MaterialsConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing materials file %s: %w", path, err)
	}
	for f, rho := range cfg.Materials {
		if rho <= 0 {
			return nil, fmt.Errorf("%w: %s has density %g g/cm³ in %s", sim.ErrInvalidDensity, f, rho, path)
		}
		densities[f] = rho
	}
	logrus.Infof("loaded %d densities from %s", len(cfg.Materials), path)
	return densities, nil
}
