package sim

import "sort"

// Presets are ready-made detector stacks. Thicknesses are in cm.
var Presets = map[string]DetectorConfig{
	// 90 nm aluminium optical blocking filter over a thin oxide and a fully
	// sensitive 35 µm silicon bulk.
	"standard": {
		Name: "standard",
		Layers: []LayerConfig{
			{Material: "Al", Thickness: Microns(0.09)},
			{Material: "SiO2", Thickness: Microns(0.004)},
			{Material: "Si", Thickness: Microns(35), Sensitivity: Func(Unity)},
		},
	},
	// Filter, oxide and a 10 nm dead silicon layer in front of 13 µm of
	// sensitive silicon.
	"dead-layer": {
		Name: "dead-layer",
		Layers: []LayerConfig{
			{Material: "Al", Thickness: Microns(0.09)},
			{Material: "SiO2", Thickness: Microns(0.003)},
			{Material: "Si", Thickness: Microns(0.01)},
			{Material: "Si", Thickness: Microns(13), Sensitivity: Constant(1)},
		},
	},
}

// GetPreset returns the named preset.
func GetPreset(name string) (DetectorConfig, bool) {
	cfg, ok := Presets[name]
	if !ok {
		return DetectorConfig{}, false
	}
	layers := make([]LayerConfig, len(cfg.Layers))
	copy(layers, cfg.Layers)
	cfg.Layers = layers
	return cfg, true
}

// ListPresets returns the preset names, sorted.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
