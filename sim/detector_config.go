package sim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LayerConfig is the reproducible description of one layer.
type LayerConfig struct {
	Material    string      `json:"material" yaml:"material"`
	Thickness   float64     `json:"thickness" yaml:"thickness"` // cm
	Sensitivity Sensitivity `json:"sensitivity" yaml:"sensitivity"`
}

// DetectorConfig is a named, ordered list of layers. On disk it is a
// single-entry mapping from the name to the layer list.
type DetectorConfig struct {
	Name   string
	Layers []LayerConfig
}

// Materials returns the distinct materials referenced, in stack order.
func (c DetectorConfig) Materials() []string {
	seen := make(map[string]bool, len(c.Layers))
	var out []string
	for _, l := range c.Layers {
		if !seen[l.Material] {
			seen[l.Material] = true
			out = append(out, l.Material)
		}
	}
	return out
}

// Format selects the configuration file encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the encoding from a file extension; anything other than
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode writes c to w.
func (c DetectorConfig) Encode(w io.Writer, f Format) error {
	if c.Name == "" {
		return fmt.Errorf("encoding detector config: detector has no name")
	}
	layers := c.Layers
	if layers == nil {
		layers = []LayerConfig{}
	}
	doc := map[string][]LayerConfig{c.Name: layers}

	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding detector config: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding detector config: %w", err)
		}
		return nil
	}
}

// layerDoc is a LayerConfig as written on disk. Thickness is a pointer so a
// missing key is told apart from an explicit 0.
type layerDoc struct {
	Material    string      `json:"material" yaml:"material"`
	Thickness   *float64    `json:"thickness" yaml:"thickness"`
	Sensitivity Sensitivity `json:"sensitivity" yaml:"sensitivity"`
}

var layerKeys = map[string]bool{"material": true, "thickness": true, "sensitivity": true}

// UnmarshalJSON matches keys exactly; encoding/json alone would accept
// "Material" or "THICKNESS".
func (l *layerDoc) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for k := range fields {
		if !layerKeys[k] {
			return fmt.Errorf("json: unknown field %q", k)
		}
	}
	type plain layerDoc
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = layerDoc(p)
	return nil
}

// DecodeConfig reads a configuration from r. Unknown fields and layers
// without a material or thickness are errors.
func DecodeConfig(r io.Reader, f Format) (DetectorConfig, error) {
	var doc map[string][]layerDoc
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return DetectorConfig{}, fmt.Errorf("parsing detector config: %w", err)
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return DetectorConfig{}, fmt.Errorf("parsing detector config: %w", err)
		}
	}

	if len(doc) != 1 {
		return DetectorConfig{}, fmt.Errorf("parsing detector config: expected exactly one detector, found %d", len(doc))
	}
	var cfg DetectorConfig
	for name, layers := range doc {
		cfg = DetectorConfig{Name: name, Layers: make([]LayerConfig, len(layers))}
		for i, l := range layers {
			if l.Material == "" {
				return DetectorConfig{}, fmt.Errorf("parsing detector config: layer %d has no material", i)
			}
			if l.Thickness == nil {
				return DetectorConfig{}, fmt.Errorf("parsing detector config: %w: layer %d (%s) has no thickness",
					ErrInvalidThickness, i, l.Material)
			}
			cfg.Layers[i] = LayerConfig{Material: l.Material, Thickness: *l.Thickness, Sensitivity: l.Sensitivity}
		}
	}
	return cfg, nil
}

// ReadConfig reads the configuration file at path.
func ReadConfig(path string) (DetectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DetectorConfig{}, fmt.Errorf("reading detector config: %w", err)
	}
	return DecodeConfig(bytes.NewReader(data), FormatFor(path))
}

// WriteConfig writes c to path, choosing the encoding from the extension.
func WriteConfig(path string, c DetectorConfig) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf, FormatFor(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing detector config: %w", err)
	}
	return nil
}
