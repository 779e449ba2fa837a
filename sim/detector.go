package sim

import (
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/qesim/qesim/sim/internal/table"
)

// QE is a quantum-efficiency curve: the detected fraction of incident flux
// at each grid energy.
type QE struct {
	Energy   []float64
	Detected []float64
}

func (q QE) clone() QE {
	return QE{Energy: clone(q.Energy), Detected: clone(q.Detected)}
}

// WriteTable writes (energy, qe) rows as a two-column numeric table.
func (q QE) WriteTable(w io.Writer) error {
	rows, err := table.Zip(q.Energy, q.Detected)
	if err != nil {
		return err
	}
	return table.Write(w, rows)
}

// Detector is an ordered stack of layers on one energy grid. The beam
// enters at layer 0. The computed QE is cached until the stack changes.
// A Detector is not safe for concurrent use.
type Detector struct {
	name      string
	grid      EnergyGrid
	materials map[string]MaterialCurve
	layers    []Layer
	qe        *QE
}

// NewDetector resamples every material onto grid and returns an empty
// detector.
func NewDetector(name string, grid EnergyGrid, materials Materials) (*Detector, error) {
	if grid.Len() == 0 {
		return nil, fmt.Errorf("%w: detector %q needs an explicit energy grid", ErrInvalidGrid, name)
	}
	d := &Detector{
		name:      name,
		grid:      grid,
		materials: make(map[string]MaterialCurve, len(materials)),
	}
	for _, f := range materials.Formulas() {
		mc, err := ResampleMaterial(f, materials[f], grid)
		if err != nil {
			return nil, err
		}
		d.materials[f] = mc
	}
	logrus.Debugf("detector %q: %d materials on %d-point grid", name, len(d.materials), grid.Len())
	return d, nil
}

// NewDetectorFromConfig builds a detector and its layers from cfg.
func NewDetectorFromConfig(cfg DetectorConfig, grid EnergyGrid, materials Materials) (*Detector, error) {
	d, err := NewDetector(cfg.Name, grid, materials)
	if err != nil {
		return nil, err
	}
	if err := d.Apply(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Name returns the detector name.
func (d *Detector) Name() string { return d.name }

// Grid returns the detector's energy grid.
func (d *Detector) Grid() EnergyGrid { return d.grid }

// NumLayers returns the number of layers.
func (d *Detector) NumLayers() int { return len(d.layers) }

// Layers returns the stack, front first.
func (d *Detector) Layers() []Layer {
	out := make([]Layer, len(d.layers))
	copy(out, d.layers)
	return out
}

// Layer returns the layer at index i.
func (d *Detector) Layer(i int) (Layer, error) {
	if err := d.checkIndex(i, len(d.layers)-1); err != nil {
		return Layer{}, err
	}
	return d.layers[i], nil
}

// Material returns the detector's resampled curve for formula.
func (d *Detector) Material(formula string) (MaterialCurve, error) {
	mc, ok := d.materials[formula]
	if !ok {
		return MaterialCurve{}, fmt.Errorf("%w: %q (detector %q has %v)", ErrUnknownMaterial, formula, d.name, d.materialNames())
	}
	return mc, nil
}

// BuildLayer builds a layer of one of the detector's materials without
// adding it.
func (d *Detector) BuildLayer(material string, thickness float64, s Sensitivity) (Layer, error) {
	mc, err := d.Material(material)
	if err != nil {
		return Layer{}, err
	}
	return BuildLayer(mc, thickness, s)
}

// NewLayer builds a layer and appends it at the back of the stack.
func (d *Detector) NewLayer(material string, thickness float64, s Sensitivity) error {
	l, err := d.BuildLayer(material, thickness, s)
	if err != nil {
		return err
	}
	return d.AddLayer(l)
}

// AddLayer appends a prebuilt layer.
func (d *Detector) AddLayer(l Layer) error {
	return d.AddLayers(l)
}

// AddLayers appends layers in order. Nothing is added if any layer was
// built on a different grid.
func (d *Detector) AddLayers(ls ...Layer) error {
	for _, l := range ls {
		if err := d.checkGrid(l); err != nil {
			return err
		}
	}
	d.layers = append(d.layers, ls...)
	d.invalidate()
	return nil
}

// InsertLayer inserts l so that it ends up at index i.
func (d *Detector) InsertLayer(i int, l Layer) error {
	if err := d.checkIndex(i, len(d.layers)); err != nil {
		return err
	}
	if err := d.checkGrid(l); err != nil {
		return err
	}
	layers := make([]Layer, 0, len(d.layers)+1)
	layers = append(layers, d.layers[:i]...)
	layers = append(layers, l)
	layers = append(layers, d.layers[i:]...)
	d.layers = layers
	d.invalidate()
	return nil
}

// ReplaceLayer substitutes the layer at index i.
func (d *Detector) ReplaceLayer(i int, l Layer) error {
	if err := d.checkIndex(i, len(d.layers)-1); err != nil {
		return err
	}
	if err := d.checkGrid(l); err != nil {
		return err
	}
	d.layers[i] = l
	d.invalidate()
	return nil
}

// RemoveLayer deletes the layer at index i.
func (d *Detector) RemoveLayer(i int) error {
	if err := d.checkIndex(i, len(d.layers)-1); err != nil {
		return err
	}
	layers := make([]Layer, 0, len(d.layers)-1)
	layers = append(layers, d.layers[:i]...)
	layers = append(layers, d.layers[i+1:]...)
	d.layers = layers
	d.invalidate()
	return nil
}

// ChangeThickness rebuilds the layer at index i with a new thickness,
// keeping its material and resolved sensitivity. A thickness of 0 disables
// the layer.
func (d *Detector) ChangeThickness(i int, thickness float64) error {
	if err := d.checkIndex(i, len(d.layers)-1); err != nil {
		return err
	}
	old := d.layers[i]
	l, err := d.BuildLayer(old.material, thickness, Values(old.sensitivity))
	if err != nil {
		return err
	}
	return d.ReplaceLayer(i, l)
}

// Transmit runs a fresh beam through the stack.
func (d *Detector) Transmit() (Beam, error) {
	b, err := PropagateAll(NewBeam(d.grid), d.layers...)
	if err != nil {
		return Beam{}, fmt.Errorf("detector %q: %w", d.name, err)
	}
	return b, nil
}

// TransmitBeam runs b through the stack. b is not modified.
func (d *Detector) TransmitBeam(b Beam) (Beam, error) {
	return PropagateAll(b, d.layers...)
}

// CalculateQE propagates a fresh beam through every layer and caches the
// detected fraction.
func (d *Detector) CalculateQE() (QE, error) {
	if len(d.layers) == 0 {
		return QE{}, fmt.Errorf("%w: %q", ErrEmptyDetector, d.name)
	}
	b, err := d.Transmit()
	if err != nil {
		return QE{}, err
	}
	d.qe = &QE{Energy: d.grid.Values(), Detected: b.Detected}
	logrus.Debugf("detector %q: computed QE over %d layers", d.name, len(d.layers))
	return d.qe.clone(), nil
}

// QE returns the cached QE, computing it first if the stack changed since
// the last computation.
func (d *Detector) QE() (QE, error) {
	if d.qe == nil {
		return d.CalculateQE()
	}
	return d.qe.clone(), nil
}

// Reset removes the name, every layer and the cached QE. Materials and the
// grid are kept.
func (d *Detector) Reset() {
	d.name = ""
	d.layers = nil
	d.invalidate()
}

// Config returns the reproducible configuration of the stack.
func (d *Detector) Config() DetectorConfig {
	cfg := DetectorConfig{Name: d.name, Layers: make([]LayerConfig, len(d.layers))}
	for i, l := range d.layers {
		cfg.Layers[i] = l.Config()
	}
	return cfg
}

// Apply replaces the name and layers with those described by cfg. On error
// the detector is left unchanged.
func (d *Detector) Apply(cfg DetectorConfig) error {
	layers := make([]Layer, 0, len(cfg.Layers))
	for i, lc := range cfg.Layers {
		l, err := d.BuildLayer(lc.Material, lc.Thickness, lc.Sensitivity)
		if err != nil {
			return fmt.Errorf("detector %q layer %d: %w", cfg.Name, i, err)
		}
		layers = append(layers, l)
	}
	d.name = cfg.Name
	d.layers = layers
	d.invalidate()
	return nil
}

// Save writes the configuration to path, or to "<name>.json" when path is
// empty. Derived arrays are not stored.
func (d *Detector) Save(path string) error {
	if path == "" {
		path = d.name + ".json"
	}
	return WriteConfig(path, d.Config())
}

// Load replaces the detector's state with the configuration at path,
// rebuilding every layer against the detector's materials and grid.
func (d *Detector) Load(path string) error {
	cfg, err := ReadConfig(path)
	if err != nil {
		return err
	}
	return d.Apply(cfg)
}

func (d *Detector) invalidate() { d.qe = nil }

func (d *Detector) checkGrid(l Layer) error {
	if !l.grid.Equal(d.grid) {
		return fmt.Errorf("%w: layer %s has %d energies, detector %q has %d",
			ErrGridMismatch, l.material, l.grid.Len(), d.name, d.grid.Len())
	}
	return nil
}

func (d *Detector) checkIndex(i, max int) error {
	if i < 0 || i > max {
		return fmt.Errorf("%w: %d (detector %q has %d layers)", ErrLayerIndex, i, d.name, len(d.layers))
	}
	return nil
}

func (d *Detector) materialNames() []string {
	names := make([]string, 0, len(d.materials))
	for f := range d.materials {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}
