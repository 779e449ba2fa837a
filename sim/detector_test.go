package sim

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qesim/qesim/sim/internal/testutil"
	"github.com/qesim/qesim/sim/material"
)

// testMaterials returns a uniform 1 cm⁻¹ material "A" and an
// energy-dependent material "B" falling from 3 to 0.3 cm⁻¹ over 1..10 keV.
func testMaterials() Materials {
	return Materials{
		"A": testutil.UniformCurve(1.0, 0.5, 20),
		"B": material.Curve{{Energy: 1, Attenuation: 3}, {Energy: 10, Attenuation: 0.3}},
	}
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector("test", mustGrid(t, 1, 2, 5, 10), testMaterials())
	require.NoError(t, err)
	return d
}

func TestNewDetector_RequiresGrid(t *testing.T) {
	_, err := NewDetector("x", EnergyGrid{}, testMaterials())
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestNewDetector_ResamplesMaterials(t *testing.T) {
	d := newTestDetector(t)
	mc, err := d.Material("B")
	require.NoError(t, err)
	testutil.AssertSlicesClose(t, "B", []float64{3, 2.7, 1.8, 0.3}, mc.Coefficients(), 1e-12)
	assert.True(t, mc.Grid().Equal(d.Grid()))
}

func TestDetector_SingleUniformLayerScenario(t *testing.T) {
	// GIVEN grid [1, 2, 5, 10] keV and a 1 cm slab of a 1 cm⁻¹ material that detects everything
	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("A", 1, Constant(1)))

	// WHEN computing QE
	qe, err := d.QE()
	require.NoError(t, err)

	// THEN QE = 1 − e⁻¹ at every energy
	assert.Equal(t, []float64{1, 2, 5, 10}, qe.Energy)
	for i, v := range qe.Detected {
		assert.InDelta(t, 1-math.Exp(-1), v, 1e-12, "energy index %d", i)
	}
}

func TestDetector_TwoZeroThicknessLayersDetectNothing(t *testing.T) {
	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("A", 0, Constant(1)))
	require.NoError(t, d.NewLayer("B", 0, Constant(1)))

	qe, err := d.QE()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, qe.Detected)
}

func TestDetector_QEIsCachedAndIdempotent(t *testing.T) {
	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("B", 0.2, Constant(0.8)))

	first, err := d.QE()
	require.NoError(t, err)
	cached := d.qe

	second, err := d.QE()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Same(t, cached, d.qe, "second call must hit the cache")

	// callers cannot corrupt the cache through the returned slices
	second.Detected[0] = -1
	third, err := d.QE()
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestDetector_MutationsInvalidateCache(t *testing.T) {
	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("A", 0.5, Constant(1)))
	extra, err := d.BuildLayer("B", 0.1, Constant(1))
	require.NoError(t, err)

	mutations := []struct {
		name   string
		mutate func() error
	}{
		{"add", func() error { return d.AddLayer(extra) }},
		{"insert", func() error { return d.InsertLayer(0, extra) }},
		{"replace", func() error { return d.ReplaceLayer(0, extra) }},
		{"remove", func() error { return d.RemoveLayer(d.NumLayers() - 1) }},
		{"thickness", func() error { return d.ChangeThickness(0, 0.3) }},
		{"new layer", func() error { return d.NewLayer("A", 0.1, Sensitivity{}) }},
		{"apply", func() error { return d.Apply(d.Config()) }},
	}
	for _, m := range mutations {
		_, err := d.CalculateQE()
		require.NoError(t, err, m.name)
		require.NotNil(t, d.qe)

		require.NoError(t, m.mutate(), m.name)
		assert.Nil(t, d.qe, "%s must invalidate the cached QE", m.name)
	}
}

func TestDetector_OrderSensitivity(t *testing.T) {
	// GIVEN a dead layer A and a fully sensitive layer B
	build := func(order ...string) QE {
		d := newTestDetector(t)
		for _, m := range order {
			s := Sensitivity{}
			if m == "B" {
				s = Constant(1)
			}
			require.NoError(t, d.NewLayer(m, 0.5, s))
		}
		qe, err := d.QE()
		require.NoError(t, err)
		return qe
	}

	aFirst := build("A", "B")
	bFirst := build("B", "A")

	// THEN putting the dead layer in front wastes flux at every energy
	for i := range aFirst.Detected {
		assert.Less(t, aFirst.Detected[i], bFirst.Detected[i], "energy index %d", i)
	}
}

func TestDetector_ChangeThicknessToZeroEqualsRemoval(t *testing.T) {
	stack := func(d *Detector, skipMiddle bool) {
		require.NoError(t, d.NewLayer("A", 0.05, Sensitivity{}))
		if !skipMiddle {
			require.NoError(t, d.NewLayer("B", 0.2, Constant(0.3)))
		}
		require.NoError(t, d.NewLayer("B", 1.5, Func(Unity)))
	}

	disabled := newTestDetector(t)
	stack(disabled, false)
	require.NoError(t, disabled.ChangeThickness(1, 0))
	got, err := disabled.QE()
	require.NoError(t, err)

	removed := newTestDetector(t)
	stack(removed, true)
	want, err := removed.QE()
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestDetector_ChangeThicknessKeepsMaterialAndSensitivity(t *testing.T) {
	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("B", 0.2, Values([]float64{0.1, 0.2, 0.3, 0.4})))
	require.NoError(t, d.ChangeThickness(0, 0.7))

	l, err := d.Layer(0)
	require.NoError(t, err)
	assert.Equal(t, "B", l.Material())
	assert.Equal(t, 0.7, l.Thickness())
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, l.Sensitivity())

	assert.ErrorIs(t, d.ChangeThickness(0, -1), ErrInvalidThickness)
	l, err = d.Layer(0)
	require.NoError(t, err)
	assert.Equal(t, 0.7, l.Thickness(), "failed change must leave the layer alone")
}

func TestDetector_InsertReplaceRemove(t *testing.T) {
	d := newTestDetector(t)
	a, err := d.BuildLayer("A", 0.1, Sensitivity{})
	require.NoError(t, err)
	b, err := d.BuildLayer("B", 0.2, Constant(1))
	require.NoError(t, err)
	c, err := d.BuildLayer("B", 0.3, Constant(0.5))
	require.NoError(t, err)

	require.NoError(t, d.AddLayers(a, c))
	require.NoError(t, d.InsertLayer(1, b))
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, thicknesses(d))

	require.NoError(t, d.InsertLayer(3, a))
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.1}, thicknesses(d))

	require.NoError(t, d.ReplaceLayer(0, c))
	assert.Equal(t, []float64{0.3, 0.2, 0.3, 0.1}, thicknesses(d))

	require.NoError(t, d.RemoveLayer(1))
	assert.Equal(t, []float64{0.3, 0.3, 0.1}, thicknesses(d))
}

func thicknesses(d *Detector) []float64 {
	var out []float64
	for _, l := range d.Layers() {
		out = append(out, l.Thickness())
	}
	return out
}

func TestDetector_IndexErrors(t *testing.T) {
	d := newTestDetector(t)
	l, err := d.BuildLayer("A", 0.1, Sensitivity{})
	require.NoError(t, err)
	require.NoError(t, d.AddLayer(l))

	assert.ErrorIs(t, d.ReplaceLayer(1, l), ErrLayerIndex)
	assert.ErrorIs(t, d.ReplaceLayer(-1, l), ErrLayerIndex)
	assert.ErrorIs(t, d.RemoveLayer(1), ErrLayerIndex)
	assert.ErrorIs(t, d.InsertLayer(2, l), ErrLayerIndex)
	assert.ErrorIs(t, d.ChangeThickness(3, 1), ErrLayerIndex)
	_, err = d.Layer(1)
	assert.ErrorIs(t, err, ErrLayerIndex)
	assert.Equal(t, 1, d.NumLayers())
}

func TestDetector_UnknownMaterial(t *testing.T) {
	d := newTestDetector(t)
	err := d.NewLayer("Unobtainium", 1, Constant(1))
	assert.ErrorIs(t, err, ErrUnknownMaterial)
	assert.Equal(t, 0, d.NumLayers())
}

func TestDetector_GridMismatch(t *testing.T) {
	// GIVEN a layer built by a detector on another grid
	other, err := NewDetector("other", mustGrid(t, 1, 2, 5, 20), testMaterials())
	require.NoError(t, err)
	foreign, err := other.BuildLayer("A", 1, Constant(1))
	require.NoError(t, err)

	d := newTestDetector(t)
	native, err := d.BuildLayer("A", 1, Constant(1))
	require.NoError(t, err)

	// THEN no path accepts it
	assert.ErrorIs(t, d.AddLayer(foreign), ErrGridMismatch)
	assert.ErrorIs(t, d.AddLayers(native, foreign), ErrGridMismatch)
	assert.Equal(t, 0, d.NumLayers(), "a rejected batch adds nothing")

	require.NoError(t, d.AddLayer(native))
	assert.ErrorIs(t, d.InsertLayer(0, foreign), ErrGridMismatch)
	assert.ErrorIs(t, d.ReplaceLayer(0, foreign), ErrGridMismatch)
	assert.ErrorIs(t, d.AddLayer(Layer{}), ErrGridMismatch)
}

func TestDetector_EmptyHasNoQE(t *testing.T) {
	d := newTestDetector(t)
	_, err := d.QE()
	assert.ErrorIs(t, err, ErrEmptyDetector)
	_, err = d.CalculateQE()
	assert.ErrorIs(t, err, ErrEmptyDetector)

	// a fresh beam passes through an empty stack untouched
	b, err := d.Transmit()
	require.NoError(t, err)
	assert.Equal(t, NewBeam(d.Grid()), b)
}

func TestDetector_TransmitReportsOffGridLayer(t *testing.T) {
	// GIVEN a stack holding a layer built on another grid
	other, err := NewDetector("other", mustGrid(t, 1, 2), testMaterials())
	require.NoError(t, err)
	foreign, err := other.BuildLayer("A", 1, Constant(1))
	require.NoError(t, err)

	d := newTestDetector(t)
	d.layers = append(d.layers, foreign)

	// THEN transmission and QE fail with an error instead of panicking
	_, err = d.Transmit()
	assert.ErrorIs(t, err, ErrGridMismatch)
	_, err = d.QE()
	assert.ErrorIs(t, err, ErrGridMismatch)
	assert.Nil(t, d.qe)
}

func TestDetector_TransmitBeam(t *testing.T) {
	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("A", 1, Constant(1)))

	// GIVEN a beam already half attenuated
	in := NewBeam(d.Grid())
	for i := range in.Incident {
		in.Incident[i] = 0.5
	}
	out, err := d.TransmitBeam(in)
	require.NoError(t, err)
	for i := range out.Detected {
		assert.InDelta(t, 0.5*(1-math.Exp(-1)), out.Detected[i], 1e-12)
		assert.InDelta(t, 0.5*math.Exp(-1), out.Incident[i], 1e-12)
	}
	assert.Equal(t, 0.5, in.Incident[0])

	_, err = d.TransmitBeam(NewBeam(mustGrid(t, 1)))
	assert.ErrorIs(t, err, ErrGridMismatch)
}

func TestDetector_Reset(t *testing.T) {
	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("A", 1, Constant(1)))
	_, err := d.QE()
	require.NoError(t, err)

	d.Reset()
	assert.Equal(t, "", d.Name())
	assert.Equal(t, 0, d.NumLayers())
	assert.Nil(t, d.qe)

	// materials survive a reset
	require.NoError(t, d.NewLayer("B", 1, Constant(1)))
}

func TestDetector_SaveLoadRoundTrip(t *testing.T) {
	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			// GIVEN a detector mixing every serializable sensitivity
			d := newTestDetector(t)
			require.NoError(t, d.NewLayer("A", Microns(0.09), Sensitivity{}))
			require.NoError(t, d.NewLayer("B", 0.013, Constant(0.7)))
			require.NoError(t, d.NewLayer("B", 0.35, Values([]float64{1, 0.95, 0.9, 0.85})))
			want, err := d.QE()
			require.NoError(t, err)

			// WHEN saved and loaded into another detector on the same grid
			path := filepath.Join(t.TempDir(), "det"+ext)
			require.NoError(t, d.Save(path))

			loaded := newTestDetector(t)
			require.NoError(t, loaded.NewLayer("A", 5, Constant(1))) // replaced by Load
			require.NoError(t, loaded.Load(path))

			// THEN the configuration and the QE match
			assert.Equal(t, "test", loaded.Name())
			assert.Equal(t, d.Config(), loaded.Config())
			got, err := loaded.QE()
			require.NoError(t, err)
			testutil.AssertSlicesClose(t, "qe", want.Detected, got.Detected, 1e-9)
		})
	}
}

func TestDetector_SaveDefaultsToNameJSON(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("A", 1, Constant(1)))
	require.NoError(t, d.Save(""))

	cfg, err := ReadConfig("test.json")
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Name)
	require.Len(t, cfg.Layers, 1)
}

func TestDetector_SaveFunctionSensitivityAsArray(t *testing.T) {
	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("A", 1, Func(Unity)))
	path := filepath.Join(t.TempDir(), "det.json")
	require.NoError(t, d.Save(path))

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Values([]float64{1, 1, 1, 1}), cfg.Layers[0].Sensitivity)
}

func TestDetector_FailedLoadKeepsState(t *testing.T) {
	d := newTestDetector(t)
	require.NoError(t, d.NewLayer("A", 1, Constant(1)))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, WriteConfig(path, DetectorConfig{
		Name:   "bad",
		Layers: []LayerConfig{{Material: "A", Thickness: 1}, {Material: "Nope", Thickness: 1}},
	}))

	err := d.Load(path)
	assert.ErrorIs(t, err, ErrUnknownMaterial)
	assert.Equal(t, "test", d.Name())
	assert.Equal(t, 1, d.NumLayers())
}

func TestDetector_LoadArrayOfWrongLengthFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "det.json")
	require.NoError(t, WriteConfig(path, DetectorConfig{
		Name:   "short",
		Layers: []LayerConfig{{Material: "A", Thickness: 1, Sensitivity: Values([]float64{1, 1})}},
	}))

	d := newTestDetector(t)
	assert.ErrorIs(t, d.Load(path), ErrInvalidSensitivitySpec)
}

func TestNewDetectorFromConfig(t *testing.T) {
	cfg := DetectorConfig{
		Name: "cfg",
		Layers: []LayerConfig{
			{Material: "A", Thickness: 0.1},
			{Material: "B", Thickness: 1, Sensitivity: Constant(1)},
		},
	}
	d, err := NewDetectorFromConfig(cfg, mustGrid(t, 1, 2, 5, 10), testMaterials())
	require.NoError(t, err)
	assert.Equal(t, "cfg", d.Name())
	assert.Equal(t, 2, d.NumLayers())

	_, err = NewDetectorFromConfig(DetectorConfig{Name: "x", Layers: []LayerConfig{{Material: "A", Thickness: -1}}},
		mustGrid(t, 1, 2), testMaterials())
	assert.ErrorIs(t, err, ErrInvalidThickness)
}

func TestQE_WriteTable(t *testing.T) {
	var sb strings.Builder
	q := QE{Energy: []float64{1, 2}, Detected: []float64{0.5, 0.25}}
	require.NoError(t, q.WriteTable(&sb))
	assert.Equal(t,
		"1.000000000000000000e+00 5.000000000000000000e-01\n2.000000000000000000e+00 2.500000000000000000e-01\n",
		sb.String())

	assert.Error(t, QE{Energy: []float64{1}}.WriteTable(&sb))
}
