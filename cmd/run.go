package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qesim/qesim/sim"
)

// runOptions carries the `run` flags.
type runOptions struct {
	detector   string  // Detector configuration file (.json, .yaml)
	preset     string  // Built-in detector preset
	materials  string  // Materials file with densities
	output     string  // QE table destination; empty or "-" for stdout
	save       string  // Where to write the configuration that was run
	plot       bool    // Draw the QE curve in the terminal
	zeroLayers []int   // Layers disabled by setting their thickness to 0
	emin       float64 // Lowest grid energy (keV)
	emax       float64 // Highest grid energy (keV)
	points     int     // Number of grid points
}

var runOpts runOptions

// runCmd computes QE for one detector
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute the quantum efficiency of a detector stack",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQE(cmd.Context(), runOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// runQE builds the detector described by opts, computes its QE, and writes
// the table to opts.output (or stdout) and the optional plot to plotOut.
func runQE(ctx context.Context, opts runOptions, stdout, plotOut io.Writer) error {
	startTime := time.Now()

	cfg, err := detectorConfig(opts)
	if err != nil {
		return err
	}
	grid, err := sim.GeomGrid(opts.emin, opts.emax, opts.points)
	if err != nil {
		return err
	}
	table, err := loadDensities(opts.materials)
	if err != nil {
		return err
	}
	densities, err := sim.Densities(cfg.Materials(), table)
	if err != nil {
		return err
	}
	mats, err := sim.LoadMaterials(ctx, newStore(), densities)
	if err != nil {
		return err
	}

	d, err := sim.NewDetectorFromConfig(cfg, grid, mats)
	if err != nil {
		return err
	}
	for _, i := range opts.zeroLayers {
		if err := d.ChangeThickness(i, 0); err != nil {
			return fmt.Errorf("--zero-layer: %w", err)
		}
		logrus.Infof("disabled layer %d of %q", i, d.Name())
	}

	qe, err := d.QE()
	if err != nil {
		return err
	}
	if err := writeQE(qe, opts.output, stdout); err != nil {
		return err
	}
	if opts.save != "" {
		if err := d.Save(opts.save); err != nil {
			return err
		}
		logrus.Infof("saved detector %q to %s", d.Name(), opts.save)
	}
	if opts.plot {
		fmt.Fprintln(plotOut, plotQE(d.Name(), qe))
	}

	logrus.Infof("computed QE of %q (%d layers, %d energies) in %s",
		d.Name(), d.NumLayers(), grid.Len(), time.Since(startTime))
	return nil
}

// detectorConfig picks the stack to run: a file, a preset, or the standard
// preset when neither is given.
func detectorConfig(opts runOptions) (sim.DetectorConfig, error) {
	switch {
	case opts.detector != "" && opts.preset != "":
		return sim.DetectorConfig{}, fmt.Errorf("--detector and --preset are mutually exclusive")
	case opts.detector != "":
		return sim.ReadConfig(opts.detector)
	}
	name := opts.preset
	if name == "" {
		name = "standard"
	}
	cfg, ok := sim.GetPreset(name)
	if !ok {
		return sim.DetectorConfig{}, fmt.Errorf("unknown preset %q (have %v)", name, sim.ListPresets())
	}
	return cfg, nil
}

func writeQE(qe sim.QE, path string, stdout io.Writer) error {
	if path == "" || path == "-" {
		return qe.WriteTable(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing QE table: %w", err)
	}
	if err := qe.WriteTable(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing QE table %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing QE table %s: %w", path, err)
	}
	logrus.Infof("wrote %d QE points to %s", len(qe.Energy), path)
	return nil
}

// plotQE renders the curve against grid index; the grid is geometric, so
// the x axis is logarithmic in energy.
func plotQE(name string, qe sim.QE) string {
	caption := fmt.Sprintf("QE of %s, %.3g to %.3g keV (log scale)",
		name, qe.Energy[0], qe.Energy[len(qe.Energy)-1])
	return asciigraph.Plot(qe.Detected,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Precision(2),
		asciigraph.Caption(caption),
	)
}

func init() {
	runCmd.Flags().StringVar(&runOpts.detector, "detector", "", "Detector configuration file (.json, .yaml or .yml)")
	runCmd.Flags().StringVar(&runOpts.preset, "preset", "", "Built-in detector preset (default \"standard\" when no --detector)")
	runCmd.Flags().StringVar(&runOpts.materials, "materials", "", "YAML file of densities (materials: {formula: g/cm³}) overriding the defaults")
	runCmd.Flags().StringVar(&runOpts.output, "output", "", "QE table destination (default stdout)")
	runCmd.Flags().StringVar(&runOpts.save, "save", "", "Write the configuration that was run to this file")
	runCmd.Flags().BoolVar(&runOpts.plot, "plot", false, "Plot the QE curve to stderr")
	runCmd.Flags().IntSliceVar(&runOpts.zeroLayers, "zero-layer", nil, "Disable layer i by setting its thickness to 0 (repeatable)")

	// Energy grid
	runCmd.Flags().Float64Var(&runOpts.emin, "emin", 0.1, "Lowest energy (keV)")
	runCmd.Flags().Float64Var(&runOpts.emax, "emax", 100, "Highest energy (keV)")
	runCmd.Flags().IntVar(&runOpts.points, "points", 1000, "Number of geometrically spaced energies")

	rootCmd.AddCommand(runCmd)
}
