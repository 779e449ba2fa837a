package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qesim/qesim/sim"
)

// fetchCmd fills the cache ahead of an offline run
var fetchCmd = &cobra.Command{
	Use:   "fetch <formula>...",
	Short: "Download attenuation data for formulas into the cache",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newStore()
		for _, f := range args {
			c, err := store.Resolve(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d points\t%s\n", f, len(c), store.Path(f))
		}
		logrus.Infof("%d formulas cached in %s", len(args), store.Dir())
		return nil
	},
}

// materialsCmd lists what is available offline
var materialsCmd = &cobra.Command{
	Use:   "materials",
	Short: "List formulas in the cache with their default densities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formulas, err := newStore().Cached()
		if err != nil {
			return fmt.Errorf("listing cache %s: %w", cacheDir, err)
		}
		if len(formulas) == 0 {
			logrus.Warnf("no cached materials in %s", cacheDir)
		}
		for _, f := range formulas {
			density := "-"
			if rho, ok := sim.DefaultDensities[f]; ok {
				density = fmt.Sprintf("%g", rho)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f, density)
		}
		return nil
	},
}

// presetsCmd describes the built-in stacks
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List built-in detector presets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range sim.ListPresets() {
			cfg, _ := sim.GetPreset(name)
			layers := make([]string, len(cfg.Layers))
			for i, l := range cfg.Layers {
				layers[i] = fmt.Sprintf("%s %.4gµm", l.Material, l.Thickness*sim.MicronsPerCM)
				if l.Sensitivity.IsSet() {
					layers[i] += " (sensitive)"
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, strings.Join(layers, " | "))
		}
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(materialsCmd)
	rootCmd.AddCommand(presetsCmd)
}
