package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qesim/qesim/sim/material"
)

var (
	logLevel string // Log verbosity level
	cacheDir string // Directory holding per-formula attenuation tables
)

// newFetcher supplies the remote attenuation source. Tests swap it out.
var newFetcher = func() material.Fetcher { return material.NewFFAST() }

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "qesim",
	Short: "Quantum-efficiency simulator for layered X-ray detectors",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
	SilenceUsage: true,
}

// newStore opens the attenuation cache with the remote source attached.
func newStore() *material.Store {
	return material.NewStore(cacheDir, newFetcher())
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache", "qedata", "Directory caching attenuation tables")
}
