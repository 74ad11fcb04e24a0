package main

import (
	"github.com/spf13/cobra"

	// Module types available to configurations.
	_ "mercator-hq/callisto/pkg/modules/always"
	_ "mercator-hq/callisto/pkg/modules/sessions"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "callisto",
	Short: "Callisto - resumable policy interpreter",
	Long: `Callisto compiles HCL policies into instruction trees and runs requests
through them on a worker pool.

Requests that wait on I/O, such as session store writes, suspend and are
resumed when the work completes, so a slow backend never holds a worker.
Load-balance and redundant groups spread calls across module instances and
fail over between them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "callisto.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
