package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "genomicarray",
	Short: "genomicarray - condition-indexed coverage arrays over a genome",
	Long: `genomicarray stores per-position values for every chromosome of a genome,
one column per condition and optionally per strand.

This tool provides commands for cutting regions into bins, building cached
arrays from bedGraph tracks, and querying or serving a built array.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(binsCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("genomicarray-go version 0.1.0")
		fmt.Println("Cached genomic arrays on local disk or S3")
	},
}
