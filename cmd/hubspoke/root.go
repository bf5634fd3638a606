package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hubspoke",
	Short: "Hub/spoke SPMD orchestrator",
	Long: `hubspoke runs one hub and a set of spokes on every cylinder of a world
of ranks. Each cylinder shares bounds through a window; every rank playing
the same role across cylinders shares a role communicator.

Core capabilities:
- Splits a flat rank space into cylinders and role groups
- Drives every rank through the same setup, main and teardown phases
- Partitions multi-stage scenario trees across ranks
- Records runs and per-rank outcomes in a SQLite ledger`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(topologyCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(versionCmd)
}

// printStatus prints a colored status symbol followed by a message.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
