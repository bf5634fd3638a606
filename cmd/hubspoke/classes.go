package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hubspoke/internal/engine"
	"github.com/ShayCichocki/hubspoke/internal/spcomm"
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List the hub, spoke and engine selectors",
	Long: `List the values accepted for hub_class, spoke_class and opt_class in
a run spec.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		hubs, spokes := spcomm.DefaultRegistry().Names()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "hub_class:   %s\n", strings.Join(hubs, ", "))
		fmt.Fprintf(out, "spoke_class: %s\n", strings.Join(spokes, ", "))
		fmt.Fprintf(out, "opt_class:   %s\n", strings.Join(engine.DefaultRegistry().Names(), ", "))
	},
}
