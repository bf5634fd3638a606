package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hubspoke/internal/topology"
	"github.com/ShayCichocki/hubspoke/internal/tui"
)

var (
	topoNP     int
	topoSpokes int
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Show where each rank lands",
	Long: `Print the cylinder and role-group placement of every rank for a world
of --np ranks running --spokes spokes per cylinder. Nothing is launched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		placements, err := topology.Layout(topoNP, topoSpokes)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d ranks, %d cylinders of %d\n", topoNP, topoNP/(topoSpokes+1), topoSpokes+1)
		fmt.Fprintln(out, tui.RenderLayout(placements))
		return nil
	},
}

func init() {
	topologyCmd.Flags().IntVarP(&topoNP, "np", "n", 1, "Number of ranks")
	topologyCmd.Flags().IntVarP(&topoSpokes, "spokes", "s", 0, "Spokes per cylinder")
}
