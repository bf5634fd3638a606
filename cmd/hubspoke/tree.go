package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hubspoke/internal/config"
	"github.com/ShayCichocki/hubspoke/internal/scentree"
	"github.com/ShayCichocki/hubspoke/internal/tui"
)

var (
	treeBFs    []int
	treeRanks  int
	treePrefix string
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Partition a scenario tree across ranks",
	Long: `Build the scenario tree described by --bf and show how its scenarios
are spread over --ranks ranks. Every node's scenarios land on a contiguous
range of ranks.

Example:
  hubspoke tree --bf 3,4 --ranks 6`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ts := &config.TreeSpec{BranchingFactors: treeBFs, ScenarioPrefix: treePrefix}
		tree, err := scentree.BuildTree(ts.BranchingFactors, ts.Names())
		if err != nil {
			return err
		}
		a, err := scentree.AssignRanks(tree, treeRanks, 0)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d stages, %d scenarios, %d ranks\n", tree.NumStages(), tree.NumScens(), treeRanks)
		fmt.Fprintln(out, tui.RenderAssignment(tree, a, treeRanks))
		return nil
	},
}

func init() {
	treeCmd.Flags().IntSliceVar(&treeBFs, "bf", nil, "Branching factors, one per non-leaf stage")
	treeCmd.Flags().IntVarP(&treeRanks, "ranks", "r", 1, "Number of ranks")
	treeCmd.Flags().StringVar(&treePrefix, "prefix", "", "Scenario name prefix (default \"ID\")")
	_ = treeCmd.MarkFlagRequired("bf")
}
