package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hubspoke/internal/config"
	"github.com/ShayCichocki/hubspoke/internal/state"
	"github.com/ShayCichocki/hubspoke/internal/tui"
)

var (
	runsDBPath string
	runsStatus string
	runsPurge  time.Duration
	runsDelete bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Show recorded runs",
	Long: `List runs recorded in the ledger, newest first.

With a run id, shows the placement and outcome of every rank of that run.
With a run id and --delete, removes that run and its rank records.
With --purge, deletes runs started before the given age.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsDBPath, "db", "", "Ledger database path")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "Only list runs with this status (running, completed, failed, interrupted)")
	runsCmd.Flags().DurationVar(&runsPurge, "purge", 0, "Delete runs older than this")
	runsCmd.Flags().BoolVar(&runsDelete, "delete", false, "Delete the given run")
}

func runRuns(cmd *cobra.Command, args []string) error {
	dbPath := runsDBPath
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dbPath = cfg.State.DBPath
	}
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded. Run 'hubspoke run <spec.yaml>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	out := cmd.OutOrStdout()

	if runsPurge > 0 {
		n, err := db.PurgeOldRuns(runsPurge)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Purged %d runs\n", n)
		return nil
	}

	if runsDelete {
		if len(args) != 1 {
			return fmt.Errorf("--delete needs a run id")
		}
		if err := db.DeleteRun(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", args[0])
		return nil
	}

	if len(args) == 1 {
		run, err := db.GetRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		displayRun(cmd, run)
		recs, err := db.ListRanks(run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, tui.RenderRanks(recs))
		return nil
	}

	var filter *state.RunStatus
	if runsStatus != "" {
		st := state.RunStatus(runsStatus)
		filter = &st
	}
	runs, err := db.ListRuns(filter)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	fmt.Fprintln(out, tui.RenderRuns(runs))
	return nil
}

func displayRun(cmd *cobra.Command, run *state.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Spec:     %s\n", run.SpecPath)
	fmt.Fprintf(out, "World:    %d ranks, %d spokes per cylinder\n", run.WorldSize, run.SpokeCount)
	fmt.Fprintf(out, "Status:   %s\n", run.Status)
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", run.Error)
	}
}
