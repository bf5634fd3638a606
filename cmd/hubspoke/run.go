package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hubspoke/internal/config"
	"github.com/ShayCichocki/hubspoke/internal/orchestrator"
	"github.com/ShayCichocki/hubspoke/internal/scentree"
	"github.com/ShayCichocki/hubspoke/internal/spcomm"
	"github.com/ShayCichocki/hubspoke/internal/state"
	"github.com/ShayCichocki/hubspoke/internal/topology"
	"github.com/ShayCichocki/hubspoke/internal/tui"
)

var (
	runNP       int
	runDBPath   string
	runTUI      bool
	runNoLedger bool
	runDebugLog string
	runQuiet    bool
	runTimeout  time.Duration
	runStopFile string
)

var runCmd = &cobra.Command{
	Use:   "run [spec.yaml]",
	Short: "Run a hub/spoke workload",
	Long: `Run the hub and spokes described by a run-spec file on an in-process
world of ranks.

The world size comes from --np, then the run spec's world_size, then
run.world_size in the config. With none of those set, one cylinder is
launched. The world size must be a multiple of the number of spokes plus one.

A tree section sets branching_factors and num_scens for every engine, and
the tree's split over one role group is recorded with the run.

Example spec:

  world_size: 6
  hub:
    hub_class: convergence_hub
    hub_kwargs: {max_iterations: 20, rel_gap: 0.001}
    opt_class: scenario_mean
    opt_kwargs: {num_scens: 12}
  spokes:
    - spoke_class: bound_spoke
      opt_class: scenario_mean
      opt_kwargs: {num_scens: 12}
  tree:
    branching_factors: [3, 4]`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkload,
}

func init() {
	runCmd.Flags().IntVarP(&runNP, "np", "n", 0, "Number of ranks (overrides the run spec and config)")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "Ledger database path")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live rank monitor")
	runCmd.Flags().BoolVar(&runNoLedger, "no-ledger", false, "Do not record the run")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "Append per-rank debug output to this file")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress progress markers")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
	runCmd.Flags().StringVar(&runStopFile, "stop-file", "", "Abort the run when this file is created or written")
}

func runWorkload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	specPath := cfg.Run.SpecFile
	if len(args) == 1 {
		specPath = args[0]
	}
	if specPath == "" {
		return errors.New("no run spec given; pass a path or set run.spec_file")
	}
	spec, err := config.LoadRunSpec(specPath)
	if err != nil {
		return err
	}

	npFlag := 0
	if cmd.Flags().Changed("np") {
		npFlag = runNP
	}
	size := resolveWorldSize(npFlag, spec.WorldSize, cfg.Run.WorldSize, len(spec.Spokes))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	timeout := cfg.Run.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout = runTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if runStopFile != "" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		stopWatch, err := watchStopFile(ctx, runStopFile, cancel)
		if err != nil {
			return err
		}
		defer stopWatch()
	}

	logPath := cfg.Logging.DebugLog
	if runDebugLog != "" {
		logPath = runDebugLog
	}
	logger, err := orchestrator.NewDebugLogger(logPath)
	if err != nil {
		return err
	}
	defer logger.Close()

	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}

	var ledger *state.DB
	runID := uuid.New().String()
	if !runNoLedger && !cfg.State.Disabled {
		dbPath := cfg.State.DBPath
		if runDBPath != "" {
			dbPath = runDBPath
		}
		ledger, err = openLedger(dbPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		if err := ledger.CreateRun(&state.Run{
			ID:         runID,
			SpecPath:   specPath,
			WorldSize:  size,
			SpokeCount: len(spec.Spokes),
			StartedAt:  time.Now(),
		}); err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithLedger(ledger, runID))
	}

	// The assignment is only meaningful for a world that splits; otherwise
	// Launch reports the topology error.
	if spec.Tree != nil && topology.Validate(size, len(spec.Spokes)) == nil {
		a, err := assignTree(spec.Tree, size/(len(spec.Spokes)+1))
		if err != nil {
			finishLedger(ledger, runID, err)
			return err
		}
		if ledger != nil {
			if err := ledger.SaveAssignment(runID, a.Ranks); err != nil {
				finishLedger(ledger, runID, err)
				return err
			}
		}
	}

	quiet := runQuiet || cfg.Logging.Quiet
	var results []*orchestrator.Result
	if runTUI {
		results, err = launchWithMonitor(ctx, size, spec, opts)
	} else {
		if !quiet {
			opts = append(opts, orchestrator.WithProgress(func(msg string) {
				printStatus("▸", msg, color.FgCyan)
			}))
		}
		results, err = orchestrator.Launch(ctx, size, spec.Hub, spec.Spokes, opts...)
	}

	finishLedger(ledger, runID, err)
	if err != nil {
		printStatus("✗", fmt.Sprintf("Run failed: %v", err), color.FgRed)
		return err
	}

	printSummary(cmd.OutOrStdout(), results)
	if ledger != nil {
		printStatus("✓", fmt.Sprintf("Recorded run %s in %s", runID, ledger.Path()), color.FgGreen)
	}
	return nil
}

// resolveWorldSize picks the first positive of the flag, spec and config
// sizes, falling back to a single cylinder.
func resolveWorldSize(flag, spec, cfg, spokes int) int {
	for _, n := range []int{flag, spec, cfg} {
		if n > 0 {
			return n
		}
	}
	return spokes + 1
}

// openLedger opens and migrates the ledger at path, or the default
// location when path is empty. Runs left "running" by a crashed process
// are marked interrupted.
func openLedger(path string) (*state.DB, error) {
	var (
		db  *state.DB
		err error
	)
	if path == "" {
		db, err = state.OpenDefault()
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
	} else {
		db, err = state.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate ledger: %w", err)
		}
	}
	if _, err := db.MarkInterrupted(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func finishLedger(db *state.DB, runID string, runErr error) {
	if db == nil {
		return
	}
	if errors.Is(runErr, context.Canceled) {
		if err := db.UpdateRunStatus(runID, state.RunInterrupted, runErr.Error()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		return
	}
	if err := db.FinishRun(runID, runErr); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// assignTree builds the run spec's scenario tree and partitions it across
// the ranks of one role group, the split every engine computes for itself.
func assignTree(ts *config.TreeSpec, roleSize int) (*scentree.Assignment, error) {
	tree, err := scentree.BuildTree(ts.BranchingFactors, ts.Names())
	if err != nil {
		return nil, err
	}
	return scentree.AssignRanks(tree, roleSize, 0)
}

// launchWithMonitor runs the world while a bubbletea program renders its
// events. Closing the monitor early cancels the run.
func launchWithMonitor(ctx context.Context, size int, spec *config.RunSpec, opts []orchestrator.Option) ([]*orchestrator.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	emitter := orchestrator.NewEventEmitter(256)
	program, _ := tui.NewRunProgram(size)
	opts = append(opts, orchestrator.WithEvents(emitter))

	var (
		results []*orchestrator.Result
		runErr  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		results, runErr = orchestrator.Launch(ctx, size, spec.Hub, spec.Spokes, opts...)
		emitter.Close()
	}()
	go pumpEvents(program, emitter.Events(), done, &runErr)

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return results, fmt.Errorf("run monitor: %w", err)
	}
	cancel()
	<-done
	if n := emitter.DroppedCount(); n > 0 {
		printStatus("⚠", fmt.Sprintf("Monitor dropped %d events", n), color.FgYellow)
	}
	return results, runErr
}

// pumpEvents forwards events to the program until the emitter is closed,
// then reports completion.
func pumpEvents(p *tea.Program, events <-chan orchestrator.Event, done <-chan struct{}, runErr *error) {
	for ev := range events {
		p.Send(tui.EventMsg{Event: ev})
	}
	<-done
	p.Send(tui.DoneMsg{Err: *runErr})
}

// printSummary prints each hub's final bounds.
func printSummary(w io.Writer, results []*orchestrator.Result) {
	for _, res := range results {
		if res == nil || !res.Role.IsHub() {
			continue
		}
		rep, ok := res.SPComm.(spcomm.Reporter)
		if !ok {
			continue
		}
		r := rep.Report()
		status := "stopped at iteration limit"
		if r.Converged {
			status = "converged"
		}
		fmt.Fprintf(w, "replica %d: %s after %d iterations, outer=%s inner=%s\n",
			res.Topology.Replica, status, r.Iterations, formatBound(r.Outer), formatBound(r.Inner))
	}
}

func formatBound(v float64) string {
	if math.IsInf(v, 0) {
		if v > 0 {
			return "+inf"
		}
		return "-inf"
	}
	return fmt.Sprintf("%.6g", v)
}
