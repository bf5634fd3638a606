package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/hubspoke/internal/comm"
	"github.com/ShayCichocki/hubspoke/internal/spcomm"
	"github.com/ShayCichocki/hubspoke/internal/state"
	"github.com/ShayCichocki/hubspoke/internal/topology"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// Progress markers printed by global rank 0.
const (
	MarkerMainStarted  = "Starting spcomm.main()"
	MarkerHubComplete  = "Hub algorithm complete, waiting for termination barrier"
	MarkerWindowsFreed = "Windows freed"
)

// Result is what one rank is left holding after Run.
type Result struct {
	// SPComm is the rank's hub or spoke.
	SPComm spcomm.SPCommunicator
	// Spec is the spec that produced the rank's role: the hub spec on the
	// hub, the matching spoke spec otherwise.
	Spec models.RoleSpec
	// Role is the rank's role.
	Role models.Role
	// Topology is the rank's view of the cylinder and role groupings.
	Topology *topology.Topology
	// Phases records every lifecycle phase the rank entered.
	Phases *models.PhaseTracker
}

// rankRun carries per-rank state through the lifecycle.
type rankRun struct {
	opts    *runOptions
	world   comm.Communicator
	log     *DebugLogger
	started time.Time
	res     *Result
}

func (r *rankRun) advance(to models.Phase) error {
	if err := r.res.Phases.Advance(to); err != nil {
		return err
	}
	r.log.Log("phase %s", to)
	r.opts.events.Emit(Event{
		Type:      EventPhaseChanged,
		Rank:      r.world.Rank(),
		Role:      r.res.Role,
		Phase:     to,
		Elapsed:   time.Since(r.started),
		Timestamp: time.Now(),
	})
	return nil
}

// progress reports a lifecycle milestone from global rank 0 only.
func (r *rankRun) progress(msg string) {
	if r.world.Rank() != 0 {
		return
	}
	elapsed := time.Since(r.started)
	r.log.Log("%s (%.3fs)", msg, elapsed.Seconds())
	if r.opts.progress != nil {
		r.opts.progress(msg)
	}
	r.opts.events.Emit(Event{
		Type:      EventProgress,
		Rank:      0,
		Role:      r.res.Role,
		Phase:     r.res.Phases.Current(),
		Message:   msg,
		Elapsed:   elapsed,
		Timestamp: time.Now(),
	})
}

// Run executes the hub/spoke lifecycle on this rank. Every rank of world
// must call it with the same specs.
//
// Configuration errors (missing keys, unknown selectors, a world size that
// is not a multiple of len(spokes)+1) are returned before any communicator
// is built. Errors from an engine or from Main are returned wrapped; Run
// does not retry. On error the returned Result, when non-nil, reflects how
// far the rank got.
func Run(ctx context.Context, world comm.Communicator, hub models.HubSpec, spokes []models.SpokeSpec, opts ...Option) (*Result, error) {
	o := applyOptions(opts)
	spokes = append([]models.SpokeSpec(nil), spokes...)
	if err := ValidateSpecs(&hub, spokes, o.registry, o.engines); err != nil {
		return nil, err
	}
	if err := topology.Validate(world.Size(), len(spokes)); err != nil {
		return nil, err
	}

	r := &rankRun{
		opts:    o,
		world:   world,
		log:     o.logger.ForRank(world.Rank()),
		started: time.Now(),
		res:     &Result{Phases: models.NewPhaseTracker()},
	}
	err := r.lifecycle(ctx, &hub, spokes)
	if err != nil {
		r.opts.events.Emit(Event{
			Type:      EventRankFailed,
			Rank:      world.Rank(),
			Role:      r.res.Role,
			Phase:     r.res.Phases.Current(),
			Error:     err,
			Elapsed:   time.Since(r.started),
			Timestamp: time.Now(),
		})
		r.log.Log("failed in phase %s: %v", r.res.Phases.Current(), err)
	}
	if recErr := r.record(); recErr != nil && err == nil {
		err = recErr
	}
	if err != nil {
		return r.res, err
	}
	r.opts.events.Emit(Event{
		Type:      EventRankDone,
		Rank:      world.Rank(),
		Role:      r.res.Role,
		Phase:     r.res.Phases.Current(),
		Elapsed:   time.Since(r.started),
		Timestamp: time.Now(),
	})
	return r.res, nil
}

func (r *rankRun) lifecycle(ctx context.Context, hub *models.HubSpec, spokes []models.SpokeSpec) error {
	o := r.opts

	topo, err := topology.Build(ctx, r.world, len(spokes))
	if err != nil {
		return fmt.Errorf("build topology: %w", err)
	}
	r.res.Topology = topo
	r.res.Role = topo.Role
	if err := r.advance(models.PhaseTopologyBuilt); err != nil {
		return err
	}

	var spec models.RoleSpec = hub
	if !topo.Role.IsHub() {
		spec = &spokes[topo.Role.Index()-1]
	}
	r.res.Spec = spec
	r.log.Log("role %s, replica %d, engine %s, class %s", topo.Role, topo.Replica, spec.Engine(), spec.Class())

	eng, err := o.engines.New(ctx, spec.Engine(), topo.RoleComm, spec.EngineKwargs())
	if err != nil {
		return fmt.Errorf("construct engine %q: %w", spec.Engine(), err)
	}
	base := spcomm.Base{Engine: eng, World: r.world, Cylinder: topo.Cylinder, RoleComm: topo.RoleComm}

	var hubComm spcomm.Hub
	if topo.Role.IsHub() {
		hubComm, err = o.registry.NewHub(hub.HubClass, base, spokes, hub.HubKwargs)
		r.res.SPComm = hubComm
	} else {
		r.res.SPComm, err = o.registry.NewSpoke(spec.Class(), base, spec.ClassKwargs())
	}
	if err != nil {
		return fmt.Errorf("construct %s %q: %w", topo.Role, spec.Class(), err)
	}
	sp := r.res.SPComm

	if err := sp.SetupSharedState(ctx); err != nil {
		return fmt.Errorf("setup shared state: %w", err)
	}
	if hubComm != nil {
		if err := hubComm.SetupHub(ctx); err != nil {
			return fmt.Errorf("setup hub: %w", err)
		}
	}
	if err := r.advance(models.PhaseWindowsOpen); err != nil {
		return err
	}

	r.progress(MarkerMainStarted)
	if err := r.advance(models.PhaseRunning); err != nil {
		return err
	}
	if err := sp.Main(ctx); err != nil {
		return fmt.Errorf("main: %w", err)
	}

	if hubComm != nil {
		r.progress(MarkerHubComplete)
		if err := hubComm.SendTerminate(ctx); err != nil {
			return err
		}
	}
	if err := r.advance(models.PhaseTerminating); err != nil {
		return err
	}

	if err := sp.Finalize(ctx); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	if err := r.world.Barrier(ctx); err != nil {
		return fmt.Errorf("termination barrier: %w", err)
	}
	if err := r.advance(models.PhaseFinalized); err != nil {
		return err
	}

	if err := sp.HubFinalize(ctx); err != nil {
		return fmt.Errorf("hub finalize: %w", err)
	}
	if err := sp.ReleaseSharedState(ctx); err != nil {
		return fmt.Errorf("release shared state: %w", err)
	}
	if err := r.advance(models.PhaseTornDown); err != nil {
		return err
	}
	r.progress(MarkerWindowsFreed)
	return nil
}

// record writes the rank's outcome to the ledger, if one is attached.
func (r *rankRun) record() error {
	if r.opts.ledger == nil || r.res.Topology == nil {
		return nil
	}
	topo := r.res.Topology
	rec := state.RankRecord{
		RunID:        r.opts.runID,
		GlobalRank:   r.world.Rank(),
		Role:         topo.Role.String(),
		Replica:      topo.Replica,
		CylinderRank: topo.Cylinder.Rank(),
		RoleRank:     topo.RoleComm.Rank(),
		FinalPhase:   string(r.res.Phases.Current()),
	}
	if rep, ok := r.res.SPComm.(spcomm.Reporter); ok {
		report := rep.Report()
		rec.Iterations = report.Iterations
		rec.Outer = report.Outer
		rec.Inner = report.Inner
	}
	if err := r.opts.ledger.RecordRank(rec); err != nil {
		return fmt.Errorf("record rank: %w", err)
	}
	return nil
}
