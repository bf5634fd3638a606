package spcomm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// ConvergenceHubName is the selector of the reference hub.
const ConvergenceHubName = "convergence_hub"

// Hub window field layout.
const (
	hubIter = iota
	hubOuter
	hubInner
	hubTerminate
	hubFieldLen
)

// Spoke window field layout.
const (
	spokeIter = iota
	spokeInner
	spokeFieldLen
)

// ErrTerminateBeforeMain is returned when SendTerminate is called while Main
// has not yet returned.
var ErrTerminateBeforeMain = errors.New("terminate sent before hub main returned")

// Report summarizes one rank's run for logging and the run ledger.
type Report struct {
	Iterations int
	Outer      float64
	Inner      float64
	Converged  bool
}

// Reporter is implemented by communicators that can summarize their run.
type Reporter interface {
	Report() Report
}

// ConvergenceHub iterates its engine and tracks the best bounds seen from
// itself and its spokes. It stops once the relative gap drops below
// rel_gap on every hub replica, or after max_iterations.
type ConvergenceHub struct {
	Base
	spokes    int
	maxIter   int
	relGap    float64
	window    *Window
	seen      []uint64
	outer     float64
	inner     float64
	iter      int
	converged bool

	mainReturned   bool
	terminateCount int
}

// NewConvergenceHub is the HubFactory for ConvergenceHub.
func NewConvergenceHub(b Base, spokes []models.SpokeSpec, kwargs models.Kwargs) (Hub, error) {
	maxIter := kwargs.Int("max_iterations", 50)
	if maxIter < 1 {
		return nil, fmt.Errorf("max_iterations must be >= 1 (got %d)", maxIter)
	}
	relGap := kwargs.Float("rel_gap", 0.01)
	if relGap < 0 {
		return nil, fmt.Errorf("rel_gap must be >= 0 (got %g)", relGap)
	}
	return &ConvergenceHub{
		Base:    b,
		spokes:  len(spokes),
		maxIter: maxIter,
		relGap:  relGap,
		seen:    make([]uint64, len(spokes)+1),
		outer:   math.Inf(1),
		inner:   math.Inf(-1),
	}, nil
}

// SetupSharedState opens the cylinder window.
func (h *ConvergenceHub) SetupSharedState(ctx context.Context) error {
	w, err := OpenWindow(ctx, h.Cylinder, CylinderLayout(h.spokes))
	if err != nil {
		return err
	}
	h.window = w
	return nil
}

// SetupHub publishes the initial hub state.
func (h *ConvergenceHub) SetupHub(ctx context.Context) error {
	if h.window == nil {
		return errors.New("setup hub: window not open")
	}
	return h.publish(false)
}

func (h *ConvergenceHub) publish(terminate bool) error {
	vals := make([]float64, hubFieldLen)
	vals[hubIter] = float64(h.iter)
	vals[hubOuter] = h.outer
	vals[hubInner] = h.inner
	if terminate {
		vals[hubTerminate] = 1
	}
	if err := h.window.Put(HubField, vals...); err != nil {
		return err
	}
	return h.window.Flush()
}

// Main runs the hub loop. The stop decision is agreed over the role
// communicator so every hub replica leaves after the same iteration.
func (h *ConvergenceHub) Main(ctx context.Context) error {
	for k := 1; ; k++ {
		est, err := h.Engine.Iterate(ctx, k)
		if err != nil {
			return fmt.Errorf("hub iteration %d: %w", k, err)
		}
		h.iter = k
		h.outer = math.Min(h.outer, est.Outer)
		h.inner = math.Max(h.inner, est.Inner)
		if err := h.receive(); err != nil {
			return err
		}
		h.converged = h.gap() <= h.relGap
		if err := h.publish(false); err != nil {
			return err
		}

		open := 1.0
		if h.converged {
			open = 0
		}
		sum, err := h.RoleComm.AllreduceSum(ctx, []float64{open})
		if err != nil {
			return fmt.Errorf("hub stop vote: %w", err)
		}
		if sum[0] == 0 || k >= h.maxIter {
			break
		}
	}
	h.mainReturned = true
	return nil
}

// receive folds in any spoke bound flushed since the last look.
func (h *ConvergenceHub) receive() error {
	for k := 1; k <= h.spokes; k++ {
		vals, seq, err := h.window.Get(SpokeField(k))
		if err != nil {
			return err
		}
		if seq == h.seen[k] || len(vals) < spokeFieldLen {
			continue
		}
		h.seen[k] = seq
		h.inner = math.Max(h.inner, vals[spokeInner])
	}
	return nil
}

// gap is the relative gap between the best bounds.
func (h *ConvergenceHub) gap() float64 {
	if math.IsInf(h.outer, 0) || math.IsInf(h.inner, 0) {
		return math.Inf(1)
	}
	return math.Abs(h.outer-h.inner) / math.Max(math.Abs(h.outer), 1e-10)
}

// SendTerminate raises the terminate flag for the cylinder's spokes.
func (h *ConvergenceHub) SendTerminate(ctx context.Context) error {
	if !h.mainReturned {
		return ErrTerminateBeforeMain
	}
	if err := h.publish(true); err != nil {
		return fmt.Errorf("send terminate: %w", err)
	}
	h.terminateCount++
	return nil
}

// Finalize is a no-op for the hub; spoke values are gathered in HubFinalize.
func (h *ConvergenceHub) Finalize(ctx context.Context) error {
	return nil
}

// HubFinalize picks up the bounds spokes flushed before the final barrier.
func (h *ConvergenceHub) HubFinalize(ctx context.Context) error {
	if err := h.receive(); err != nil {
		return fmt.Errorf("hub finalize: %w", err)
	}
	h.converged = h.gap() <= h.relGap
	return nil
}

// ReleaseSharedState closes the window.
func (h *ConvergenceHub) ReleaseSharedState(ctx context.Context) error {
	if h.window == nil {
		return nil
	}
	return h.window.Close(ctx)
}

// Report implements Reporter.
func (h *ConvergenceHub) Report() Report {
	return Report{Iterations: h.iter, Outer: h.outer, Inner: h.inner, Converged: h.converged}
}

// TerminateCount returns how many times SendTerminate succeeded.
func (h *ConvergenceHub) TerminateCount() int { return h.terminateCount }

// MainReturned reports whether Main has completed.
func (h *ConvergenceHub) MainReturned() bool { return h.mainReturned }
