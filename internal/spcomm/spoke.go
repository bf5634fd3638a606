package spcomm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// BoundSpokeName is the selector of the reference spoke.
const BoundSpokeName = "bound_spoke"

// BoundSpoke iterates its engine and posts each inner bound to the hub
// until it sees the hub's terminate flag. Spokes in the same role group
// stop together, once every one of them has seen the flag.
type BoundSpoke struct {
	Base
	poll   time.Duration
	window *Window
	iter   int
	inner  float64
}

// NewBoundSpoke is the SpokeFactory for BoundSpoke. poll_ms sets the pause
// between iterations (default 1ms).
func NewBoundSpoke(b Base, kwargs models.Kwargs) (SPCommunicator, error) {
	ms := kwargs.Int("poll_ms", 1)
	if ms < 0 {
		return nil, fmt.Errorf("poll_ms must be >= 0 (got %d)", ms)
	}
	return &BoundSpoke{
		Base:  b,
		poll:  time.Duration(ms) * time.Millisecond,
		inner: math.Inf(-1),
	}, nil
}

// SetupSharedState joins the cylinder window. The spoke count is derived
// from the cylinder size.
func (s *BoundSpoke) SetupSharedState(ctx context.Context) error {
	w, err := OpenWindow(ctx, s.Cylinder, nil)
	if err != nil {
		return err
	}
	s.window = w
	return nil
}

func (s *BoundSpoke) terminated() (bool, error) {
	vals, _, err := s.window.Get(HubField)
	if err != nil {
		return false, err
	}
	return len(vals) == hubFieldLen && vals[hubTerminate] == 1, nil
}

// Main loops until every spoke in the role group has seen termination.
func (s *BoundSpoke) Main(ctx context.Context) error {
	if s.window == nil {
		return errors.New("spoke main: window not open")
	}
	field := SpokeField(s.Cylinder.Rank())
	for {
		done, err := s.terminated()
		if err != nil {
			return err
		}
		seen := 0.0
		if done {
			seen = 1
		}
		sum, err := s.RoleComm.AllreduceSum(ctx, []float64{seen})
		if err != nil {
			return fmt.Errorf("spoke stop vote: %w", err)
		}
		if int(sum[0]) == s.RoleComm.Size() {
			return nil
		}

		s.iter++
		est, err := s.Engine.Iterate(ctx, s.iter)
		if err != nil {
			return fmt.Errorf("spoke iteration %d: %w", s.iter, err)
		}
		s.inner = math.Max(s.inner, est.Inner)
		if err := s.window.Put(field, float64(s.iter), s.inner); err != nil {
			return err
		}
		if err := s.window.Flush(); err != nil {
			return err
		}

		if s.poll > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.poll):
			}
		}
	}
}

// Finalize is a no-op.
func (s *BoundSpoke) Finalize(ctx context.Context) error { return nil }

// HubFinalize is a no-op on spokes.
func (s *BoundSpoke) HubFinalize(ctx context.Context) error { return nil }

// ReleaseSharedState closes the window.
func (s *BoundSpoke) ReleaseSharedState(ctx context.Context) error {
	if s.window == nil {
		return nil
	}
	return s.window.Close(ctx)
}

// Report implements Reporter.
func (s *BoundSpoke) Report() Report {
	return Report{Iterations: s.iter, Outer: math.Inf(1), Inner: s.inner}
}
