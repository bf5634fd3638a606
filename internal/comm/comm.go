// Package comm defines the communicator abstraction the hub/spoke runtime
// is written against, and an in-process implementation that runs every rank
// of an SPMD program as a goroutine.
//
// A Communicator is a group of ranks numbered 0..Size()-1. Collective
// operations (Split, Barrier, AllreduceSum, Bcast) must be called by every
// member of the group, in the same order, before any of them returns.
package comm

import (
	"context"
	"errors"
)

// Undefined is passed as a Split color by ranks that want no part in any
// of the resulting groups.
const Undefined = -1

// ErrCollectiveMismatch is returned when members of a group issue
// different collective operations at the same step.
var ErrCollectiveMismatch = errors.New("collective operation mismatch")

// Communicator is a group of cooperating ranks.
type Communicator interface {
	// Rank returns the caller's position in the group.
	Rank() int
	// Size returns the number of ranks in the group.
	Size() int
	// Split partitions the group by color. Members sharing a color form a
	// new group ordered by (key, parent rank). A rank passing Undefined
	// receives a nil Communicator.
	Split(ctx context.Context, color, key int) (Communicator, error)
	// Barrier blocks until every member has called it.
	Barrier(ctx context.Context) error
	// AllreduceSum returns the element-wise sum of every member's vector.
	AllreduceSum(ctx context.Context, data []float64) ([]float64, error)
	// Bcast returns the value supplied by root to every member. Non-root
	// members' values are ignored.
	Bcast(ctx context.Context, root int, value any) (any, error)
}
