// Package topology derives the two orthogonal process groupings of a
// hub/spoke run from one flat rank space.
//
// With groupSize = spokes+1, global rank g belongs to cylinder g/groupSize
// (one hub plus one instance of every spoke) and to role-group g%groupSize
// (every rank performing the same role, across all cylinders).
package topology

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/hubspoke/internal/comm"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// Topology is one rank's view of the cylinder and role groupings.
type Topology struct {
	// World is the communicator the topology was derived from.
	World comm.Communicator
	// Cylinder groups the hub and spokes of one replica; the hub is rank 0.
	Cylinder comm.Communicator
	// RoleComm groups the ranks sharing this rank's role across replicas.
	RoleComm comm.Communicator
	// Role is this rank's role, equal to its position in Cylinder.
	Role models.Role
	// Replica is the index of this rank's cylinder.
	Replica int
	// GroupSize is the number of ranks per cylinder.
	GroupSize int
	// NumCylinders is the number of replicas.
	NumCylinders int
}

// Validate checks that worldSize ranks can host cylinders of spokeCount
// spokes. It performs no communication.
func Validate(worldSize, spokeCount int) error {
	if spokeCount < 0 {
		return &models.ConfigError{Msg: fmt.Sprintf("spoke count must be non-negative (got %d)", spokeCount)}
	}
	groupSize := spokeCount + 1
	if worldSize%groupSize != 0 {
		return &models.ConfigError{
			Msg:      fmt.Sprintf("need a multiple of %d processes (got %d)", groupSize, worldSize),
			Expected: groupSize,
			Actual:   worldSize,
		}
	}
	return nil
}

// Build splits world into cylinder and role communicators. Both splits are
// collective over world, so every rank must call Build with the same
// spokeCount. Nothing is split when the process count is wrong.
func Build(ctx context.Context, world comm.Communicator, spokeCount int) (*Topology, error) {
	if err := Validate(world.Size(), spokeCount); err != nil {
		return nil, err
	}
	groupSize := spokeCount + 1
	rank := world.Rank()

	cylinder, err := world.Split(ctx, rank/groupSize, rank)
	if err != nil {
		return nil, fmt.Errorf("split cylinder communicator: %w", err)
	}
	roleComm, err := world.Split(ctx, rank%groupSize, rank)
	if err != nil {
		return nil, fmt.Errorf("split role communicator: %w", err)
	}

	return &Topology{
		World:        world,
		Cylinder:     cylinder,
		RoleComm:     roleComm,
		Role:         models.RoleFromRank(cylinder.Rank(), groupSize),
		Replica:      rank / groupSize,
		GroupSize:    groupSize,
		NumCylinders: world.Size() / groupSize,
	}, nil
}

// Placement describes where one global rank lands.
type Placement struct {
	GlobalRank   int
	Role         models.Role
	Replica      int
	CylinderRank int
	RoleRank     int
}

// Layout computes the placement of every rank without building any
// communicator.
func Layout(worldSize, spokeCount int) ([]Placement, error) {
	if err := Validate(worldSize, spokeCount); err != nil {
		return nil, err
	}
	groupSize := spokeCount + 1
	out := make([]Placement, worldSize)
	for g := 0; g < worldSize; g++ {
		out[g] = Placement{
			GlobalRank:   g,
			Role:         models.RoleFromRank(g, groupSize),
			Replica:      g / groupSize,
			CylinderRank: g % groupSize,
			RoleRank:     g / groupSize,
		}
	}
	return out, nil
}
