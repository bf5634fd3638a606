package orchestrator

import (
	"context"

	"github.com/ShayCichocki/hubspoke/internal/comm"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// Launch runs the orchestrator on every rank of an in-process world of the
// given size and returns the per-rank results indexed by global rank.
// Entries for ranks that failed before producing a result are nil.
func Launch(ctx context.Context, size int, hub models.HubSpec, spokes []models.SpokeSpec, opts ...Option) ([]*Result, error) {
	world, err := comm.NewLocalWorld(size)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, size)
	err = world.Run(ctx, func(ctx context.Context, c comm.Communicator) error {
		res, err := Run(ctx, c, hub, spokes, opts...)
		results[c.Rank()] = res
		return err
	})
	return results, err
}
