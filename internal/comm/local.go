package comm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RankFunc is the body of an SPMD program, run once per rank.
type RankFunc func(ctx context.Context, world Communicator) error

// LocalWorld runs a fixed number of ranks as goroutines in one process.
type LocalWorld struct {
	size int
}

// NewLocalWorld creates a world of size ranks.
func NewLocalWorld(size int) (*LocalWorld, error) {
	if size < 1 {
		return nil, fmt.Errorf("world size must be positive (got %d)", size)
	}
	return &LocalWorld{size: size}, nil
}

// Size returns the number of ranks in the world.
func (w *LocalWorld) Size() int {
	return w.size
}

// Run executes fn on every rank and waits for all of them. The first rank
// to fail cancels the context seen by the others, so ranks blocked in a
// collective return instead of waiting for a peer that will never arrive.
// The first error is returned.
func (w *LocalWorld) Run(ctx context.Context, fn RankFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	root := newGroup(w.size)
	for rank := 0; rank < w.size; rank++ {
		c := &localComm{group: root, rank: rank}
		g.Go(func() error {
			if err := fn(gctx, c); err != nil {
				return fmt.Errorf("rank %d: %w", c.rank, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// group is the state shared by all members of one communicator.
type group struct {
	size int

	mu     sync.Mutex
	rounds map[uint64]*round
}

// round is one collective step of a group.
type round struct {
	op       string
	contribs []any
	arrived  int
	left     int
	done     chan struct{}
	result   any
	err      error
}

func newGroup(size int) *group {
	return &group{size: size, rounds: make(map[uint64]*round)}
}

// exchange deposits v as rank's contribution to collective step seq and
// waits for the rest of the group. The last member to arrive computes the
// result with reduce.
func (g *group) exchange(ctx context.Context, seq uint64, rank int, op string, v any,
	reduce func(contribs []any) (any, error)) (any, error) {
	g.mu.Lock()
	r, ok := g.rounds[seq]
	if !ok {
		r = &round{op: op, contribs: make([]any, g.size), done: make(chan struct{})}
		g.rounds[seq] = r
	}
	if r.op != op {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: step %d is %s, rank %d called %s", ErrCollectiveMismatch, seq, r.op, rank, op)
	}
	r.contribs[rank] = v
	r.arrived++
	if r.arrived == g.size {
		r.result, r.err = reduce(r.contribs)
		close(r.done)
	}
	g.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	g.mu.Lock()
	r.left++
	if r.left == g.size {
		delete(g.rounds, seq)
	}
	g.mu.Unlock()
	return r.result, r.err
}

// localComm is one rank's handle on a group. Only the owning goroutine
// touches seq.
type localComm struct {
	group *group
	rank  int
	seq   uint64
}

func (c *localComm) Rank() int { return c.rank }

func (c *localComm) Size() int { return c.group.size }

func (c *localComm) next() uint64 {
	c.seq++
	return c.seq
}

type splitRequest struct {
	color, key, parent int
}

type splitResult struct {
	groups  map[int]*group
	members map[int][]int // color -> parent ranks in new-rank order
}

func (c *localComm) Split(ctx context.Context, color, key int) (Communicator, error) {
	res, err := c.group.exchange(ctx, c.next(), c.rank, "split",
		splitRequest{color: color, key: key, parent: c.rank}, reduceSplit)
	if err != nil {
		return nil, err
	}
	if color == Undefined {
		return nil, nil
	}
	sr := res.(*splitResult)
	for newRank, parent := range sr.members[color] {
		if parent == c.rank {
			return &localComm{group: sr.groups[color], rank: newRank}, nil
		}
	}
	return nil, fmt.Errorf("rank %d missing from split color %d", c.rank, color)
}

func reduceSplit(contribs []any) (any, error) {
	byColor := make(map[int][]splitRequest)
	for _, v := range contribs {
		req := v.(splitRequest)
		if req.color == Undefined {
			continue
		}
		if req.color < 0 {
			return nil, fmt.Errorf("invalid split color %d from rank %d", req.color, req.parent)
		}
		byColor[req.color] = append(byColor[req.color], req)
	}
	sr := &splitResult{groups: make(map[int]*group), members: make(map[int][]int)}
	for color, reqs := range byColor {
		sort.Slice(reqs, func(i, j int) bool {
			if reqs[i].key != reqs[j].key {
				return reqs[i].key < reqs[j].key
			}
			return reqs[i].parent < reqs[j].parent
		})
		parents := make([]int, len(reqs))
		for i, req := range reqs {
			parents[i] = req.parent
		}
		sr.groups[color] = newGroup(len(reqs))
		sr.members[color] = parents
	}
	return sr, nil
}

func (c *localComm) Barrier(ctx context.Context) error {
	_, err := c.group.exchange(ctx, c.next(), c.rank, "barrier", nil,
		func([]any) (any, error) { return nil, nil })
	return err
}

func (c *localComm) AllreduceSum(ctx context.Context, data []float64) ([]float64, error) {
	res, err := c.group.exchange(ctx, c.next(), c.rank, "allreduce", data, reduceSum)
	if err != nil {
		return nil, err
	}
	sum := res.([]float64)
	out := make([]float64, len(sum))
	copy(out, sum)
	return out, nil
}

func reduceSum(contribs []any) (any, error) {
	first := contribs[0].([]float64)
	sum := make([]float64, len(first))
	for rank, v := range contribs {
		vec := v.([]float64)
		if len(vec) != len(sum) {
			return nil, fmt.Errorf("allreduce length mismatch: rank %d sent %d values, rank 0 sent %d",
				rank, len(vec), len(sum))
		}
		for i, x := range vec {
			sum[i] += x
		}
	}
	return sum, nil
}

func (c *localComm) Bcast(ctx context.Context, root int, value any) (any, error) {
	if root < 0 || root >= c.group.size {
		return nil, fmt.Errorf("bcast root %d out of range [0,%d)", root, c.group.size)
	}
	return c.group.exchange(ctx, c.next(), c.rank, "bcast", value,
		func(contribs []any) (any, error) { return contribs[root], nil })
}
