package spcomm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ShayCichocki/hubspoke/internal/comm"
)

// ErrWindowClosed is returned by operations on a released window.
var ErrWindowClosed = errors.New("window closed")

// Layout assigns each window field to the cylinder rank allowed to write it.
type Layout map[string]int

// CylinderLayout returns the standard layout for a cylinder with the given
// number of spokes: a "hub" field owned by rank 0 and a "spoke-<k>" field
// owned by rank k.
func CylinderLayout(spokes int) Layout {
	l := Layout{HubField: 0}
	for k := 1; k <= spokes; k++ {
		l[SpokeField(k)] = k
	}
	return l
}

// HubField is the window field written by the hub.
const HubField = "hub"

// SpokeField names the window field written by spoke k.
func SpokeField(k int) string {
	return fmt.Sprintf("spoke-%d", k)
}

// board is the memory shared by the members of one cylinder.
type board struct {
	mu     sync.RWMutex
	layout Layout
	cells  map[string]cell
	open   int
}

type cell struct {
	values []float64
	seq    uint64
}

// Window is one rank's handle on its cylinder's shared board. Writes are
// staged with Put and become visible to the other members on Flush.
// Windows share memory directly, so every member must live in the same
// process (as with comm.LocalWorld).
type Window struct {
	board    *board
	cylinder comm.Communicator
	pending  map[string][]float64
	closed   bool
}

// OpenWindow creates the cylinder's shared board. It is collective over
// cylinder: rank 0 allocates the board and hands it to the other members,
// so only rank 0's layout is used.
func OpenWindow(ctx context.Context, cylinder comm.Communicator, layout Layout) (*Window, error) {
	var b *board
	if cylinder.Rank() == 0 {
		b = &board{layout: layout, cells: make(map[string]cell, len(layout)), open: cylinder.Size()}
	}
	v, err := cylinder.Bcast(ctx, 0, b)
	if err != nil {
		return nil, fmt.Errorf("share window: %w", err)
	}
	return &Window{
		board:    v.(*board),
		cylinder: cylinder,
		pending:  make(map[string][]float64),
	}, nil
}

// Put stages values for field. Only the field's owner may write it.
func (w *Window) Put(field string, values ...float64) error {
	if w.closed {
		return ErrWindowClosed
	}
	owner, ok := w.board.layout[field]
	if !ok {
		return fmt.Errorf("unknown window field %q", field)
	}
	if owner != w.cylinder.Rank() {
		return fmt.Errorf("window field %q is owned by rank %d, not %d", field, owner, w.cylinder.Rank())
	}
	w.pending[field] = append([]float64(nil), values...)
	return nil
}

// Flush publishes every staged write.
func (w *Window) Flush() error {
	if w.closed {
		return ErrWindowClosed
	}
	w.board.mu.Lock()
	defer w.board.mu.Unlock()
	for field, values := range w.pending {
		c := w.board.cells[field]
		w.board.cells[field] = cell{values: values, seq: c.seq + 1}
	}
	w.pending = make(map[string][]float64)
	return nil
}

// Get returns the last flushed values of field and how many times it has
// been flushed. A field never written returns nil and 0.
func (w *Window) Get(field string) ([]float64, uint64, error) {
	if w.closed {
		return nil, 0, ErrWindowClosed
	}
	if _, ok := w.board.layout[field]; !ok {
		return nil, 0, fmt.Errorf("unknown window field %q", field)
	}
	w.board.mu.RLock()
	defer w.board.mu.RUnlock()
	c := w.board.cells[field]
	return append([]float64(nil), c.values...), c.seq, nil
}

// Close releases the window. It is collective over the cylinder so that no
// member frees the board while another may still read it.
func (w *Window) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	if err := w.cylinder.Barrier(ctx); err != nil {
		return fmt.Errorf("release window: %w", err)
	}
	w.closed = true
	w.board.mu.Lock()
	w.board.open--
	if w.board.open == 0 {
		w.board.cells = nil
	}
	w.board.mu.Unlock()
	return nil
}
