// Package portcell holds the backend port once it has been discovered.
//
// A Cell has exactly one writer (the supervisor) and any number of readers.
// The value lives in a single atomic word, so readers never block and never
// observe a partially written port. The first Set wins; later writes are
// ignored and reported as such.
package portcell

import "sync/atomic"

// Cell is a write-once, concurrently readable port holder.
// Create cells with New.
type Cell struct {
	// 0 means absent; otherwise the stored value is port+1.
	v     atomic.Uint32
	ready chan struct{}
}

// New creates an empty cell.
func New() *Cell {
	return &Cell{ready: make(chan struct{})}
}

// Set stores port if the cell is empty and reports whether it did.
// A second Set is a no-op that returns false and leaves the first value in place.
func (c *Cell) Set(port uint16) bool {
	if !c.v.CompareAndSwap(0, uint32(port)+1) {
		return false
	}
	close(c.ready)
	return true
}

// Get returns the stored port and whether one is present.
func (c *Cell) Get() (uint16, bool) {
	v := c.v.Load()
	if v == 0 {
		return 0, false
	}
	return uint16(v - 1), true
}

// Ready returns a channel that is closed once a port has been stored.
func (c *Cell) Ready() <-chan struct{} {
	return c.ready
}
