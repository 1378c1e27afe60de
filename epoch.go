// Package jmvcc implements an in-memory, optimistic multi-version
// concurrency control runtime for versioned cells.
//
// A Runtime groups the three subsystems that make MVCC work together:
// an epoch clock, a snapshot registry, and the commit lock that
// serializes writers. Callers create a Runtime, open Transactions
// against it, and wrap values in Versioned[T] cells that the
// transactions read and mutate.
package jmvcc

import "sync/atomic"

// Epoch is a 64-bit monotonically non-decreasing logical timestamp.
// It is assigned to snapshots at creation and to commits as they occur.
type Epoch uint64

// sentinelValidTo marks the tail entry of a version history: "valid
// until further notice." Epoch 0 is never assigned to a snapshot or a
// commit (epochs start at 1), so it is free to use as +∞.
const sentinelValidTo Epoch = 0

// Clock is the process-wide monotonic logical time source. Reads are
// lock-free; current_epoch only advances under the commit lock.
// earliest_epoch is stored without any lock (see SetEarliestEpoch).
type Clock struct {
	current  atomic.Uint64
	earliest atomic.Uint64
}

// NewClock creates a Clock with both current and earliest epoch set to
// their initial value of 1, per the data model.
func NewClock() *Clock {
	c := &Clock{}
	c.current.Store(1)
	c.earliest.Store(1)
	return c
}

// CurrentEpoch returns the next epoch to be assigned.
func (c *Clock) CurrentEpoch() Epoch {
	return Epoch(c.current.Load())
}

// EarliestEpoch returns the lower bound on epochs any live snapshot
// may observe.
func (c *Clock) EarliestEpoch() Epoch {
	return Epoch(c.earliest.Load())
}

// AdvanceEpoch increments current_epoch and returns the new value.
// Callers must hold the commit lock.
func (c *Clock) AdvanceEpoch() Epoch {
	return Epoch(c.current.Add(1))
}

// SetEarliestEpoch sets earliest_epoch. It takes no lock, and neither
// of its callers holds the registry lock: Runtime calls it after every
// snapshot release, and Compressor while holding the commit lock.
// Concurrent calls are not ordered; the last store wins.
func (c *Clock) SetEarliestEpoch(e Epoch) {
	c.earliest.Store(uint64(e))
}

// SetCurrentEpoch rebases current_epoch to e. Callers must hold the
// commit lock; this exists solely for Compressor, which renumbers
// every live epoch to a dense run and must move current_epoch along
// with them.
func (c *Clock) SetCurrentEpoch(e Epoch) {
	c.current.Store(uint64(e))
}
