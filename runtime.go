package jmvcc

import "sync"

// Snapshot is a point-in-time read view: every Versioned cell read
// through it returns the value that was current as of its epoch,
// regardless of commits that happen afterward. Its epoch tracks the
// registry's own bookkeeping for it, so a live Snapshot survives
// epoch compression correctly rather than going stale.
type Snapshot struct {
	item *snapshotItem
}

// Epoch returns the epoch this snapshot was taken at.
func (s Snapshot) Epoch() Epoch {
	return Epoch(s.item.epoch.Load())
}

// Runtime groups the epoch clock, the snapshot registry, and the
// commit lock that a set of Versioned cells share. Transactions and
// snapshots are only meaningful relative to a single Runtime; mixing
// cells or transactions from two Runtimes is a caller bug.
type Runtime struct {
	clock     *Clock
	registry  *Registry
	reclaimer *Reclaimer
	commitMu  sync.Mutex
	metrics   *Metrics
}

// NewRuntime creates a Runtime with a fresh clock and registry.
func NewRuntime() *Runtime {
	rt := &Runtime{
		clock:    NewClock(),
		registry: NewRegistry(),
	}
	rt.reclaimer = NewReclaimer(rt.registry)
	rt.metrics = newMetrics()
	rt.registry.onCleanupOK = rt.metrics.cleanupsTotal.Inc
	return rt
}

// TakeSnapshot registers and returns a read view pinned to the
// current epoch. Every TakeSnapshot must be paired with Transaction
// lifecycle completion or a direct call to ReleaseSnapshot, or old
// versions those reads might still need will never be reclaimed.
func (rt *Runtime) TakeSnapshot() Snapshot {
	epoch := rt.clock.CurrentEpoch()
	item := rt.registry.RegisterSnapshot(epoch)
	rt.metrics.snapshotsActive.Inc()
	return Snapshot{item: item}
}

// ReleaseSnapshot retires a snapshot taken with TakeSnapshot, possibly
// triggering cleanup of versions no other live snapshot needs.
func (rt *Runtime) ReleaseSnapshot(s Snapshot) {
	rt.endSnapshot(s)
}

func (rt *Runtime) endSnapshot(s Snapshot) {
	_ = rt.registry.RemoveSnapshot(s.item)
	rt.metrics.snapshotsActive.Dec()
	rt.updateEarliestEpoch()
}

func (rt *Runtime) updateEarliestEpoch() {
	if e, ok := rt.registry.EarliestLiveEpoch(); ok {
		rt.clock.SetEarliestEpoch(e)
	} else {
		rt.clock.SetEarliestEpoch(rt.clock.CurrentEpoch())
	}
	rt.metrics.currentEpoch.Set(float64(rt.clock.CurrentEpoch()))
	rt.metrics.earliestEpoch.Set(float64(rt.clock.EarliestEpoch()))
}

// Begin starts a transaction against a fresh snapshot of the
// runtime's current state.
func (rt *Runtime) Begin() *Transaction {
	return newTransaction(rt, rt.TakeSnapshot())
}

// CurrentEpoch returns the epoch the next commit will be assigned.
func (rt *Runtime) CurrentEpoch() Epoch {
	return rt.clock.CurrentEpoch()
}

// EarliestEpoch returns the oldest epoch any live snapshot might still
// observe.
func (rt *Runtime) EarliestEpoch() Epoch {
	return rt.clock.EarliestEpoch()
}

// LiveSnapshots returns the number of distinct live snapshot epochs.
func (rt *Runtime) LiveSnapshots() int {
	return rt.registry.LiveCount()
}

// PendingCleanups returns the number of versions still awaiting
// reclamation.
func (rt *Runtime) PendingCleanups() int {
	return rt.registry.PendingCleanups()
}
