package jmvcc

import "sync/atomic"

var _ Object = (*Versioned[int])(nil)

// pendingWrite[T] records a tentative write a transaction has staged
// against a cell but not yet committed or rolled back.
type pendingWrite[T any] struct {
	value T
}

// Versioned[T] is a single MVCC-managed cell holding values of type T.
// Reads against a Snapshot never block; writes are staged through a
// Transaction and only become visible on commit.
type Versioned[T any] struct {
	history *History[T]
	pending atomic.Pointer[pendingWrite[T]]
}

// NewVersioned creates a cell whose initial value is visible to every
// snapshot taken from epoch 1 onward.
func NewVersioned[T any](initial T) *Versioned[T] {
	return &Versioned[T]{history: NewHistory(initial)}
}

// Read returns the value visible to a snapshot taken at asOf.
func (v *Versioned[T]) Read(asOf Epoch) T {
	value, ok := v.history.ReadAt(asOf)
	if !ok {
		return v.history.Latest()
	}
	return value
}

// Latest returns the most recently committed value, ignoring snapshots.
func (v *Versioned[T]) Latest() T {
	return v.history.Latest()
}

// HistorySize reports how many superseded versions are still retained
// behind the current one, waiting on a live snapshot or on cleanup.
// It is 0 once no snapshot needs anything but the latest value. Tests
// use this to check that cleanup actually reclaims superseded
// versions once no live snapshot needs them.
func (v *Versioned[T]) HistorySize() int {
	return v.history.Size() - 1
}

// DebugString renders the cell's history for diagnostics.
func (v *Versioned[T]) DebugString() string {
	entries := v.history.load().entries
	s := "["
	for i, e := range entries {
		if i > 0 {
			s += " "
		}
		if e.validTo == sentinelValidTo {
			s += "(+inf)"
		} else {
			s += formatValidTo(e.validTo)
		}
	}
	return s + "]"
}

func formatValidTo(e Epoch) string {
	// small, allocation-light integer formatter; diagnostics only.
	if e == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for e > 0 {
		i--
		buf[i] = byte('0' + e%10)
		e /= 10
	}
	return string(buf[i:])
}

// setup implements Object. newValue must be a T; a mismatched type is
// a caller bug and panics, matching the original's unchecked cast.
//
// It refuses the write if the cell's committed version has moved past
// oldEpoch since the caller's snapshot was taken: some other
// transaction already committed a write this one never saw, and
// proceeding would silently overwrite it. This is the write-write
// conflict check the original's setup(old_epoch, new_epoch, value)
// performs by comparing valid_from against old_epoch.
func (v *Versioned[T]) setup(oldEpoch Epoch, newValue any) bool {
	if v.history.ValidFrom() > oldEpoch {
		return false
	}
	return v.pending.CompareAndSwap(nil, &pendingWrite[T]{value: newValue.(T)})
}

// commit implements Object: it finalizes the tentative write as of
// epoch and registers the version it superseded for later cleanup.
func (v *Versioned[T]) commit(epoch Epoch, reg *Registry) {
	p := v.pending.Load()
	if p == nil {
		return
	}
	_ = v.history.Append(epoch, p.value)
	v.pending.Store(nil)
	reg.RegisterCleanup(v, epoch)
}

// rollback implements Object: it discards the tentative write without
// touching the committed history.
func (v *Versioned[T]) rollback() {
	v.pending.Store(nil)
}

// cleanup implements Object: it discards every version that became
// invalid at or before validFrom, since no live snapshot can still
// reference it.
func (v *Versioned[T]) cleanup(validFrom Epoch) error {
	return v.history.DropRange(validFrom)
}

// renameEpoch implements Object by delegating to the underlying
// history.
func (v *Versioned[T]) renameEpoch(from, to Epoch) error {
	return v.history.RenameEpoch(from, to)
}
