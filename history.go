package jmvcc

import "sync/atomic"

// entry is one version in a history: the value is visible to any
// snapshot whose epoch is strictly less than validTo. The tail entry
// of a block carries validTo == sentinelValidTo, meaning "valid until
// further notice."
type entry[T any] struct {
	validTo Epoch
	value   T
}

// historyBlock is an immutable snapshot of a version history. A
// History never mutates a block in place; every change installs a new
// block via CompareAndSwap, so concurrent readers walking an old block
// never observe a half-written entry.
type historyBlock[T any] struct {
	entries []entry[T]
}

// History is a lock-free, CAS-protected chain of versions for a single
// cell. Entries are kept in ascending validTo order, oldest first; the
// last entry is the current tail.
type History[T any] struct {
	block atomic.Pointer[historyBlock[T]]
}

// NewHistory creates a History whose only entry is initial, valid from
// the beginning of time until further notice.
func NewHistory[T any](initial T) *History[T] {
	h := &History[T]{}
	h.block.Store(&historyBlock[T]{entries: []entry[T]{{validTo: sentinelValidTo, value: initial}}})
	return h
}

// load returns the current block. Never mutate the returned slice.
func (h *History[T]) load() *historyBlock[T] {
	return h.block.Load()
}

// Size returns the number of entries currently in the history.
func (h *History[T]) Size() int {
	return len(h.load().entries)
}

// ReadAt returns the value visible to a snapshot taken at asOf,
// scanning backward from the tail as the original does, and reports
// whether any entry covers that epoch. The tail has no upper bound and
// the oldest entry has no lower bound, so every epoch is covered and
// the boolean is always true for a non-empty history.
func (h *History[T]) ReadAt(asOf Epoch) (T, bool) {
	entries := h.load().entries
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.validTo == sentinelValidTo || asOf < e.validTo {
			if i == 0 || entries[i-1].validTo <= asOf {
				return e.value, true
			}
		}
	}
	var zero T
	return zero, false
}

// ValidFrom returns the epoch the current tail version became valid
// at, or 0 if the tail is still the history's original value. setup
// compares this against a transaction's snapshot epoch to detect a
// write-write conflict: if some other transaction's commit moved this
// past the snapshot epoch, the snapshot is stale for writing.
func (h *History[T]) ValidFrom() Epoch {
	entries := h.load().entries
	n := len(entries)
	if n < 2 {
		return 0
	}
	return entries[n-2].validTo
}

// Latest returns the value held by the tail entry, regardless of any
// snapshot's view.
func (h *History[T]) Latest() T {
	entries := h.load().entries
	return entries[len(entries)-1].value
}

// Append closes out the current tail at closeAt and installs value as
// the new tail. It retries the compare-and-swap against concurrent
// Append/PopBack/DropRange callers until it wins. closeAt must be
// greater than the current tail's lower bound; violating that is a
// caller bug and is reported as an InvariantViolation rather than
// silently reordering history.
func (h *History[T]) Append(closeAt Epoch, value T) error {
	for {
		old := h.load()
		n := len(old.entries)
		tail := old.entries[n-1]
		lowerBound := Epoch(0)
		if n > 1 {
			lowerBound = old.entries[n-2].validTo
		}
		if closeAt <= lowerBound {
			return newInvariantViolation(KindEpochOutOfOrder, "append closeAt not after history's current lower bound")
		}
		next := make([]entry[T], n+1)
		copy(next, old.entries)
		next[n-1] = entry[T]{validTo: closeAt, value: tail.value}
		next[n] = entry[T]{validTo: sentinelValidTo, value: value}
		newBlock := &historyBlock[T]{entries: next}
		if h.block.CompareAndSwap(old, newBlock) {
			return nil
		}
	}
}

// PopBack removes the tail entry and reopens the new tail, returning
// the value that was removed. It is the inverse of Append. Versioned
// stages tentative writes outside its history, so its rollback does
// not call PopBack.
func (h *History[T]) PopBack() (T, error) {
	for {
		old := h.load()
		n := len(old.entries)
		if n < 2 {
			var zero T
			return zero, errHistoryUnderflow("pop_back on a history with fewer than two entries")
		}
		removed := old.entries[n-1]
		next := make([]entry[T], n-1)
		copy(next, old.entries[:n-1])
		next[n-2] = entry[T]{validTo: sentinelValidTo, value: old.entries[n-2].value}
		newBlock := &historyBlock[T]{entries: next}
		if h.block.CompareAndSwap(old, newBlock) {
			return removed.value, nil
		}
	}
}

// DropRange removes every entry whose validTo is <= upTo; the tail is
// never removed. On a history holding only its tail it returns a
// HistoryUnderflow InvariantViolation. It is used by cleanup to
// discard versions no live snapshot can observe any longer.
func (h *History[T]) DropRange(upTo Epoch) error {
	for {
		old := h.load()
		n := len(old.entries)
		if n < 2 {
			return errHistoryUnderflow("drop_range would remove the tail entry")
		}
		cut := 0
		for cut < n-1 && old.entries[cut].validTo <= upTo {
			cut++
		}
		if cut == 0 {
			return nil
		}
		next := make([]entry[T], n-cut)
		copy(next, old.entries[cut:])
		newBlock := &historyBlock[T]{entries: next}
		if h.block.CompareAndSwap(old, newBlock) {
			return nil
		}
	}
}

// RenameEpoch rewrites every occurrence of from to to across the
// history, used by epoch compression to densify the epoch space. It
// refuses a rename that would violate the strictly ascending order of
// validTo values.
func (h *History[T]) RenameEpoch(from, to Epoch) error {
	for {
		old := h.load()
		n := len(old.entries)
		next := make([]entry[T], n)
		copy(next, old.entries)
		changed := false
		for i := range next {
			if next[i].validTo == from {
				next[i].validTo = to
				changed = true
			}
		}
		if !changed {
			return nil
		}
		for i := 1; i < n; i++ {
			if next[i].validTo != sentinelValidTo && next[i].validTo <= next[i-1].validTo {
				return newInvariantViolation(KindRenameRejected, "rename_epoch would violate strictly ascending validTo order")
			}
		}
		newBlock := &historyBlock[T]{entries: next}
		if h.block.CompareAndSwap(old, newBlock) {
			return nil
		}
	}
}

// Validate checks that validTo values are strictly ascending and that
// only the last entry carries the sentinel. It is used by diagnostics,
// never on a hot path.
func (h *History[T]) Validate() error {
	entries := h.load().entries
	if len(entries) == 0 {
		return errHistoryUnderflow("history has no entries")
	}
	for i, e := range entries {
		if e.validTo == sentinelValidTo && i != len(entries)-1 {
			return newInvariantViolation(KindRegistryCorrupt, "non-tail entry carries the open-ended sentinel")
		}
		if i > 0 && e.validTo != sentinelValidTo && e.validTo <= entries[i-1].validTo {
			return newInvariantViolation(KindEpochOutOfOrder, "validTo values are not strictly ascending")
		}
	}
	return nil
}
