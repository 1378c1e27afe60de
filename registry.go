package jmvcc

import (
	"sync"
	"sync/atomic"

	"github.com/google/btree"
)

// snapshotItem is the btree.Item stored per distinct live epoch. Most
// epochs have refcount 1, but two snapshots can legitimately share an
// epoch if they were taken back to back with no commit in between.
//
// A Snapshot returned to a caller holds a pointer to the very
// snapshotItem registered for it, not a copy of its epoch. That way,
// when epoch compression renumbers a live epoch, every outstanding
// Snapshot value sees the new number on its next read instead of
// silently going stale.
type snapshotItem struct {
	epoch    atomic.Uint64
	refcount int // guarded by Registry.mu
}

func newSnapshotItem(epoch Epoch) *snapshotItem {
	it := &snapshotItem{refcount: 1}
	it.epoch.Store(uint64(epoch))
	return it
}

// Less implements btree.Item, ordering purely by epoch.
func (s *snapshotItem) Less(than btree.Item) bool {
	return s.epoch.Load() < than.(*snapshotItem).epoch.Load()
}

// cleanupEntry is a pending (object, valid_from) pair: obj's version
// that became invalid at validFrom is garbage once no live snapshot
// older than validFrom remains.
type cleanupEntry struct {
	obj       Object
	validFrom Epoch
}

// Registry tracks every live snapshot's epoch and, for each, the list
// of versions that are garbage once that snapshot and every older one
// are gone: an epoch-ordered index plus a per-epoch cleanup list.
//
// The registry lock must never be held while calling back into an
// Object's cleanup method; every method below releases it before
// doing so.
type Registry struct {
	mu            sync.Mutex
	byEpoch       *btree.BTree
	cleanups      map[Epoch][]cleanupEntry
	onCleanupFail func(obj Object, validFrom Epoch, err error)
	onCleanupOK   func()
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byEpoch:  btree.New(32),
		cleanups: make(map[Epoch][]cleanupEntry),
	}
}

// RegisterSnapshot records a newly taken snapshot at epoch and
// returns the registry's canonical item for it.
func (r *Registry) RegisterSnapshot(epoch Epoch) *snapshotItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	probe := newSnapshotItem(epoch)
	if existing := r.byEpoch.Get(probe); existing != nil {
		item := existing.(*snapshotItem)
		item.refcount++
		return item
	}
	r.byEpoch.ReplaceOrInsert(probe)
	return probe
}

// predecessorLocked returns the largest live epoch strictly less than
// epoch, if any. Callers must hold r.mu.
func (r *Registry) predecessorLocked(epoch Epoch) (Epoch, bool) {
	var found Epoch
	ok := false
	r.byEpoch.DescendLessOrEqual(newSnapshotItem(epoch-1), func(it btree.Item) bool {
		found = Epoch(it.(*snapshotItem).epoch.Load())
		ok = true
		return false
	})
	return found, ok
}

// RegisterCleanup records that obj's version became invalid at
// epoch. If a live snapshot older than epoch exists, the entry is
// filed under that snapshot's epoch to be reclaimed when it goes
// away; otherwise the version is already unobservable and is cleaned
// up immediately, with the registry lock released first.
func (r *Registry) RegisterCleanup(obj Object, epoch Epoch) {
	r.mu.Lock()
	pred, ok := r.predecessorLocked(epoch)
	if ok {
		r.cleanups[pred] = append(r.cleanups[pred], cleanupEntry{obj: obj, validFrom: epoch})
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	if err := obj.cleanup(epoch); err != nil {
		if r.onCleanupFail != nil {
			r.onCleanupFail(obj, epoch, err)
		}
	} else if r.onCleanupOK != nil {
		r.onCleanupOK()
	}
}

// RemoveSnapshot drops one reference to the snapshot item returned by
// RegisterSnapshot. Once its refcount reaches zero the snapshot is
// removed from the index and its cleanup list is transferred to the
// next-older live snapshot, or, if none remains, destroyed
// immediately. The registry lock is released before any
// Object.cleanup call.
func (r *Registry) RemoveSnapshot(item *snapshotItem) error {
	r.mu.Lock()
	if existing := r.byEpoch.Get(item); existing == nil {
		r.mu.Unlock()
		return newInvariantViolation(KindSnapshotNotFound, "remove_snapshot on an epoch with no registered snapshot")
	}
	item.refcount--
	if item.refcount > 0 {
		r.mu.Unlock()
		return nil
	}
	epoch := Epoch(item.epoch.Load())
	r.byEpoch.Delete(item)
	list := r.cleanups[epoch]
	delete(r.cleanups, epoch)

	pred, ok := r.predecessorLocked(epoch)
	if ok {
		r.cleanups[pred] = append(r.cleanups[pred], list...)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	for _, e := range list {
		if err := e.obj.cleanup(e.validFrom); err != nil {
			if r.onCleanupFail != nil {
				// best-effort: a failed cleanup leaks that version
				// rather than corrupting the registry.
				r.onCleanupFail(e.obj, e.validFrom, err)
			}
		} else if r.onCleanupOK != nil {
			r.onCleanupOK()
		}
	}
	return nil
}

// EarliestLiveEpoch returns the smallest epoch with a live snapshot,
// and false if the registry currently holds none.
func (r *Registry) EarliestLiveEpoch() (Epoch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	min := r.byEpoch.Min()
	if min == nil {
		return 0, false
	}
	return Epoch(min.(*snapshotItem).epoch.Load()), true
}

// LiveCount returns the number of distinct live epochs currently
// registered.
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEpoch.Len()
}

// RenameEpochs rewrites the registry's own bookkeeping — the live
// snapshot index and the cleanup lists keyed by epoch — according to
// renames. It is called by Compressor alongside each Object's
// renameEpoch, so the registry's notion of which epochs are live stays
// consistent with the epoch values objects now store.
func (r *Registry) RenameEpochs(renames map[Epoch]Epoch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []*snapshotItem
	r.byEpoch.Ascend(func(it btree.Item) bool {
		items = append(items, it.(*snapshotItem))
		return true
	})
	r.byEpoch = btree.New(32)
	for _, item := range items {
		if to, ok := renames[Epoch(item.epoch.Load())]; ok {
			item.epoch.Store(uint64(to))
		}
		r.byEpoch.ReplaceOrInsert(item)
	}

	renamed := make(map[Epoch][]cleanupEntry, len(r.cleanups))
	for epoch, list := range r.cleanups {
		to := epoch
		if t, ok := renames[epoch]; ok {
			to = t
		}
		renamed[to] = append(renamed[to], list...)
	}
	r.cleanups = renamed
}

// liveEpochs returns every currently registered snapshot epoch, in
// btree iteration order (ascending).
func (r *Registry) liveEpochs() []Epoch {
	r.mu.Lock()
	defer r.mu.Unlock()
	epochs := make([]Epoch, 0, r.byEpoch.Len())
	r.byEpoch.Ascend(func(it btree.Item) bool {
		epochs = append(epochs, Epoch(it.(*snapshotItem).epoch.Load()))
		return true
	})
	return epochs
}

// PendingCleanups returns the total number of (object, valid_from)
// pairs still awaiting reclamation across all epochs. Diagnostics
// only.
func (r *Registry) PendingCleanups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, list := range r.cleanups {
		n += len(list)
	}
	return n
}
