package jmvcc

import "fmt"

// Status mirrors the lifecycle states a transaction passes through.
// Most callers only care about the terminal Committed/Failed states;
// the Restarting variants exist for diagnostics and retry loops that
// want to distinguish why a commit was retried.
type Status int

const (
	StatusUninitialized Status = iota
	StatusInitialized
	StatusRestarting
	StatusRestarted
	StatusCommitting
	StatusCommitted
	StatusFailed
)

// String renders a Status for logs and diagnostic dumps.
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "UNINITIALIZED"
	case StatusInitialized:
		return "INITIALIZED"
	case StatusRestarting:
		return "RESTARTING"
	case StatusRestarted:
		return "RESTARTED"
	case StatusCommitting:
		return "COMMITTING"
	case StatusCommitted:
		return "COMMITTED"
	case StatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// stagedWrite pairs an Object with the value a transaction wants it to
// hold once committed.
type stagedWrite struct {
	obj   Object
	value any
}

// Transaction is a single optimistic unit of work: it reads against a
// fixed Snapshot and stages writes in program order, then attempts to
// commit them all atomically against the runtime's current state.
type Transaction struct {
	rt       *Runtime
	snapshot Snapshot
	writes   []stagedWrite
	order    map[Object]int // index into writes, last-write-wins
	Status   Status
}

// newTransaction starts a transaction pinned to snap. Callers get one
// from Runtime.Begin.
func newTransaction(rt *Runtime, snap Snapshot) *Transaction {
	return &Transaction{
		rt:       rt,
		snapshot: snap,
		order:    make(map[Object]int),
		Status:   StatusInitialized,
	}
}

// Snapshot returns the transaction's fixed read view.
func (tx *Transaction) Snapshot() Snapshot {
	return tx.snapshot
}

// Read returns the value v holds as seen by the transaction: a write
// staged earlier in the same transaction is returned as-is, otherwise
// it falls back to the value visible at the transaction's snapshot.
func Read[T any](tx *Transaction, v *Versioned[T]) T {
	if idx, ok := tx.order[v]; ok {
		return tx.writes[idx].value.(T)
	}
	return v.Read(tx.snapshot.Epoch())
}

// Write stages v to hold value once tx commits. Calling Write more
// than once for the same cell keeps only the last value.
func Write[T any](tx *Transaction, v *Versioned[T], value T) {
	sw := stagedWrite{obj: v, value: value}
	if idx, ok := tx.order[v]; ok {
		tx.writes[idx] = sw
		return
	}
	tx.order[v] = len(tx.writes)
	tx.writes = append(tx.writes, sw)
}

// Commit attempts to install every staged write atomically. It
// returns true on success. A false return means a write-write
// conflict: either some other transaction's write is still tentatively
// pending against one of tx's targets, or one of them was already
// committed past tx's snapshot epoch. Every object tx had already set
// up is rolled back and tx's snapshot is released before returning,
// and the caller should retry with a fresh transaction. Either way
// the snapshot is released, so tx must not be rolled back afterward.
//
// Setup and commit both run under the runtime's commit lock, as one
// atomic section: checking an object's ValidFrom against tx's snapshot
// epoch and then appending to its history must not interleave with
// another transaction doing the same, or a write-write conflict could
// go undetected between the check and the append.
func (tx *Transaction) Commit() bool {
	tx.Status = StatusCommitting
	tx.rt.commitMu.Lock()

	for i, w := range tx.writes {
		if !w.obj.setup(tx.snapshot.Epoch(), w.value) {
			for j := 0; j < i; j++ {
				tx.writes[j].obj.rollback()
			}
			tx.rt.commitMu.Unlock()
			tx.Status = StatusFailed
			tx.rt.metrics.conflictsTotal.Inc()
			tx.rt.endSnapshot(tx.snapshot)
			return false
		}
	}

	epoch := tx.rt.clock.AdvanceEpoch()
	for _, w := range tx.writes {
		w.obj.commit(epoch, tx.rt.registry)
	}
	tx.rt.commitMu.Unlock()

	tx.Status = StatusCommitted
	tx.rt.metrics.commitsTotal.Inc()
	tx.rt.endSnapshot(tx.snapshot)
	return true
}

// Rollback discards every staged write without touching committed
// state and releases the transaction's snapshot.
func (tx *Transaction) Rollback() {
	for _, w := range tx.writes {
		w.obj.rollback()
	}
	tx.Status = StatusFailed
	tx.rt.endSnapshot(tx.snapshot)
}
