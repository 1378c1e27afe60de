package jmvcc

import "sort"

// Compressor renames a contiguous set of live epochs into a small
// dense range, so that a workload with a long-lived process but a
// short-lived working set of epochs does not walk current_epoch past
// its practical limit. It is optional and typically run from a
// background goroutine when EarliestEpoch has drifted far from 1.
type Compressor struct {
	rt *Runtime
}

// NewCompressor returns a Compressor bound to rt.
func NewCompressor(rt *Runtime) *Compressor {
	return &Compressor{rt: rt}
}

// CompressEpochs renames every live epoch (every registered snapshot
// epoch, in ascending order) plus current_epoch itself to a dense run
// starting at 1, and rewires every Object in objs with a matching
// renameEpoch call per old->new pair. Including current_epoch in the
// same dense run is what actually bounds epoch growth: without it,
// the next commit would advance from wherever current_epoch drifted
// to, regardless of how small the live epochs were just renamed to.
//
// It refuses to run while a commit is in flight by taking the commit
// lock for its duration. If an object rejects a rename, it returns
// that error at once; renames already applied to objects are not
// undone, and the registry and clock are left unchanged.
func (c *Compressor) CompressEpochs(objs []Object) error {
	c.rt.commitMu.Lock()
	defer c.rt.commitMu.Unlock()

	live := c.rt.liveEpochsSorted()
	oldCurrent := c.rt.clock.CurrentEpoch()

	all := live
	if len(all) == 0 || all[len(all)-1] != oldCurrent {
		all = append(all, oldCurrent)
	}

	renames := make(map[Epoch]Epoch, len(all))
	dense := Epoch(1)
	changed := false
	for _, e := range all {
		if e != dense {
			renames[e] = dense
			changed = true
		}
		dense++
	}
	if !changed {
		return nil
	}

	// Apply renames in ascending order of the old epoch: every target is
	// smaller than every old epoch not yet renamed, so no value is
	// renamed twice.
	for _, oldEpoch := range all {
		newEpoch, ok := renames[oldEpoch]
		if !ok {
			continue
		}
		for _, obj := range objs {
			if err := obj.renameEpoch(oldEpoch, newEpoch); err != nil {
				return err
			}
		}
	}
	c.rt.registry.RenameEpochs(renames)

	newCurrent := Epoch(len(all))
	c.rt.clock.SetCurrentEpoch(newCurrent)
	if len(live) > 0 {
		c.rt.clock.SetEarliestEpoch(1)
	} else {
		c.rt.clock.SetEarliestEpoch(newCurrent)
	}
	return nil
}

// liveEpochsSorted returns every currently registered snapshot epoch
// in ascending order.
func (rt *Runtime) liveEpochsSorted() []Epoch {
	epochs := rt.registry.liveEpochs()
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })
	return epochs
}
