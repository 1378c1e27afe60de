package jmvcc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressEpochsDensifiesLiveEpochsAndPreservesReads(t *testing.T) {
	rt := NewRuntime()
	cell := NewVersioned(0)

	tx1 := rt.Begin()
	Write(tx1, cell, 1)
	require.True(t, tx1.Commit())

	snapA := rt.TakeSnapshot()

	tx2 := rt.Begin()
	Write(tx2, cell, 2)
	require.True(t, tx2.Commit())

	reader := newTransaction(rt, snapA)
	require.Equal(t, 1, Read(reader, cell))

	comp := NewCompressor(rt)
	require.NoError(t, comp.CompressEpochs([]Object{cell}))

	require.Equal(t, 1, Read(reader, cell), "compression must not change what a still-live snapshot observes")

	require.Equal(t, Epoch(1), rt.EarliestEpoch())
	require.Equal(t, Epoch(2), rt.CurrentEpoch(), "current_epoch must be pulled down into the dense range along with the live epochs, or the next commit would advance from the old un-compressed value")

	rt.ReleaseSnapshot(snapA)
}

func TestCompressEpochsRebasesCurrentEpochWithNoLiveSnapshots(t *testing.T) {
	rt := NewRuntime()
	cell := NewVersioned(0)

	for i := 1; i <= 3; i++ {
		tx := rt.Begin()
		Write(tx, cell, i)
		require.True(t, tx.Commit())
	}
	require.Equal(t, 0, rt.LiveSnapshots())
	require.Equal(t, Epoch(4), rt.CurrentEpoch())

	comp := NewCompressor(rt)
	require.NoError(t, comp.CompressEpochs([]Object{cell}))

	require.Equal(t, Epoch(1), rt.CurrentEpoch(), "with no live snapshot to anchor the dense range, current_epoch resets to 1")
	require.Equal(t, Epoch(1), rt.EarliestEpoch())

	after := rt.Begin()
	require.Equal(t, 3, Read(after, cell))
	after.Rollback()
}
