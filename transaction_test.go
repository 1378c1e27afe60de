package jmvcc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionCommitMakesWriteVisibleToLaterSnapshots(t *testing.T) {
	rt := NewRuntime()
	cell := NewVersioned(0)

	tx := rt.Begin()
	Write(tx, cell, 1)
	require.True(t, tx.Commit())

	snap := rt.Begin()
	require.Equal(t, 1, Read(snap, cell))
	snap.Rollback()
}

func TestSnapshotReadIsStableAcrossLaterCommits(t *testing.T) {
	rt := NewRuntime()
	cell := NewVersioned(0)

	tx0 := rt.Begin()
	Write(tx0, cell, 1)
	require.True(t, tx0.Commit())

	reader := rt.Begin()
	require.Equal(t, 1, Read(reader, cell))

	tx1 := rt.Begin()
	Write(tx1, cell, 2)
	require.True(t, tx1.Commit())

	require.Equal(t, 1, Read(reader, cell), "a snapshot must not observe commits that happen after it was taken")
	reader.Rollback()

	fresh := rt.Begin()
	require.Equal(t, 2, Read(fresh, cell))
	fresh.Rollback()
}

func TestSetupDetectsOverlappingTentativeWrites(t *testing.T) {
	cell := NewVersioned(0)

	require.True(t, cell.setup(0, 1), "first setup should stage its write uncontested")
	require.False(t, cell.setup(0, 2), "a second setup while the first is still pending must lose the race")

	cell.rollback()
	require.True(t, cell.setup(0, 3), "setup succeeds again once the pending write is rolled back")
	cell.rollback()
}

func TestCommitFailsWhenAnotherTransactionAlreadyMovedTheCellPastThisSnapshot(t *testing.T) {
	rt := NewRuntime()
	cell := NewVersioned(0)

	t1 := rt.Begin()
	t2 := rt.Begin()

	Write(t1, cell, 1)
	require.True(t, t1.Commit(), "t1 opened first and sees no conflict")

	Write(t2, cell, 2)
	require.False(t, t2.Commit(), "t2's snapshot predates t1's commit, so writing the same cell is a write-write conflict")

	final := rt.Begin()
	require.Equal(t, 1, Read(final, cell), "t2's write must never have taken effect")
	final.Rollback()
}

func TestSequentialCommitsToTheSameCellBothSucceed(t *testing.T) {
	rt := NewRuntime()
	cell := NewVersioned(0)

	txA := rt.Begin()
	Write(txA, cell, 1)
	require.True(t, txA.Commit(), "no other writer was pending, so the first commit always succeeds")

	txB := rt.Begin()
	Write(txB, cell, 2)
	require.True(t, txB.Commit(), "by the time the second transaction calls Commit the first has already finished, so it is a plain sequential write, not a conflict")

	final := rt.Begin()
	require.Equal(t, 2, Read(final, cell))
	final.Rollback()
}

func TestTransactionRollbackLeavesCommittedStateUntouched(t *testing.T) {
	rt := NewRuntime()
	cell := NewVersioned(42)

	tx := rt.Begin()
	Write(tx, cell, 99)
	tx.Rollback()

	after := rt.Begin()
	require.Equal(t, 42, Read(after, cell))
	after.Rollback()
}

func TestHistorySizeReachesZeroOnceNoSnapshotNeedsOldValues(t *testing.T) {
	rt := NewRuntime()
	cell := NewVersioned(0)

	for i := 1; i <= 5; i++ {
		tx := rt.Begin()
		Write(tx, cell, i)
		require.True(t, tx.Commit())
	}

	require.Equal(t, 0, rt.LiveSnapshots())
	require.Equal(t, 0, cell.HistorySize(), "every superseded version was cleaned up as soon as it had no snapshot left to serve")
}

func TestHistorySizeIsOneWhileALiveSnapshotStillNeedsTheSupersededValue(t *testing.T) {
	rt := NewRuntime()
	cell := NewVersioned(0)

	reader := rt.Begin()

	tx := rt.Begin()
	Write(tx, cell, 1)
	require.True(t, tx.Commit())

	require.Equal(t, 1, cell.HistorySize(), "reader's snapshot still needs the pre-commit value")

	reader.Rollback()
	require.Equal(t, 0, cell.HistorySize(), "releasing the last snapshot that needed it lets cleanup reclaim it")
}

func TestConcurrentCounterIncrementsUnderContentionAllSucceedEventually(t *testing.T) {
	rt := NewRuntime()
	counter := NewVersioned(0)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				for {
					tx := rt.Begin()
					cur := Read(tx, counter)
					Write(tx, counter, cur+1)
					if tx.Commit() {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	final := rt.Begin()
	require.Equal(t, workers*perWorker, Read(final, counter))
	final.Rollback()
}
