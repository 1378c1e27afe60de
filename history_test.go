package jmvcc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryReadAtReturnsVersionVisibleAtEpoch(t *testing.T) {
	h := NewHistory(1)
	require.NoError(t, h.Append(5, 2))
	require.NoError(t, h.Append(9, 3))

	v, ok := h.ReadAt(1)
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = h.ReadAt(4)
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = h.ReadAt(5)
	require.True(t, ok)
	require.Equal(t, 2, v)

	v, ok = h.ReadAt(100)
	require.True(t, ok)
	require.Equal(t, 3, v)
}

func TestHistoryAppendRejectsNonIncreasingEpoch(t *testing.T) {
	h := NewHistory("a")
	require.NoError(t, h.Append(10, "b"))
	err := h.Append(10, "c")
	require.Error(t, err)
	_, isIV := AsInvariantViolation(err)
	require.True(t, isIV)
}

func TestHistoryPopBackUndoesAppend(t *testing.T) {
	h := NewHistory("a")
	require.NoError(t, h.Append(10, "b"))
	require.Equal(t, 2, h.Size())

	removed, err := h.PopBack()
	require.NoError(t, err)
	require.Equal(t, "b", removed)
	require.Equal(t, 1, h.Size())
	require.Equal(t, "a", h.Latest())
}

func TestHistoryPopBackUnderflows(t *testing.T) {
	h := NewHistory("a")
	_, err := h.PopBack()
	require.Error(t, err)
}

func TestHistoryDropRangeReclaimsOldVersions(t *testing.T) {
	h := NewHistory(0)
	require.NoError(t, h.Append(2, 1))
	require.NoError(t, h.Append(4, 2))
	require.NoError(t, h.Append(6, 3))
	require.Equal(t, 4, h.Size())

	require.NoError(t, h.DropRange(4))
	require.Equal(t, 2, h.Size())

	v, ok := h.ReadAt(5)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestHistoryDropRangeRefusesToDropTail(t *testing.T) {
	h := NewHistory(0)
	err := h.DropRange(1000)
	require.Error(t, err)
}

func TestHistoryRenameEpochPreservesOrdering(t *testing.T) {
	h := NewHistory("a")
	require.NoError(t, h.Append(5, "b"))
	require.NoError(t, h.Append(10, "c"))

	require.NoError(t, h.RenameEpoch(5, 1))
	require.NoError(t, h.RenameEpoch(10, 2))
	require.NoError(t, h.Validate())

	v, ok := h.ReadAt(0)
	require.True(t, ok)
	require.Equal(t, "a", v)
}

func TestHistoryRenameEpochRejectsCollision(t *testing.T) {
	h := NewHistory("a")
	require.NoError(t, h.Append(5, "b"))
	require.NoError(t, h.Append(10, "c"))

	err := h.RenameEpoch(5, 10)
	require.Error(t, err)
}

func TestHistoryValidateDetectsMisplacedSentinel(t *testing.T) {
	h := NewHistory("a")
	h.block.Store(&historyBlock[string]{entries: []entry[string]{
		{validTo: sentinelValidTo, value: "a"},
		{validTo: sentinelValidTo, value: "b"},
	}})
	require.Error(t, h.Validate())
}
