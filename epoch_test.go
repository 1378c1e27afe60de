package jmvcc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClockStartsAtEpochOne(t *testing.T) {
	c := NewClock()
	require.Equal(t, Epoch(1), c.CurrentEpoch())
	require.Equal(t, Epoch(1), c.EarliestEpoch())
}

func TestClockAdvanceEpochIsMonotonic(t *testing.T) {
	c := NewClock()
	require.Equal(t, Epoch(2), c.AdvanceEpoch())
	require.Equal(t, Epoch(3), c.AdvanceEpoch())
	require.Equal(t, Epoch(3), c.CurrentEpoch())
}

func TestClockSetEarliestEpoch(t *testing.T) {
	c := NewClock()
	c.SetEarliestEpoch(7)
	require.Equal(t, Epoch(7), c.EarliestEpoch())
}
