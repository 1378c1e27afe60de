package jmvcc

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Dump writes a human-readable snapshot of the runtime's internal
// state to w: the current and earliest epoch, the number of live
// snapshots, and the number of cleanup entries still pending. It is
// meant for debugging a stuck test or a production incident, not for
// the hot path.
func (rt *Runtime) Dump(w io.Writer) {
	fmt.Fprintf(w, "current_epoch=%d earliest_epoch=%d live_snapshots=%d pending_cleanups=%d reclaim_failures=%d\n",
		rt.CurrentEpoch(), rt.EarliestEpoch(), rt.LiveSnapshots(), rt.PendingCleanups(), rt.reclaimer.Failures())
}

// LogState emits the same information as Dump through logrus, at info
// level, tagged so a log aggregator can alert on pending_cleanups
// climbing without bound.
func (rt *Runtime) LogState() {
	logrus.WithFields(logrus.Fields{
		"current_epoch":    uint64(rt.CurrentEpoch()),
		"earliest_epoch":   uint64(rt.EarliestEpoch()),
		"live_snapshots":   rt.LiveSnapshots(),
		"pending_cleanups": rt.PendingCleanups(),
		"reclaim_failures": rt.reclaimer.Failures(),
	}).Info("jmvcc runtime state")
}
