package jmvcc

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Reclaimer is the deterministic replacement for the original's
// "for the moment, we leak" deferred-reclamation stub. It does not
// itself decide when a version becomes garbage — Registry already
// does that synchronously as snapshots come and go — but it is the
// single place failures in that path are observed: a cleanup that
// returns an error is counted and logged here rather than silently
// dropped or allowed to corrupt the registry's bookkeeping.
type Reclaimer struct {
	registry *Registry
	log      *logrus.Entry
	failures atomic.Uint64
}

// NewReclaimer wires itself as registry's failure handler.
func NewReclaimer(registry *Registry) *Reclaimer {
	r := &Reclaimer{
		registry: registry,
		log:      logrus.WithField("component", "reclaimer"),
	}
	registry.onCleanupFail = r.handleFailure
	return r
}

// handleFailure is invoked by Registry, with its lock already
// released, whenever an Object's cleanup call returns an error.
func (r *Reclaimer) handleFailure(obj Object, validFrom Epoch, err error) {
	r.failures.Add(1)
	r.log.WithError(err).WithField("valid_from", uint64(validFrom)).
		Warn("cleanup failed, version left in history")
	if iv, ok := AsInvariantViolation(err); ok {
		r.log.WithField("kind", iv.Kind).Error("cleanup failure was an invariant violation")
	}
}

// Failures returns the number of cleanup calls that have failed since
// the Reclaimer was created.
func (r *Reclaimer) Failures() uint64 {
	return r.failures.Load()
}
