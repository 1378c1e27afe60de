package jmvcc

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrNoActiveTransaction is returned by CurrentTransaction when no
// transaction is bound to the given token.
var ErrNoActiveTransaction = errors.New("jmvcc: no active transaction")

// InvariantViolation represents a corrupted internal invariant:
// epochs out of order, a snapshot missing on removal, or a history
// underflow. These are bugs in the runtime or its caller, never a
// normal commit outcome.
type InvariantViolation struct {
	Kind   string
	Detail string
}

// Error implements the error interface.
func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("jmvcc: invariant violation (%s): %s", v.Kind, v.Detail)
}

// Invariant kinds. HistoryUnderflow is an InvariantViolation subclass.
const (
	KindHistoryUnderflow = "history_underflow"
	KindEpochOutOfOrder  = "epoch_out_of_order"
	KindSnapshotNotFound = "snapshot_not_found"
	KindRegistryCorrupt  = "registry_corrupt"
	KindRenameRejected   = "rename_rejected"
)

// newInvariantViolation builds an InvariantViolation wrapped with a
// stack trace, so a diagnostic dump taken later can report where the
// violation originated.
func newInvariantViolation(kind, detail string) error {
	return pkgerrors.WithStack(&InvariantViolation{Kind: kind, Detail: detail})
}

// errHistoryUnderflow is raised when popping or dropping would leave a
// history with no entries.
func errHistoryUnderflow(detail string) error {
	return newInvariantViolation(KindHistoryUnderflow, detail)
}

// AsInvariantViolation unwraps err (which may have been wrapped by
// github.com/pkg/errors) into an *InvariantViolation, if it is one.
func AsInvariantViolation(err error) (*InvariantViolation, bool) {
	var iv *InvariantViolation
	if errors.As(err, &iv) {
		return iv, true
	}
	return nil, false
}
