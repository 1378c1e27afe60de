package jmvcc

// Object is the polymorphic contract a transaction drives every
// staged write through. Versioned[T] is the only implementation this
// module ships, but the interface lets a transaction commit a batch
// of differently-typed cells without type parameters leaking into the
// transaction itself.
type Object interface {
	// setup tentatively stages newValue against the version visible at
	// oldEpoch (the transaction's snapshot epoch), returning false if
	// doing so would conflict with another transaction: either the
	// tail is already tentative, or the committed version has already
	// moved past oldEpoch since the snapshot was taken.
	setup(oldEpoch Epoch, newValue any) bool

	// commit finalizes the tentative tail installed by setup and
	// registers the version it superseded for cleanup once no live
	// snapshot can still observe it.
	commit(epoch Epoch, reg *Registry)

	// rollback undoes the tentative tail installed by setup.
	rollback()

	// cleanup is invoked by the registry, with its lock released, to
	// physically discard a version once registered via commit.
	cleanup(validFrom Epoch) error

	// renameEpoch rewrites occurrences of from to to, used by epoch
	// compression.
	renameEpoch(from, to Epoch) error
}
