package jmvcc

import "sync"

// current is an opt-in binding from goroutine to Transaction, for
// callers who would rather not thread a *Transaction through every
// function call. Binding is keyed by a caller-supplied token rather
// than the actual goroutine id, since Go deliberately has no public
// way to read the latter; RunInTransaction below is the common path:
// given a token, it binds and unbinds it around every attempt.
type current struct {
	mu   sync.Mutex
	txns map[*currentToken]*Transaction
}

// currentToken identifies one logical "thread" of transaction use.
type currentToken struct{}

var globalCurrent = &current{txns: make(map[*currentToken]*Transaction)}

// NewToken allocates a token to bind a Transaction to.
func NewToken() *currentToken {
	return &currentToken{}
}

// Bind associates tok with tx, so CurrentTransaction(tok) returns it.
func Bind(tok *currentToken, tx *Transaction) {
	globalCurrent.mu.Lock()
	defer globalCurrent.mu.Unlock()
	globalCurrent.txns[tok] = tx
}

// Unbind removes tok's association, if any.
func Unbind(tok *currentToken) {
	globalCurrent.mu.Lock()
	defer globalCurrent.mu.Unlock()
	delete(globalCurrent.txns, tok)
}

// CurrentTransaction returns the Transaction bound to tok, or
// ErrNoActiveTransaction if none is bound.
func CurrentTransaction(tok *currentToken) (*Transaction, error) {
	globalCurrent.mu.Lock()
	defer globalCurrent.mu.Unlock()
	tx, ok := globalCurrent.txns[tok]
	if !ok {
		return nil, ErrNoActiveTransaction
	}
	return tx, nil
}

// RunInTransaction begins a transaction against rt, binds it to tok
// for the duration of fn, and commits on return, retrying fn against a
// fresh transaction as long as Commit reports a conflict. fn should be
// idempotent: it may run more than once.
func RunInTransaction(rt *Runtime, tok *currentToken, fn func(tx *Transaction) error) error {
	for {
		tx := rt.Begin()
		Bind(tok, tx)
		err := fn(tx)
		if err != nil {
			tx.Rollback()
			Unbind(tok)
			return err
		}
		if tx.Commit() {
			Unbind(tok)
			return nil
		}
		Unbind(tok)
	}
}
