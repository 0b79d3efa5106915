package connector

import "sync/atomic"

// transactionLock serializes mutation workflows of one connector instance.
//
// It is a single-slot semaphore: acquisition blocks without timeout, and
// release is a no-op when the slot is not held, so it can be called from any
// exit path without tracking ownership.
//
// This is client-side mutual exclusion only. It does not protect against
// other clients writing to the repository concurrently.
type transactionLock struct {
	slot chan struct{}

	acquired atomic.Int64
	released atomic.Int64
}

func newTransactionLock() *transactionLock {
	return &transactionLock{slot: make(chan struct{}, 1)}
}

// lock blocks until the slot is free.
func (l *transactionLock) lock() {
	l.slot <- struct{}{}
	l.acquired.Add(1)
}

// unlock frees the slot. It reports whether the slot was held.
func (l *transactionLock) unlock() bool {
	select {
	case <-l.slot:
		l.released.Add(1)
		return true
	default:
		return false
	}
}
