// Package signerlock serializes use of the destination signer.
//
// The transfer engine and fee scheduler of every network share one signing
// key and therefore one account nonce. Each submission holds the lock from
// nonce read until the extrinsic is finalized.
package signerlock

import (
	"context"
	"sync"
)

// Locker hands out exclusive use of the signer.
type Locker interface {
	// Lock blocks until the signer is free or ctx is done. The returned func
	// releases it and is safe to call more than once.
	Lock(ctx context.Context) (func(), error)
}

// MutexLocker is an in-process Locker.
type MutexLocker struct {
	ch chan struct{}
}

// NewMutexLocker creates an in-process locker.
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{ch: make(chan struct{}, 1)}
}

func (m *MutexLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case m.ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-m.ch })
	}, nil
}
