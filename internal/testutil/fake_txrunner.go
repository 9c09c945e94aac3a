package testutil

import (
	"context"
	"sync"
)

// FakeTxRunner runs fn directly against ctx without opening a real
// transaction, since the in-memory stores have no concept of
// commit/rollback to coordinate with.
type FakeTxRunner struct{}

func NewFakeTxRunner() *FakeTxRunner {
	return &FakeTxRunner{}
}

func (f *FakeTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// SerializingTxRunner runs each transaction under one process-wide
// mutex. In Postgres, concurrent reserves for the same identity
// serialise on the wallet row lock held to commit; the plain
// FakeTxRunner provides no isolation at all, so concurrency stress
// tests use this runner as the lock's stand-in. Not reentrant — service
// methods never nest WithTx.
type SerializingTxRunner struct {
	mu sync.Mutex
}

func NewSerializingTxRunner() *SerializingTxRunner {
	return &SerializingTxRunner{}
}

func (s *SerializingTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}
