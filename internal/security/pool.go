package security

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// HashPool bounds the concurrency of CPU-bound Argon2 work so it never
// competes unbounded with request-handling goroutines for the
// scheduler; callers suspend on Acquire while a worker slot is busy.
type HashPool struct {
	sem *semaphore.Weighted
}

// NewHashPool builds a pool with the given parallelism. A non-positive
// value defaults to GOMAXPROCS.
func NewHashPool(parallelism int) *HashPool {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	return &HashPool{sem: semaphore.NewWeighted(int64(parallelism))}
}

// Run acquires a slot, blocking the caller until one frees up or ctx is
// canceled, then executes fn.
func (p *HashPool) Run(ctx context.Context, fn func() (string, error)) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)
	return fn()
}

// RunErr is Run's error-only variant, used by Verify.
func (p *HashPool) RunErr(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
