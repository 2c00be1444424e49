// Package worker provides a fixed pool of OS-thread-locked goroutines with
// stable worker IDs.
//
// The NUMA graph layout assigns each worker a contiguous node partition and
// has the owning worker allocate and populate that partition's arena. Workers
// lock their OS thread so that first-touch page placement, and any NUMA
// binding applied by the embedding runtime, stays with the thread doing the
// touching.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("worker: pool is closed")

// Pool manages a fixed set of goroutines addressed by worker ID in
// [0, Size()).
type Pool struct {
	size   int
	workCh []chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewPool creates a pool with size workers. A non-positive size defaults to
// runtime.GOMAXPROCS(0).
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		size:   size,
		workCh: make([]chan func(), size),
		stopCh: make(chan struct{}),
	}

	p.wg.Add(size)
	for tid := 0; tid < size; tid++ {
		p.workCh[tid] = make(chan func(), 1)
		go p.worker(tid)
	}

	return p
}

func (p *Pool) worker(tid int) {
	defer p.wg.Done()

	// Pin the goroutine so pages faulted in here stay local to this thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-p.stopCh:
			return
		case fn := <-p.workCh[tid]:
			fn()
		}
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// OnEach runs fn exactly once on every worker, concurrently, and waits for
// all of them. The first non-nil error is returned; remaining workers still
// run to completion so partially built state stays consistent.
func (p *Pool) OnEach(ctx context.Context, fn func(tid int) error) error {
	if p.closed.Load() {
		return ErrClosed
	}

	results := make(chan error, p.size)
	submitted := 0

	for tid := 0; tid < p.size; tid++ {
		tid := tid
		job := func() { results <- fn(tid) }

		select {
		case p.workCh[tid] <- job:
			submitted++
		case <-p.stopCh:
			return p.drain(results, submitted, ErrClosed)
		case <-ctx.Done():
			return p.drain(results, submitted, ctx.Err())
		}
	}

	return p.drain(results, submitted, nil)
}

// drain waits for outstanding jobs and folds in their errors.
func (p *Pool) drain(results chan error, submitted int, err error) error {
	for i := 0; i < submitted; i++ {
		if jobErr := <-results; jobErr != nil && err == nil {
			err = jobErr
		}
	}
	return err
}

// Close stops all workers. It must not be called concurrently with OnEach.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.stopCh)
	p.wg.Wait()
}
