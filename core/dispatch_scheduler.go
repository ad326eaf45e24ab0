package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// dispatchQueuePerWorker sizes the pending-job buffer when none is given.
const dispatchQueuePerWorker = 64

// ErrDispatchQueueFull is returned by Schedule when every worker is busy and
// the pending buffer is full. The job is dropped; Schedule never blocks.
var ErrDispatchQueueFull = errors.New("core: dispatch queue is full")

// AsyncDispatchScheduler feeds dispatch jobs through a buffered channel to a
// fixed pool of workers. Jobs run on a context detached from the scheduling
// caller, so a cancelled request never aborts its fan-out. Workers start on
// the first Schedule and live as long as the scheduler.
type AsyncDispatchScheduler struct {
	runner  DispatchRunner
	jobs    chan scheduledDispatch
	workers int
	start   sync.Once
	wg      sync.WaitGroup
}

type scheduledDispatch struct {
	ctx context.Context
	job DispatchJob
}

// NewAsyncDispatchScheduler runs at most maxConcurrent fan-outs at a time and
// holds up to queueSize more; queueSize <= 0 picks a default per worker.
func NewAsyncDispatchScheduler(runner DispatchRunner, maxConcurrent int, queueSize int) *AsyncDispatchScheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultDispatchMaxConcurrent
	}
	if queueSize <= 0 {
		queueSize = maxConcurrent * dispatchQueuePerWorker
	}
	return &AsyncDispatchScheduler{
		runner:  runner,
		jobs:    make(chan scheduledDispatch, queueSize),
		workers: maxConcurrent,
	}
}

func (s *AsyncDispatchScheduler) Schedule(ctx context.Context, job DispatchJob) error {
	if s == nil || s.runner == nil {
		return fmt.Errorf("core: dispatch runner is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.start.Do(s.startWorkers)

	s.wg.Add(1)
	select {
	case s.jobs <- scheduledDispatch{ctx: context.WithoutCancel(ctx), job: job}:
		return nil
	default:
		s.wg.Done()
		return ErrDispatchQueueFull
	}
}

func (s *AsyncDispatchScheduler) startWorkers() {
	for range s.workers {
		go s.work()
	}
}

func (s *AsyncDispatchScheduler) work() {
	for next := range s.jobs {
		// The runner reports its own failures.
		_ = s.runner.RunDispatch(next.ctx, next.job)
		s.wg.Done()
	}
}

// Wait blocks until every accepted job finished or ctx is done.
func (s *AsyncDispatchScheduler) Wait(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ DispatchScheduler = (*AsyncDispatchScheduler)(nil)
