// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"io"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/pathspace/lib/spaceerr"
)

// Executor runs units of work. Submit returns an error only when the
// executor can no longer accept work.
type Executor interface {
	Submit(work func()) error
	// SubmitMain runs work on the executor's single designated
	// goroutine.
	SubmitMain(work func()) error
	Shutdown()
	Size() int
}

// Pool is an Executor backed by a fixed number of worker goroutines
// and one goroutine locked to its OS thread for main-thread work.
// Queues are unbounded, so work running on the pool may submit more
// work without waiting for a free worker.
type Pool struct {
	logger  *slog.Logger
	size    int
	work    *queue
	main    *queue
	workers errgroup.Group
}

// NewPool starts workers goroutines (at least one) plus the main
// goroutine. A nil logger discards output.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pool := &Pool{
		logger: logger,
		size:   workers,
		work:   newQueue(),
		main:   newQueue(),
	}

	for i := 0; i < workers; i++ {
		pool.workers.Go(func() error {
			pool.drain(pool.work)
			return nil
		})
	}
	pool.workers.Go(func() error {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		pool.drain(pool.main)
		return nil
	})
	return pool
}

// Submit queues work for any worker. It never blocks.
func (p *Pool) Submit(work func()) error {
	return p.work.push(work)
}

// SubmitMain queues work for the pinned goroutine.
func (p *Pool) SubmitMain(work func()) error {
	return p.main.push(work)
}

// Size returns the number of general workers.
func (p *Pool) Size() int { return p.size }

// Shutdown stops accepting work, lets queued work finish, and waits for
// every worker to exit. It is idempotent.
func (p *Pool) Shutdown() {
	p.work.close()
	p.main.close()
	_ = p.workers.Wait()
}

func (p *Pool) drain(q *queue) {
	for {
		work, ok := q.pop()
		if !ok {
			return
		}
		p.run(work)
	}
}

func (p *Pool) run(work func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger.Warn("executor work panicked", "panic", recovered)
		}
	}()
	work()
}

// Inline returns an Executor that runs work synchronously on the
// submitting goroutine. It never refuses work.
func Inline() Executor { return inline{} }

type inline struct{}

func (inline) Submit(work func()) error     { work(); return nil }
func (inline) SubmitMain(work func()) error { work(); return nil }
func (inline) Shutdown()                    {}
func (inline) Size() int                    { return 1 }

// queue is an unbounded FIFO of work. pop blocks until work arrives or
// the queue is closed and empty.
type queue struct {
	mu     sync.Mutex
	ready  *sync.Cond
	items  []func()
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(work func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return spaceerr.New(spaceerr.ShuttingDown, "executor is shut down")
	}
	q.items = append(q.items, work)
	q.ready.Signal()
	return nil
}

func (q *queue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.ready.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	work := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return work, true
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.ready.Broadcast()
}
