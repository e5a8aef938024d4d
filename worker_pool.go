// worker_pool.go implements the bounded pool of goroutines that execute
// submitted lookups. Concurrency is bounded by the worker count; the queue
// itself is unbounded, so submission never blocks and never rejects.
package main

import (
	"context"
	"log/slog"
	"sync"
)

// fetchFunc retrieves and renders compound data for one request. Implemented
// by Fetcher.FetchAndRender; swapped out in tests.
type fetchFunc func(ctx context.Context, query, format string, include3D bool) (string, error)

// WorkerPool runs at most N lookups concurrently. Submitted IDs queue in FIFO
// order until a worker is free. Every failure a worker encounters is recorded
// as a failed transition on the store; nothing terminates a worker goroutine.
type WorkerPool struct {
	store  *RequestStore
	fetch  fetchFunc
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []string
	closed bool
	wg     sync.WaitGroup
}

// NewWorkerPool creates a pool and starts its worker goroutines.
func NewWorkerPool(store *RequestStore, fetch fetchFunc, workers int, logger *slog.Logger) *WorkerPool {
	p := &WorkerPool{
		store:  store,
		fetch:  fetch,
		logger: logger,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	return p
}

// Submit enqueues a request ID for processing. It returns immediately
// regardless of queue depth. The store already holds the pending record,
// the queue is just a scheduling detail.
func (p *WorkerPool) Submit(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Warn("submit on closed pool", "request_id", id)
		return
	}
	p.queue = append(p.queue, id)
	p.cond.Signal()
}

// Close stops accepting work, lets the workers drain the queue, and waits
// for them to exit.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// workerLoop is the main processing loop for each worker goroutine.
func (p *WorkerPool) workerLoop(workerNum int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		id := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.process(id, workerNum)
	}
}

// process runs one fetch-and-render cycle for a request. Errors from the
// fetch or render stage become a failed terminal state; they never escape
// this boundary.
func (p *WorkerPool) process(id string, workerNum int) {
	if !p.store.SetProcessing(id) {
		// Already swept, or claimed by a racing transition. Nothing to do.
		return
	}

	req, ok := p.store.Get(id)
	if !ok {
		return
	}

	p.logger.Info("processing request",
		slog.String("request_id", id),
		slog.String("query", req.Query),
		slog.Int("worker_num", workerNum),
	)

	result, err := p.fetch(context.Background(), req.Query, req.Format, req.Include3D)
	if err != nil {
		p.logger.Error("request failed",
			slog.String("request_id", id),
			slog.String("error", err.Error()),
		)
		p.store.SetFailed(id, err.Error())
		return
	}

	p.logger.Info("request completed", slog.String("request_id", id))
	p.store.SetCompleted(id, result)
}
