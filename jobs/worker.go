package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sewstat/logger"
)

// ErrPoolStopped is returned by Submit after Stop
var ErrPoolStopped = errors.New("worker pool is shutting down")

// Job represents a unit of work. Execute receives a context that is
// cancelled when the pool stops.
type Job struct {
	ID      string
	Execute func(ctx context.Context) error
}

// WorkerPool manages a pool of workers for async job processing
type WorkerPool struct {
	workerCount int
	jobQueue    chan Job
	wg          sync.WaitGroup
	stopOnce    sync.Once
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan Job, workerCount*2), // Buffer size = 2x workers
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < workerCount; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	logger.Info("started worker pool", "workers", workerCount)
	return pool
}

// worker processes jobs from the queue
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			logger.Debug("processing job", "worker", id, "job", job.ID)
			if err := p.run(job); err != nil {
				logger.Error("job failed", "worker", id, "job", job.ID, "error", err)
			} else {
				logger.Debug("job completed", "worker", id, "job", job.ID)
			}

		case <-p.ctx.Done():
			logger.Debug("worker stopped", "worker", id)
			return
		}
	}
}

func (p *WorkerPool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return job.Execute(p.ctx)
}

// Submit adds a job to the queue, blocking while the queue is full.
// The queue channel is never closed so a late Submit cannot panic.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}
	select {
	case p.jobQueue <- job:
		logger.Debug("job submitted", "job", job.ID)
		return nil
	case <-p.ctx.Done():
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels running jobs and waits for the workers to exit. Queued
// jobs that have not started are dropped.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		logger.Info("stopping worker pool")
		p.cancel()
		p.wg.Wait()
		logger.Info("worker pool stopped", "dropped", len(p.jobQueue))
	})
}

// QueueSize returns the current number of jobs in queue
func (p *WorkerPool) QueueSize() int {
	return len(p.jobQueue)
}

// Workers returns the configured worker count
func (p *WorkerPool) Workers() int {
	return p.workerCount
}
