package utils

import (
	"sync"

	"go.uber.org/zap"

	"github.com/armada-chat/armada/middleware/log"
)

// WorkerPool is a bounded goroutine pool for side work that must not run
// on request goroutines: push dispatch, agent calls, inline accounting.
type WorkerPool struct {
	jobQueue  chan func()
	workerNum int
	wg        sync.WaitGroup
	quit      chan struct{}
	logger    *logger.Logger
}

// NewWorkerPool creates a pool with the given worker count and queue size
func NewWorkerPool(workerNum, queueSize int, log *logger.Logger) *WorkerPool {
	if workerNum < 1 {
		workerNum = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &WorkerPool{
		jobQueue:  make(chan func(), queueSize),
		workerNum: workerNum,
		quit:      make(chan struct{}),
		logger:    log,
	}
}

// Start launches the workers
func (p *WorkerPool) Start() {
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.jobQueue:
					// A panicking job must not take the worker down.
					func() {
						defer func() {
							if r := recover(); r != nil {
								p.logger.Error("worker recovered from panic",
									zap.Int("worker_id", workerID),
									zap.Any("panic", r),
								)
							}
						}()
						job()
					}()
				case <-p.quit:
					return
				}
			}
		}(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.workerNum))
}

// Submit queues a job. Blocks when the queue is full rather than dropping.
func (p *WorkerPool) Submit(job func()) {
	p.jobQueue <- job
}

// Stop signals the workers and waits for them to exit
func (p *WorkerPool) Stop() {
	close(p.quit)
	p.wg.Wait()
}
