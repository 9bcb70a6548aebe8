package concurrent

import (
	"errors"
	"time"
)

var ErrScheduleTimeout = errors.New("schedule error: goroutine pool timed out")

// WorkerPool runs tasks on a bounded set of goroutines, spawning workers
// lazily up to the configured size.
// ref: https://sergey.kamardin.org/articles/million-websocket-and-go/
type WorkerPool struct {
	sem  chan struct{}
	work chan func()
}

func NewWorkerPool(size, queue int) *WorkerPool {
	return &WorkerPool{
		sem:  make(chan struct{}, size),
		work: make(chan func(), queue),
	}
}

// Spawn pre-starts n idle workers so the first bursts of tasks do not pay
// the goroutine startup cost.
func (p *WorkerPool) Spawn(n int) {
	for i := 0; i < n; i++ {
		p.sem <- struct{}{}
		go p.worker(func() {})
	}
}

// Schedule blocks until the task is queued or a worker slot frees up.
func (p *WorkerPool) Schedule(task func()) {
	p.schedule(task, nil)
}

func (p *WorkerPool) ScheduleTimeout(timeout time.Duration, task func()) error {
	return p.schedule(task, time.After(timeout))
}

func (p *WorkerPool) schedule(task func(), timeout <-chan time.Time) error {
	select {
	case <-timeout:
		return ErrScheduleTimeout
	case p.work <- task:
		return nil
	case p.sem <- struct{}{}:
		go p.worker(task)
		return nil
	}
}

func (p *WorkerPool) worker(task func()) {
	defer func() { <-p.sem }()

	task()
	for task := range p.work {
		task()
	}
}

func (p *WorkerPool) Close() {
	close(p.work)
}
