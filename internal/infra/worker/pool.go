// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Pool runs submitted tasks on a fixed set of goroutines. Submissions after
// Shutdown are dropped; Shutdown waits for in-flight tasks to finish.
type Pool struct {
	tasks   chan func()
	wg      sync.WaitGroup
	quit    chan struct{}
	once    sync.Once
	log     *zerolog.Logger
	workers int
}

func NewPool(workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &Pool{
		tasks:   make(chan func(), queueSize),
		quit:    make(chan struct{}),
		log:     logger,
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.safeRun(id, task)
		case <-p.quit:
			// Drain what is already queued before exiting.
			for {
				select {
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					p.safeRun(id, task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) safeRun(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("worker task panicked")
		}
	}()
	task()
}

// Submit enqueues a task. Returns false when the pool is shutting down or
// the queue is full.
func (p *Pool) Submit(task func()) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.tasks <- task:
		return true
	case <-p.quit:
		return false
	default:
		p.log.Warn().Msg("worker queue full, task rejected")
		return false
	}
}

// Shutdown stops accepting work and waits for running tasks, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.quit) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
