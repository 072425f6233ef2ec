package index

import (
	"context"
	"sync"
)

// workerPool runs blocking disk and scan work on a fixed number of
// goroutines so callers never block the scheduler directly. One pool is
// owned per store instance and drained by Close.
type workerPool struct {
	tasks chan func()
	wg    sync.WaitGroup

	closeOnce sync.Once
}

func newWorkerPool(workers int) *workerPool {
	if workers < 1 {
		workers = 4
	}
	p := &workerPool{
		tasks: make(chan func()),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// run executes fn on the pool and waits for it, honoring ctx while
// waiting for a free worker. Once a worker picks the task up it runs to
// completion regardless of cancellation.
func (p *workerPool) run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	task := func() { done <- fn() }

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Task already started; wait for it so state stays consistent.
		return <-done
	}
}

// close drains the pool, waiting for in-flight work.
func (p *workerPool) close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
