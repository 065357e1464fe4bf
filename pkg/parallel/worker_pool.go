// Package parallel runs independent jobs, such as scenario simulations, on a
// bounded set of goroutines.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
)

var (
	// ErrTooManyWorkers is returned when the worker count exceeds MaxWorkers
	ErrTooManyWorkers = errors.New("worker count exceeds maximum")

	// ErrPoolClosed is returned by Submit after Close
	ErrPoolClosed = errors.New("worker pool closed")
)

// MaxWorkers bounds the pool size so the queue buffer cannot overflow
const MaxWorkers = math.MaxInt / 2

// PanicError is the error a job yields when it panics
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// Pool runs submitted jobs on a fixed number of goroutines
type Pool struct {
	workers int
	jobs    chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards jobs against close during send
	closed  bool
	panics  atomic.Int64
	logger  logging.Logger
}

// NewPool starts workers goroutines. A count of zero or less means one.
func NewPool(workers int, logger logging.Logger) (*Pool, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	p := &Pool{
		workers: workers,
		jobs:    make(chan func(), workers*2),
		logger:  logging.OrDefault(logger).With(logging.Component("parallel")),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p, nil
}

// Workers returns the pool size
func (p *Pool) Workers() int { return p.workers }

// Panics returns how many jobs have panicked
func (p *Pool) Panics() int64 { return p.panics.Load() }

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("job panic recovered", logging.Any("panic", r))
		}
	}()
	job()
}

// Submit queues a job. It blocks while the queue is full and gives up when
// ctx is done or the pool is closed.
func (p *Pool) Submit(ctx context.Context, job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for the queued ones to finish
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Map runs fn for every index in [0, n) on the pool and returns the results
// and errors by index. A panicking call yields a *PanicError. Indices not
// submitted because ctx ended get ctx.Err().
func Map[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, []error) {
	out := make([]T, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		err := p.Submit(ctx, func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = &PanicError{Value: r}
				}
			}()
			out[i], errs[i] = fn(ctx, i)
		})
		if err != nil {
			wg.Done()
			for j := i; j < n; j++ {
				errs[j] = err
			}
			break
		}
	}
	wg.Wait()
	return out, errs
}
