package frames

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bdougie/clipfeed/internal/models"
)

// ErrPoolClosed is returned by Map after Close
var ErrPoolClosed = errors.New("frame pool is closed")

// job is a single frame handed to a worker
type job struct {
	ctx    context.Context
	index  int
	task   models.FrameTask
	dst    []float32
	result chan<- jobResult
}

type jobResult struct {
	index int
	err   error
}

// Pool runs a Transform over frames with a fixed number of workers.
// It lives as long as the feeder that owns it.
type Pool struct {
	numWorkers int
	transform  Transform
	workQueue  chan job
	wg         sync.WaitGroup

	// mu is held for reading by every running Map and for writing by Close
	mu     sync.RWMutex
	closed bool
}

// NewPool starts numWorkers goroutines applying t
func NewPool(numWorkers int, t Transform) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	pool := &Pool{
		numWorkers: numWorkers,
		transform:  t,
		workQueue:  make(chan job, numWorkers),
	}
	pool.startWorkers()
	return pool
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.numWorkers
}

func (p *Pool) startWorkers() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for work := range p.workQueue {
				err := work.ctx.Err()
				if err == nil {
					err = p.transform.ProcessInto(work.ctx, work.task, work.dst)
				}
				work.result <- jobResult{index: work.index, err: err}
			}
		}()
	}
}

// Map processes tasks[i] into dst[i*frameSize:(i+1)*frameSize] for every i.
// Output order follows input order regardless of completion order. Every task
// runs to completion; the first failure by task index is returned.
func (p *Pool) Map(ctx context.Context, tasks []models.FrameTask, dst []float32, frameSize int) error {
	if len(dst) != len(tasks)*frameSize {
		return fmt.Errorf("destination holds %d values, %d frames need %d", len(dst), len(tasks), len(tasks)*frameSize)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	results := make(chan jobResult, len(tasks))
	go func() {
		for i, task := range tasks {
			p.workQueue <- job{
				ctx:    ctx,
				index:  i,
				task:   task,
				dst:    dst[i*frameSize : (i+1)*frameSize],
				result: results,
			}
		}
	}()

	var firstErr error
	firstIdx := len(tasks)
	for range tasks {
		r := <-results
		if r.err != nil && r.index < firstIdx {
			firstIdx = r.index
			firstErr = fmt.Errorf("frame %d/%d '%s': %w", r.index+1, len(tasks), tasks[r.index].Path, r.err)
		}
	}
	return firstErr
}

// Close waits for running Maps, then stops the workers
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.workQueue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
