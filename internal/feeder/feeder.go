// Package feeder hands batches of video clips to a training loop.
//
// A Feeder keeps at most one batch in preparation while the caller works on
// the previous one. The preparation is modelled as two states: Idle, which can
// only Dispatch, and Prefetching, which can only Join. Every state value made
// from one source shares a single slot, so Dispatch refuses to start a second
// prefetch until the running one has been joined.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bdougie/clipfeed/internal/models"
)

var (
	// ErrOutputMismatch is returned by Setup when the caller expects a different number of outputs
	ErrOutputMismatch = errors.New("incorrect number of outputs")
	// ErrNotSetup is returned by Step before Setup succeeded
	ErrNotSetup = errors.New("feeder is not set up")
	// ErrClosed is returned by Setup and Step after Close
	ErrClosed = errors.New("feeder is closed")
	// ErrAlreadyJoined is returned when a Prefetching value is joined twice
	ErrAlreadyJoined = errors.New("prefetch already joined")
	// ErrPrefetchInFlight is returned by Dispatch while another prefetch of the same source runs
	ErrPrefetchInFlight = errors.New("prefetch already in flight")
	// ErrInvalidState is returned when a zero Idle or Prefetching value is used
	ErrInvalidState = errors.New("invalid prefetch state")
)

// Output names in the order the consumer declares them
var OutputNames = []string{"data", "label", "clip_markers"}

// Output is one declared output of the feeder
type Output struct {
	Name  string
	Shape []int
}

// BatchSource produces one batch per call
type BatchSource interface {
	Advance(ctx context.Context) (*models.Batch, error)
	Shape() [4]int
}

// slot is shared by all state values of one source; busy is set while a prefetch runs
type slot struct {
	src  BatchSource
	busy atomic.Bool
}

// prefetch is written once by the background goroutine, then closed
type prefetch struct {
	done    chan struct{}
	batch   *models.Batch
	err     error
	elapsed time.Duration
	joined  atomic.Bool
}

// Idle is the state with nothing in flight
type Idle struct {
	slot *slot
}

// NewIdle returns the initial state for src
func NewIdle(src BatchSource) Idle {
	return Idle{slot: &slot{src: src}}
}

// Prefetching is the state with one batch being prepared
type Prefetching struct {
	slot *slot
	p    *prefetch
}

// Dispatch starts preparing the next batch in the background.
// The work always runs to completion; ctx is only used for its values.
func (i Idle) Dispatch(ctx context.Context) (Prefetching, error) {
	if i.slot == nil {
		return Prefetching{}, ErrInvalidState
	}
	if !i.slot.busy.CompareAndSwap(false, true) {
		return Prefetching{}, ErrPrefetchInFlight
	}

	p := &prefetch{done: make(chan struct{})}
	bg := context.WithoutCancel(ctx)
	src := i.slot.src
	go func() {
		defer close(p.done)
		start := time.Now()
		p.batch, p.err = src.Advance(bg)
		p.elapsed = time.Since(start)
	}()
	return Prefetching{slot: i.slot, p: p}, nil
}

// Done is closed once the batch is ready or failed
func (p Prefetching) Done() <-chan struct{} {
	return p.p.done
}

// Join waits for the prefetch and returns its batch along with the Idle state.
// Only the first Join gets a usable Idle back.
func (p Prefetching) Join() (*models.Batch, Idle, error) {
	if p.p == nil {
		return nil, Idle{}, ErrInvalidState
	}
	<-p.p.done
	if !p.p.joined.CompareAndSwap(false, true) {
		return nil, Idle{}, ErrAlreadyJoined
	}
	batch := p.p.batch
	p.p.batch = nil
	p.slot.busy.Store(false)
	return batch, Idle{slot: p.slot}, p.p.err
}

// Feeder is the double-buffered batch driver
type Feeder struct {
	logger  *slog.Logger
	src     BatchSource
	baseCtx context.Context

	idle    Idle
	pending *Prefetching
	ready   *models.Batch
	setup   bool
	closed  bool
}

// New creates a feeder over src. Nothing is produced until Setup.
func New(src BatchSource, logger *slog.Logger) *Feeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{
		logger: logger,
		src:    src,
		idle:   NewIdle(src),
	}
}

// Setup checks the output count, produces the first batch synchronously and
// returns the shape of each output.
func (f *Feeder) Setup(ctx context.Context, numOutputs int) ([]Output, error) {
	if f.closed {
		return nil, ErrClosed
	}
	if f.setup {
		return nil, errors.New("feeder already set up")
	}
	if numOutputs != len(OutputNames) {
		return nil, fmt.Errorf("%w (expected %d, got %d)", ErrOutputMismatch, len(OutputNames), numOutputs)
	}

	f.baseCtx = context.WithoutCancel(ctx)
	p, err := f.idle.Dispatch(f.baseCtx)
	if err != nil {
		return nil, err
	}
	batch, idle, err := p.Join()
	f.idle = idle
	if err != nil {
		return nil, fmt.Errorf("failed to produce first batch: %w", err)
	}
	f.ready = batch
	f.setup = true

	shape := f.src.Shape()
	n := shape[0]
	outputs := []Output{
		{Name: OutputNames[0], Shape: []int{n, shape[1], shape[2], shape[3]}},
		{Name: OutputNames[1], Shape: []int{n}},
		{Name: OutputNames[2], Shape: []int{n}},
	}
	f.logger.Info("feeder ready", "outputs", OutputNames, "data_shape", outputs[0].Shape)
	return outputs, nil
}

// Step returns the current batch and starts preparing the next one.
//
// If a batch is still being prepared Step waits for it. A failure while
// preparing is returned here, one step after it happened, and the following
// batch is dispatched regardless. ctx bounds only the wait: when it expires
// the prefetch keeps running and the next Step joins it.
func (f *Feeder) Step(ctx context.Context) (*models.Batch, error) {
	if f.closed {
		return nil, ErrClosed
	}
	if !f.setup {
		return nil, ErrNotSetup
	}

	var batch *models.Batch
	var stepErr error
	if f.pending != nil {
		start := time.Now()
		select {
		case <-f.pending.Done():
		default:
			select {
			case <-f.pending.Done():
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		elapsed := f.pending.p.elapsed
		b, idle, err := f.pending.Join()
		f.pending = nil
		f.idle = idle
		batch, stepErr = b, err
		f.logger.Debug("joined prefetch",
			"waited", time.Since(start),
			"prepared_in", elapsed,
			"error", err,
		)
	} else {
		batch = f.ready
		f.ready = nil
	}

	next, err := f.idle.Dispatch(f.baseCtx)
	if err != nil {
		return nil, err
	}
	f.pending = &next

	if stepErr != nil {
		f.logger.Error("prefetch failed", "error", stepErr)
		return nil, stepErr
	}
	return batch, nil
}

// InFlight reports whether a batch is being prepared
func (f *Feeder) InFlight() bool {
	return f.pending != nil
}

// Ready reports whether a batch is waiting to be handed out without a join
func (f *Feeder) Ready() bool {
	return f.ready != nil
}

// Wait blocks until any in-flight prefetch has finished, leaving its batch for the next Step
func (f *Feeder) Wait() {
	if f.pending != nil {
		<-f.pending.Done()
	}
}

// Close waits for any in-flight prefetch and releases the batch source.
// Later calls to Setup and Step return ErrClosed.
func (f *Feeder) Close() {
	if f.closed {
		return
	}
	f.closed = true
	f.Wait()
	if c, ok := f.src.(interface{ Close() }); ok {
		c.Close()
	}
}
