package feeder

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bdougie/clipfeed/internal/frames"
	"github.com/bdougie/clipfeed/internal/models"
	"github.com/bdougie/clipfeed/internal/sequence"
)

// Advancer produces one complete batch per call
type Advancer struct {
	gen   *sequence.Generator
	pool  *frames.Pool
	shape [4]int
	step  int
}

// NewAdvancer combines a generator and a frame pool into batches of
// (buffer size * clip length, channels, height, width)
func NewAdvancer(gen *sequence.Generator, pool *frames.Pool, channels, height, width int) *Advancer {
	return &Advancer{
		gen:   gen,
		pool:  pool,
		shape: [4]int{gen.BatchFrames(), channels, height, width},
	}
}

// Shape returns the (N, C, H, W) shape of the image data
func (a *Advancer) Shape() [4]int {
	return a.shape
}

// Advance draws the next clips, processes every frame and returns a new batch.
// It must not be called concurrently.
func (a *Advancer) Advance(ctx context.Context) (*models.Batch, error) {
	labels, tasks, clips := a.gen.Next()

	batch := &models.Batch{
		ID:         uuid.New(),
		Step:       a.step,
		Labels:     labels,
		Clips:      clips,
		ClipLength: a.gen.ClipLength(),
		Shape:      a.shape,
	}
	a.step++

	batch.Data = make([]float32, a.shape[0]*batch.FrameSize())
	if err := a.pool.Map(ctx, tasks, batch.Data, batch.FrameSize()); err != nil {
		return nil, fmt.Errorf("batch %d: %w", batch.Step, err)
	}
	batch.ClipMarkers = ClipMarkers(len(labels), batch.ClipLength)

	return batch, nil
}

// ClipMarkers returns n markers, 0 on the first frame of every clip and 1 elsewhere
func ClipMarkers(n, clipLength int) []int {
	markers := make([]int, n)
	for i := range markers {
		if i%clipLength != 0 {
			markers[i] = 1
		}
	}
	return markers
}

// Close stops the frame workers
func (a *Advancer) Close() {
	a.pool.Close()
}
