// Package sequence picks which clips make up each batch.
//
// Videos are visited round-robin in manifest order. For every video a random
// crop window and a random run of consecutive frames are drawn, and the clip is
// expanded into one FrameTask per frame.
package sequence

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/bdougie/clipfeed/internal/manifest"
	"github.com/bdougie/clipfeed/internal/models"
)

// firstFrameOffset is added to every drawn start position. Frame 1 is never
// the start of a clip.
const firstFrameOffset = 2

// Generator produces the frame tasks of successive batches
type Generator struct {
	bufferSize int
	clipLength int
	videos     *manifest.Manifest
	rng        *rand.Rand
	cursor     int
}

// New returns a generator positioned at the first video of m
func New(bufferSize, clipLength int, m *manifest.Manifest, rng *rand.Rand) (*Generator, error) {
	if bufferSize <= 0 || clipLength <= 0 {
		return nil, errors.New("buffer size and clip length must be positive")
	}
	if m == nil || m.Len() == 0 {
		return nil, errors.New("manifest has no videos")
	}
	for _, id := range m.Order {
		v := m.Videos[id]
		if v.NumFrames < clipLength {
			return nil, fmt.Errorf("video %q has %d frames, clip needs %d", id, v.NumFrames, clipLength)
		}
		if v.Crop.H > v.Reshape.H || v.Crop.W > v.Reshape.W {
			return nil, fmt.Errorf("video %q crop %dx%d exceeds reshape %dx%d",
				id, v.Crop.H, v.Crop.W, v.Reshape.H, v.Reshape.W)
		}
	}
	return &Generator{
		bufferSize: bufferSize,
		clipLength: clipLength,
		videos:     m,
		rng:        rng,
	}, nil
}

// Cursor returns the index of the next video to be sampled
func (g *Generator) Cursor() int {
	return g.cursor
}

// BatchFrames returns the number of frames every call to Next yields
func (g *Generator) BatchFrames() int {
	return g.bufferSize * g.clipLength
}

// ClipLength returns the number of frames per clip
func (g *Generator) ClipLength() int {
	return g.clipLength
}

// Next draws the clips of one batch and advances the cursor.
// Labels and tasks have one entry per frame in video-major order.
func (g *Generator) Next() ([]int, []models.FrameTask, []models.ClipSample) {
	n := g.videos.Len()
	labels := make([]int, 0, g.BatchFrames())
	tasks := make([]models.FrameTask, 0, g.BatchFrames())
	clips := make([]models.ClipSample, 0, g.bufferSize)

	for k := 0; k < g.bufferSize; k++ {
		v := g.videos.At((g.cursor + k) % n)

		r0 := CropOffset(g.rng.Float64(), v.Reshape.H, v.Crop.H)
		r1 := CropOffset(g.rng.Float64(), v.Reshape.W, v.Crop.W)
		box := models.CropBox{Y0: r0, X0: r1, Y1: r0 + v.Crop.H, X1: r1 + v.Crop.W}
		start := StartFrame(g.rng.Float64(), v.NumFrames, g.clipLength)

		for i := start; i < start+g.clipLength; i++ {
			labels = append(labels, v.Label)
			tasks = append(tasks, models.FrameTask{
				Path:    v.FrameTemplate.Path(i),
				Crop:    box,
				Reshape: v.Reshape,
			})
		}
		clips = append(clips, models.ClipSample{
			VideoID:    v.ID,
			Label:      v.Label,
			StartFrame: start,
			Crop:       box,
		})
	}

	g.cursor = (g.cursor + g.bufferSize) % n
	return labels, tasks, clips
}

// CropOffset maps u in [0,1) onto an offset in [0, native-crop]
func CropOffset(u float64, native, crop int) int {
	return int(u * float64(native-crop))
}

// StartFrame maps u in [0,1) onto the first frame of a clip.
//
// The start is floor(u*(numFrames-clipLength)) + 2, which for numFrames >
// clipLength lies in [2, numFrames-clipLength+1] so the last frame is at most
// numFrames. When the video is exactly one clip long the formula would run
// past the end, so the start is pinned to frame 1.
func StartFrame(u float64, numFrames, clipLength int) int {
	start := int(u*float64(numFrames-clipLength)) + firstFrameOffset
	if last := numFrames - clipLength + 1; start > last {
		start = last
	}
	return start
}
