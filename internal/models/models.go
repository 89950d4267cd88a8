package models

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Size is a height by width pair in pixels
type Size struct {
	H int `json:"h" yaml:"h"`
	W int `json:"w" yaml:"w"`
}

// CropBox is a crop window in resized image coordinates, [Y0,Y1) x [X0,X1)
type CropBox struct {
	Y0 int `json:"y0"`
	X0 int `json:"x0"`
	Y1 int `json:"y1"`
	X1 int `json:"x1"`
}

// VideoRecord describes one video of the manifest
type VideoRecord struct {
	ID            string
	Label         int
	FrameTemplate FrameTemplate
	NumFrames     int
	Reshape       Size
	Crop          Size
}

// FrameTask represents a frame to be loaded, resized and cropped
type FrameTask struct {
	Path    string
	Crop    CropBox
	Reshape Size
}

// ClipSample records which clip was drawn from a video for a batch
type ClipSample struct {
	VideoID    string  `json:"video_id"`
	Label      int     `json:"label"`
	StartFrame int     `json:"start_frame"`
	Crop       CropBox `json:"crop"`
}

// Batch is one step worth of stacked clips.
//
// Data is laid out as (N, C, H, W) with N = buffer size * clip length.
// Labels and ClipMarkers hold one entry per frame.
type Batch struct {
	ID          uuid.UUID
	Step        int
	Data        []float32
	Labels      []int
	ClipMarkers []int
	Clips       []ClipSample
	ClipLength  int
	Shape       [4]int
}

// FrameSize returns the number of floats one frame occupies in Data
func (b *Batch) FrameSize() int {
	return b.Shape[1] * b.Shape[2] * b.Shape[3]
}

// Frame returns the CHW slice of frame i
func (b *Batch) Frame(i int) []float32 {
	n := b.FrameSize()
	return b.Data[i*n : (i+1)*n]
}

// ClipSignature returns the mean value of each channel over the frames of clip k
func (b *Batch) ClipSignature(k int) []float32 {
	channels := b.Shape[1]
	plane := b.Shape[2] * b.Shape[3]
	sums := make([]float64, channels)
	for f := k * b.ClipLength; f < (k+1)*b.ClipLength; f++ {
		frame := b.Frame(f)
		for c := 0; c < channels; c++ {
			for _, v := range frame[c*plane : (c+1)*plane] {
				sums[c] += float64(v)
			}
		}
	}
	sig := make([]float32, channels)
	for c := range sig {
		sig[c] = float32(sums[c] / float64(b.ClipLength*plane))
	}
	return sig
}

// FrameTemplate expands a frame position into a frame path.
// The position is written zero padded to Width digits between Prefix and Suffix.
type FrameTemplate struct {
	Prefix string
	Suffix string
	Width  int
}

// Path returns the path of frame i
func (t FrameTemplate) Path(i int) string {
	return t.Prefix + fmt.Sprintf("%0*d", t.Width, i) + t.Suffix
}

func (t FrameTemplate) String() string {
	return t.Prefix + "%0" + strconv.Itoa(t.Width) + "d" + t.Suffix
}

// ClipRecord is one sampled clip as kept by the ledger
type ClipRecord struct {
	ClipSample
	BatchID   uuid.UUID `json:"batch_id"`
	Step      int       `json:"step"`
	Signature []float32 `json:"signature"` // per-channel mean of the normalized clip
}
