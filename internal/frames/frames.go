package frames

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/bdougie/clipfeed/internal/models"
	"github.com/bdougie/clipfeed/internal/source"
)

// Normalizer turns 8-bit pixels into network input values.
//
// For output channel c the value is pixel[ChannelSwap[c]]/255*RawScale - Mean[c].
// Output is always channel-major (C, H, W).
type Normalizer struct {
	RawScale    float32
	Mean        [3]float32
	ChannelSwap [3]int
}

// RGBNormalizer produces BGR input with the ImageNet channel means removed
func RGBNormalizer() Normalizer {
	return Normalizer{
		RawScale:    255,
		Mean:        [3]float32{103.939, 116.779, 128.68},
		ChannelSwap: [3]int{2, 1, 0},
	}
}

// FlowNormalizer centers flow images around zero
func FlowNormalizer() Normalizer {
	return Normalizer{
		RawScale:    255,
		Mean:        [3]float32{128, 128, 128},
		ChannelSwap: [3]int{2, 1, 0},
	}
}

// Transform writes one processed frame into dst
type Transform interface {
	ProcessInto(ctx context.Context, task models.FrameTask, dst []float32) error
}

// Processor loads, resizes, crops and normalizes frames
type Processor struct {
	src  source.Source
	norm Normalizer
}

// NewProcessor creates a processor reading frames from src
func NewProcessor(src source.Source, norm Normalizer) *Processor {
	return &Processor{src: src, norm: norm}
}

// Process returns the CHW values of one frame
func (p *Processor) Process(ctx context.Context, task models.FrameTask) ([]float32, error) {
	dst := make([]float32, 3*(task.Crop.Y1-task.Crop.Y0)*(task.Crop.X1-task.Crop.X0))
	if err := p.ProcessInto(ctx, task, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// ProcessInto decodes the frame at task.Path, resizes it to task.Reshape,
// crops task.Crop out of it and writes the normalized CHW values into dst.
func (p *Processor) ProcessInto(ctx context.Context, task models.FrameTask, dst []float32) error {
	box := task.Crop
	h, w := box.Y1-box.Y0, box.X1-box.X0
	if box.Y0 < 0 || box.X0 < 0 || h <= 0 || w <= 0 || box.Y1 > task.Reshape.H || box.X1 > task.Reshape.W {
		return fmt.Errorf("crop %+v outside %dx%d frame '%s'", box, task.Reshape.H, task.Reshape.W, task.Path)
	}
	if len(dst) != 3*h*w {
		return fmt.Errorf("destination holds %d values, frame needs %d", len(dst), 3*h*w)
	}

	rc, err := p.src.Open(ctx, task.Path)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("failed to decode frame '%s': %w", task.Path, err)
	}

	resized := Resize(img, task.Reshape)
	p.norm.apply(resized, box, dst)
	return nil
}

// Resize scales img to size with bilinear interpolation
func Resize(img image.Image, size models.Size) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, size.W, size.H))
	if img.Bounds().Dx() == size.W && img.Bounds().Dy() == size.H {
		draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
		return out
	}
	draw.BiLinear.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}

func (n Normalizer) apply(img *image.RGBA, box models.CropBox, dst []float32) {
	h, w := box.Y1-box.Y0, box.X1-box.X0
	plane := h * w
	scale := n.RawScale / 255
	for y := 0; y < h; y++ {
		row := img.Pix[(box.Y0+y)*img.Stride:]
		for x := 0; x < w; x++ {
			px := row[(box.X0+x)*4:]
			i := y*w + x
			for c := 0; c < 3; c++ {
				dst[c*plane+i] = float32(px[n.ChannelSwap[c]])*scale - n.Mean[c]
			}
		}
	}
}
