package frames

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/clipfeed/internal/models"
)

type memSource map[string][]byte

func (m memSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := m[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// gradient has R = x, G = y, B = 200 at every pixel
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessCropAndNormalize(t *testing.T) {
	src := memSource{"v/frame_0001.png": encodePNG(t, gradient(6, 4))}
	p := NewProcessor(src, RGBNormalizer())

	task := models.FrameTask{
		Path:    "v/frame_0001.png",
		Crop:    models.CropBox{Y0: 1, X0: 2, Y1: 3, X1: 5},
		Reshape: models.Size{H: 4, W: 6},
	}
	out, err := p.Process(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, out, 3*2*3)

	plane := 2 * 3
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			i := y*3 + x
			// channel 0 is blue, channel 2 is red after the swap
			assert.InDelta(t, 200-103.939, out[0*plane+i], 1e-3)
			assert.InDelta(t, float64(1+y)-116.779, out[1*plane+i], 1e-3)
			assert.InDelta(t, float64(2+x)-128.68, out[2*plane+i], 1e-3)
		}
	}
}

func TestProcessFlowMean(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	src := memSource{"f.png": encodePNG(t, img)}
	p := NewProcessor(src, FlowNormalizer())

	out, err := p.Process(context.Background(), models.FrameTask{
		Path:    "f.png",
		Crop:    models.CropBox{Y1: 2, X1: 2},
		Reshape: models.Size{H: 2, W: 2},
	})
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestProcessResizesBeforeCrop(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(64, 48), nil))
	src := memSource{"v/frame_0002.jpg": buf.Bytes()}
	p := NewProcessor(src, RGBNormalizer())

	task := models.FrameTask{
		Path:    "v/frame_0002.jpg",
		Crop:    models.CropBox{Y0: 3, X0: 10, Y1: 23, X1: 30},
		Reshape: models.Size{H: 24, W: 32},
	}
	out, err := p.Process(context.Background(), task)
	require.NoError(t, err)
	assert.Len(t, out, 3*20*20)
}

func TestResize(t *testing.T) {
	out := Resize(gradient(10, 10), models.Size{H: 5, W: 20})
	assert.Equal(t, image.Rect(0, 0, 20, 5), out.Bounds())

	same := Resize(gradient(4, 3), models.Size{H: 3, W: 4})
	assert.Equal(t, uint8(3), same.RGBAAt(3, 2).R)
	assert.Equal(t, uint8(2), same.RGBAAt(3, 2).G)
}

func TestProcessErrors(t *testing.T) {
	src := memSource{
		"ok.png":  encodePNG(t, gradient(4, 4)),
		"bad.png": []byte("not an image"),
	}
	p := NewProcessor(src, RGBNormalizer())
	ctx := context.Background()
	valid := models.FrameTask{Crop: models.CropBox{Y1: 2, X1: 2}, Reshape: models.Size{H: 4, W: 4}}

	missing := valid
	missing.Path = "missing.png"
	_, err := p.Process(ctx, missing)
	assert.ErrorIs(t, err, os.ErrNotExist)

	corrupt := valid
	corrupt.Path = "bad.png"
	_, err = p.Process(ctx, corrupt)
	assert.Error(t, err)

	outside := valid
	outside.Path = "ok.png"
	outside.Crop = models.CropBox{Y0: 3, X0: 0, Y1: 5, X1: 2}
	_, err = p.Process(ctx, outside)
	assert.Error(t, err)

	short := valid
	short.Path = "ok.png"
	assert.Error(t, p.ProcessInto(ctx, short, make([]float32, 5)))
}
