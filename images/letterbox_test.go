package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolov5/common"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// TestLetterbox_WideImage covers a 1280x720 frame letterboxed onto a 640x640 canvas.
func TestLetterbox_WideImage(t *testing.T) {
	img := solidImage(1280, 720, color.RGBA{R: 255, A: 255})

	canvas, meta, err := Letterbox(img, 640, 640)
	require.NoError(t, err, "letterbox should succeed for a valid image")

	assert.Equal(t, image.Rect(0, 0, 640, 640), canvas.Bounds())
	assert.Equal(t, 640, meta.ProcessedWidth)
	assert.Equal(t, 360, meta.ProcessedHeight)
	assert.Equal(t, 140, meta.Border, "border should be half the vertical deficit")
	assert.InDelta(t, 0.5, meta.Scale, 1e-9)
	assert.True(t, meta.IsH(), "padding runs along the height axis")
	assert.False(t, meta.IsW())

	// Border rows carry the pad color, the image band keeps the source color.
	assert.Equal(t, color.RGBA{R: 114, G: 114, B: 114, A: 255}, canvas.RGBAAt(320, 10))
	assert.Equal(t, color.RGBA{R: 114, G: 114, B: 114, A: 255}, canvas.RGBAAt(320, 630))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, canvas.RGBAAt(320, 320))

	got := meta.Inverse(Rect{X1: 100, Y1: 150, X2: 200, Y2: 250})
	assert.InDelta(t, 200, got.X1, 1e-4)
	assert.InDelta(t, 20, got.Y1, 1e-4)
	assert.InDelta(t, 400, got.X2, 1e-4)
	assert.InDelta(t, 220, got.Y2, 1e-4)
}

func TestLetterbox_TallImage(t *testing.T) {
	img := solidImage(300, 600, color.RGBA{G: 200, A: 255})

	canvas, meta, err := Letterbox(img, 640, 640, WithPadValue(0))
	require.NoError(t, err)

	assert.Equal(t, 320, meta.ProcessedWidth)
	assert.Equal(t, 640, meta.ProcessedHeight)
	assert.Equal(t, 160, meta.Border)
	assert.True(t, meta.IsW())
	assert.False(t, meta.IsH())
	assert.Equal(t, color.RGBA{A: 255}, canvas.RGBAAt(5, 320), "custom pad value should be used")
	assert.Equal(t, color.RGBA{G: 200, A: 255}, canvas.RGBAAt(320, 320))
}

func TestLetterbox_SameSize(t *testing.T) {
	img := solidImage(640, 640, color.RGBA{B: 9, A: 255})

	canvas, meta, err := Letterbox(img, 640, 640)
	require.NoError(t, err)

	assert.Zero(t, meta.Border)
	assert.False(t, meta.IsW())
	assert.False(t, meta.IsH())
	assert.Equal(t, 1.0, meta.Scale)
	assert.Equal(t, img.Pix, canvas.Pix, "no resize or pad should leave pixels untouched")
}

func TestLetterbox_NonSquareTarget(t *testing.T) {
	img := solidImage(1000, 1000, color.RGBA{R: 1, A: 255})

	_, meta, err := Letterbox(img, 384, 640, WithInterpolation(resize.NearestNeighbor))
	require.NoError(t, err)

	assert.Equal(t, 384, meta.ProcessedWidth)
	assert.Equal(t, 384, meta.ProcessedHeight)
	assert.Equal(t, 128, meta.Border)
	assert.True(t, meta.IsW())
}

func TestLetterbox_Errors(t *testing.T) {
	_, _, err := Letterbox(nil, 640, 640)
	assert.True(t, errors.Is(err, common.ErrInvalidImage), "nil image should be invalid")

	_, _, err = Letterbox(image.NewRGBA(image.Rect(0, 0, 0, 10)), 640, 640)
	assert.True(t, errors.Is(err, common.ErrInvalidImage), "empty image should be invalid")

	_, _, err = Letterbox(solidImage(10, 10, color.RGBA{}), 0, 640)
	assert.True(t, errors.Is(err, common.ErrConfiguration), "empty target should be a configuration error")
}

// TestResizeMetadata_InverseOfForward checks that mapping a box onto the canvas and back returns it.
func TestResizeMetadata_InverseOfForward(t *testing.T) {
	cases := []struct {
		name   string
		ow, oh int
		th, tw int
	}{
		{"width limited", 1280, 720, 640, 640},
		{"height limited", 480, 640, 640, 640},
		{"odd deficit", 1001, 333, 640, 640},
		{"upscale", 200, 100, 640, 640},
		{"non-square target", 1920, 1080, 384, 640},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta, err := NewResizeMetadata(tc.ow, tc.oh, tc.th, tc.tw)
			require.NoError(t, err)

			box := Rect{
				X1: float32(tc.ow) * 0.1,
				Y1: float32(tc.oh) * 0.2,
				X2: float32(tc.ow) * 0.7,
				Y2: float32(tc.oh) * 0.9,
			}
			back := meta.Inverse(meta.Forward(box))
			assert.InDelta(t, box.X1, back.X1, 1e-2)
			assert.InDelta(t, box.Y1, back.Y1, 1e-2)
			assert.InDelta(t, box.X2, back.X2, 1e-2)
			assert.InDelta(t, box.Y2, back.Y2, 1e-2)
		})
	}
}

func TestResizeMetadata_InverseClamps(t *testing.T) {
	meta, err := NewResizeMetadata(1280, 720, 640, 640)
	require.NoError(t, err)

	// A box reaching into the top border and past the right edge.
	got := meta.Inverse(Rect{X1: -20, Y1: 100, X2: 700, Y2: 600})
	assert.Equal(t, float32(0), got.X1)
	assert.Equal(t, float32(0), got.Y1)
	assert.Equal(t, float32(1280), got.X2)
	assert.Equal(t, float32(720), got.Y2)
}
