package images

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/nvr-ai/go-yolov5/common"
)

// ColorOrder describes the channel layout of a decoded pixel buffer.
type ColorOrder string

const (
	// ColorOrderRGB is three interleaved channels in red, green, blue order.
	ColorOrderRGB ColorOrder = "rgb"
	// ColorOrderBGR is three interleaved channels in blue, green, red order (OpenCV default).
	ColorOrderBGR ColorOrder = "bgr"
	// ColorOrderRGBA is four interleaved channels, alpha last.
	ColorOrderRGBA ColorOrder = "rgba"
	// ColorOrderBGRA is four interleaved channels in blue, green, red, alpha order.
	ColorOrderBGRA ColorOrder = "bgra"
	// ColorOrderGray is a single luminance channel.
	ColorOrderGray ColorOrder = "gray"
)

// channels returns the number of interleaved channels the order implies.
func (o ColorOrder) channels() int {
	switch o {
	case ColorOrderRGB, ColorOrderBGR:
		return 3
	case ColorOrderRGBA, ColorOrderBGRA:
		return 4
	case ColorOrderGray:
		return 1
	default:
		return 0
	}
}

// Frame is a decoded, in-memory image: a tightly packed 8-bit pixel buffer with known dimensions,
// channel count and channel order.
type Frame struct {
	// Width in pixels.
	Width int `json:"width" yaml:"width"`
	// Height in pixels.
	Height int `json:"height" yaml:"height"`
	// Channels is the number of interleaved 8-bit channels per pixel.
	Channels int `json:"channels" yaml:"channels"`
	// Order is the channel layout of Pix.
	Order ColorOrder `json:"order" yaml:"order"`
	// Pix holds Height rows of Width*Channels bytes each.
	Pix []byte `json:"-" yaml:"-"`
}

// Validate checks that the frame describes a usable pixel buffer.
//
// Returns:
//   - error: An error wrapping common.ErrInvalidImage, or nil.
func (f Frame) Validate() error {
	if len(f.Pix) == 0 {
		return common.InvalidImage("pixel buffer is empty")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return common.InvalidImage("invalid image dimensions: %dx%d", f.Width, f.Height)
	}
	// RGBA needs Width*Height*4 bytes, which must fit in an int.
	if f.Height > math.MaxInt/4/f.Width {
		return common.InvalidImage("image dimensions %dx%d are too large", f.Width, f.Height)
	}
	want := f.Order.channels()
	if want == 0 {
		return common.InvalidImage("unsupported color order %q", f.Order)
	}
	if f.Channels != want {
		return common.InvalidImage("color order %q needs %d channels, got %d", f.Order, want, f.Channels)
	}
	if need := f.Width * f.Height * f.Channels; len(f.Pix) < need {
		return common.InvalidImage("pixel buffer holds %d bytes, needs %d", len(f.Pix), need)
	}
	return nil
}

// RGBA converts the frame into an opaque RGB image, swapping channels as the order requires.
//
// Returns:
//   - *image.RGBA: The converted image with bounds (0, 0)-(Width, Height).
//   - error: An error wrapping common.ErrInvalidImage if the frame is unusable.
func (f Frame) RGBA() (*image.RGBA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	n := f.Width * f.Height
	for i := 0; i < n; i++ {
		s := f.Pix[i*f.Channels : (i+1)*f.Channels]
		d := dst.Pix[i*4 : i*4+4]
		switch f.Order {
		case ColorOrderRGB, ColorOrderRGBA:
			d[0], d[1], d[2] = s[0], s[1], s[2]
		case ColorOrderBGR, ColorOrderBGRA:
			d[0], d[1], d[2] = s[2], s[1], s[0]
		case ColorOrderGray:
			d[0], d[1], d[2] = s[0], s[0], s[0]
		}
		// Alpha is dropped: the model consumes three color channels.
		d[3] = 0xff
	}

	return dst, nil
}

// FrameFromImage copies any image.Image into an RGBA-ordered frame.
//
// Arguments:
//   - img: The decoded image. A nil image produces an empty frame, which fails validation.
//
// Returns:
//   - Frame: The frame.
func FrameFromImage(img image.Image) Frame {
	if img == nil {
		return Frame{Order: ColorOrderRGBA, Channels: 4}
	}

	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) || rgba.Stride != b.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	return Frame{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: 4,
		Order:    ColorOrderRGBA,
		Pix:      rgba.Pix,
	}
}
