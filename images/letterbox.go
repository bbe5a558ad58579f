package images

import (
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"github.com/nvr-ai/go-yolov5/common"
)

// DefaultPadValue is the gray level YOLO models are trained with for letterbox borders.
const DefaultPadValue uint8 = 114

// ResizeMetadata records how one image was letterboxed so that boxes predicted on the letterboxed
// canvas can be mapped back onto the original image.
type ResizeMetadata struct {
	// ProcessedWidth is the width of the resized image before padding.
	ProcessedWidth int `json:"processed_width" yaml:"processed_width"`
	// ProcessedHeight is the height of the resized image before padding.
	ProcessedHeight int `json:"processed_height" yaml:"processed_height"`
	// OriginalWidth is the width of the source image.
	OriginalWidth int `json:"original_width" yaml:"original_width"`
	// OriginalHeight is the height of the source image.
	OriginalHeight int `json:"original_height" yaml:"original_height"`
	// TargetWidth is the width of the padded canvas.
	TargetWidth int `json:"target_width" yaml:"target_width"`
	// TargetHeight is the height of the padded canvas.
	TargetHeight int `json:"target_height" yaml:"target_height"`
	// Border is the pad, in canvas pixels, before the image on the padded axis.
	Border int `json:"border" yaml:"border"`
	// Scale is the factor applied to both axes of the source image.
	Scale float64 `json:"scale" yaml:"scale"`
}

// IsW reports whether the padding runs along the width axis (left and right borders).
func (m ResizeMetadata) IsW() bool {
	return m.ProcessedWidth < m.TargetWidth
}

// IsH reports whether the padding runs along the height axis (top and bottom borders).
func (m ResizeMetadata) IsH() bool {
	return m.ProcessedHeight < m.TargetHeight
}

// offsets returns the canvas offset of the resized image on each axis.
func (m ResizeMetadata) offsets() (float64, float64) {
	switch {
	case m.IsW():
		return float64(m.Border), 0
	case m.IsH():
		return 0, float64(m.Border)
	default:
		return 0, 0
	}
}

// Forward maps a box from original image coordinates onto the letterboxed canvas.
//
// Arguments:
//   - r: The box in original image coordinates.
//
// Returns:
//   - Rect: The box in canvas coordinates.
func (m ResizeMetadata) Forward(r Rect) Rect {
	dx, dy := m.offsets()
	return Rect{
		X1: float32(float64(r.X1)*m.Scale + dx),
		Y1: float32(float64(r.Y1)*m.Scale + dy),
		X2: float32(float64(r.X2)*m.Scale + dx),
		Y2: float32(float64(r.Y2)*m.Scale + dy),
	}
}

// Inverse maps a box from letterboxed canvas coordinates back onto the original image. The
// border is removed from the padded axis, both axes are divided by the forward scale, and the
// result is clamped to [0, OriginalWidth] x [0, OriginalHeight].
//
// Arguments:
//   - r: The box in canvas coordinates.
//
// Returns:
//   - Rect: The box in original image coordinates.
//
// @example
// // 1280x720 letterboxed to 640x640: scale 0.5, 140px border top and bottom.
// m.Inverse(Rect{X1: 100, Y1: 150, X2: 200, Y2: 250}) // (200, 20), (400, 220)
func (m ResizeMetadata) Inverse(r Rect) Rect {
	if m.Scale <= 0 {
		return Rect{}
	}
	dx, dy := m.offsets()
	out := Rect{
		X1: float32((float64(r.X1) - dx) / m.Scale),
		Y1: float32((float64(r.Y1) - dy) / m.Scale),
		X2: float32((float64(r.X2) - dx) / m.Scale),
		Y2: float32((float64(r.Y2) - dy) / m.Scale),
	}
	return out.Clamp(float32(m.OriginalWidth), float32(m.OriginalHeight))
}

// NewResizeMetadata computes the letterbox transform for an image of the given size without
// touching any pixels.
//
// Arguments:
//   - originalWidth: Source width in pixels.
//   - originalHeight: Source height in pixels.
//   - targetHeight: Canvas height in pixels.
//   - targetWidth: Canvas width in pixels.
//
// Returns:
//   - ResizeMetadata: The transform.
//   - error: common.ErrInvalidImage for empty sources, common.ErrConfiguration for empty targets.
func NewResizeMetadata(originalWidth, originalHeight, targetHeight, targetWidth int) (ResizeMetadata, error) {
	if targetWidth <= 0 || targetHeight <= 0 {
		return ResizeMetadata{}, common.Configuration("invalid target dimensions: %dx%d", targetWidth, targetHeight)
	}
	if originalWidth <= 0 || originalHeight <= 0 {
		return ResizeMetadata{}, common.InvalidImage("invalid image dimensions: %dx%d", originalWidth, originalHeight)
	}

	scale := math.Min(
		float64(targetWidth)/float64(originalWidth),
		float64(targetHeight)/float64(originalHeight),
	)

	newWidth := clampInt(int(math.Round(float64(originalWidth)*scale)), 1, targetWidth)
	newHeight := clampInt(int(math.Round(float64(originalHeight)*scale)), 1, targetHeight)

	m := ResizeMetadata{
		ProcessedWidth:  newWidth,
		ProcessedHeight: newHeight,
		OriginalWidth:   originalWidth,
		OriginalHeight:  originalHeight,
		TargetWidth:     targetWidth,
		TargetHeight:    targetHeight,
		Scale:           scale,
	}
	switch {
	case m.IsW():
		m.Border = (targetWidth - newWidth) / 2
	case m.IsH():
		m.Border = (targetHeight - newHeight) / 2
	}

	return m, nil
}

// LetterboxOption customizes Letterbox.
type LetterboxOption func(*letterboxOptions)

type letterboxOptions struct {
	fill          color.Color
	interpolation resize.InterpolationFunction
}

// WithPadValue fills the border with the given gray level.
func WithPadValue(v uint8) LetterboxOption {
	return func(o *letterboxOptions) {
		o.fill = color.RGBA{R: v, G: v, B: v, A: 0xff}
	}
}

// WithFill fills the border with an arbitrary color.
func WithFill(c color.Color) LetterboxOption {
	return func(o *letterboxOptions) {
		o.fill = c
	}
}

// WithInterpolation selects the resampling kernel. Bilinear is the default.
func WithInterpolation(f resize.InterpolationFunction) LetterboxOption {
	return func(o *letterboxOptions) {
		o.interpolation = f
	}
}

// Letterbox resizes an image to fit a targetHeight x targetWidth canvas while preserving its
// aspect ratio. The resized image is centered on the canvas and the deficit on the shorter axis
// is filled with a neutral color. The image is never cropped.
//
// Arguments:
//   - img: The source image.
//   - targetHeight: Canvas height in pixels.
//   - targetWidth: Canvas width in pixels.
//   - opts: Fill color and interpolation overrides.
//
// Returns:
//   - *image.RGBA: The letterboxed canvas with bounds (0, 0)-(targetWidth, targetHeight).
//   - ResizeMetadata: The transform needed to map boxes back with Inverse.
//   - error: common.ErrInvalidImage or common.ErrConfiguration.
//
// @example
// canvas, meta, err := Letterbox(img, 640, 640)
//
//	if err != nil {
//	    return err
//	}
func Letterbox(img image.Image, targetHeight, targetWidth int, opts ...LetterboxOption) (*image.RGBA, ResizeMetadata, error) {
	if img == nil {
		return nil, ResizeMetadata{}, common.InvalidImage("image is nil")
	}

	o := letterboxOptions{
		fill:          color.RGBA{R: DefaultPadValue, G: DefaultPadValue, B: DefaultPadValue, A: 0xff},
		interpolation: resize.Bilinear,
	}
	for _, opt := range opts {
		opt(&o)
	}

	bounds := img.Bounds()
	meta, err := NewResizeMetadata(bounds.Dx(), bounds.Dy(), targetHeight, targetWidth)
	if err != nil {
		return nil, ResizeMetadata{}, err
	}

	resized := img
	if meta.ProcessedWidth != bounds.Dx() || meta.ProcessedHeight != bounds.Dy() {
		resized = resize.Resize(uint(meta.ProcessedWidth), uint(meta.ProcessedHeight), img, o.interpolation)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(o.fill), image.Point{}, draw.Src)

	dx, dy := meta.offsets()
	dst := image.Rect(int(dx), int(dy), int(dx)+meta.ProcessedWidth, int(dy)+meta.ProcessedHeight)
	draw.Draw(canvas, dst, resized, resized.Bounds().Min, draw.Src)

	return canvas, meta, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
