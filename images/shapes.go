// Package images - Image processing utilities
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Rect is a lightweight corner-form bounding box in floating point pixel coordinates.
type Rect struct {
	X1 float32 `json:"x1" yaml:"x1"`
	Y1 float32 `json:"y1" yaml:"y1"`
	X2 float32 `json:"x2" yaml:"x2"`
	Y2 float32 `json:"y2" yaml:"y2"`
}

// Width returns the horizontal extent of the box, or zero when the box is inverted.
func (r Rect) Width() float32 {
	return math32.Max(0, r.X2-r.X1)
}

// Height returns the vertical extent of the box, or zero when the box is inverted.
func (r Rect) Height() float32 {
	return math32.Max(0, r.Y2-r.Y1)
}

// Area returns the area of the box. Degenerate and inverted boxes have zero area.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Finite reports whether all four coordinates are finite numbers.
func (r Rect) Finite() bool {
	for _, v := range [4]float32{r.X1, r.Y1, r.X2, r.Y2} {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Clamp restricts the box to [0, width] x [0, height].
//
// Arguments:
//   - width: The right bound.
//   - height: The bottom bound.
//
// Returns:
//   - Rect: The clamped box.
func (r Rect) Clamp(width, height float32) Rect {
	return Rect{
		X1: Clamp32(r.X1, 0, width),
		Y1: Clamp32(r.Y1, 0, height),
		X2: Clamp32(r.X2, 0, width),
		Y2: Clamp32(r.Y2, 0, height),
	}
}

// String formats the box for logs.
func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f), (%.2f, %.2f)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU measures the overlap of two corner-form boxes as
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the boxes are identical and 0.0 means they do not overlap.
//
// The intersection's top-left corner is the maximum of the two top-left corners and its
// bottom-right corner is the minimum of the two bottom-right corners. When the resulting width
// or height is zero or negative the boxes do not overlap and the function returns 0 without
// dividing. The union follows inclusion-exclusion:
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// A zero union (two zero-area boxes) also yields 0.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	interW := math32.Min(r.X2, o.X2) - math32.Max(r.X1, o.X1)
	interH := math32.Min(r.Y2, o.Y2) - math32.Max(r.Y1, o.Y1)
	if interW <= 0 || interH <= 0 {
		return 0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0
	}

	return interArea / unionArea
}

// Clamp32 restricts a value to the range [lo, hi].
//
// Arguments:
//   - value: The value to clamp.
//   - lo: Minimum allowed value.
//   - hi: Maximum allowed value.
//
// Returns:
//   - float32: The clamped value.
//
// @example
// clamped := Clamp32(700.5, 0, 640) // Returns 640
func Clamp32(value, lo, hi float32) float32 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
