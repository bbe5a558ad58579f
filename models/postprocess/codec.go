package postprocess

import (
	"github.com/nvr-ai/go-yolov5/images"
)

// CenterBox is a box in center form: center point plus full width and height.
type CenterBox struct {
	CX, CY, W, H float32
}

// CenterToCorner converts (cx, cy, w, h) into (x1, y1, x2, y2).
func CenterToCorner(b CenterBox) images.Rect {
	hw, hh := b.W/2, b.H/2
	return images.Rect{
		X1: b.CX - hw,
		Y1: b.CY - hh,
		X2: b.CX + hw,
		Y2: b.CY + hh,
	}
}

// CornerToCenter converts (x1, y1, x2, y2) into (cx, cy, w, h).
func CornerToCenter(r images.Rect) CenterBox {
	return CenterBox{
		CX: (r.X1 + r.X2) / 2,
		CY: (r.Y1 + r.Y2) / 2,
		W:  r.X2 - r.X1,
		H:  r.Y2 - r.Y1,
	}
}

// CentersToCorners converts a batch of center-form boxes. dst is reused when it has enough
// capacity.
func CentersToCorners(dst []images.Rect, boxes []CenterBox) []images.Rect {
	dst = dst[:0]
	for _, b := range boxes {
		dst = append(dst, CenterToCorner(b))
	}
	return dst
}

// CornersToCenters converts a batch of corner-form boxes. dst is reused when it has enough
// capacity.
func CornersToCenters(dst []CenterBox, boxes []images.Rect) []CenterBox {
	dst = dst[:0]
	for _, r := range boxes {
		dst = append(dst, CornerToCenter(r))
	}
	return dst
}
