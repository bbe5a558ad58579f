package postprocess

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/images"
)

// SizeOriginal maps every image's detections from letterboxed canvas coordinates back onto the
// original image, using the metadata recorded when that image was letterboxed. Boxes are
// clamped to the image bounds and never dropped.
//
// It must run once per image after suppression. The input is not modified.
//
// Arguments:
//   - results: Per-image detections in canvas coordinates.
//   - meta: Per-image letterbox metadata, aligned with results.
//
// Returns:
//   - []Detections: Per-image detections in original image coordinates.
//   - error: common.ErrConfiguration if the two slices are not aligned.
func SizeOriginal(results []Detections, meta []images.ResizeMetadata) ([]Detections, error) {
	if len(results) != len(meta) {
		return nil, common.Configuration("got %d result sets for %d resize records", len(results), len(meta))
	}

	out := make([]Detections, len(results))
	for i := range results {
		out[i] = RescaleDetections(results[i], meta[i])
	}
	return out, nil
}

// RescaleDetections maps one image's detections back onto the original image. The result is never
// nil.
func RescaleDetections(dets Detections, meta images.ResizeMetadata) Detections {
	out := make(Detections, len(dets))
	for i, d := range dets {
		out[i] = Detection{
			Box:   meta.Inverse(d.Box),
			Score: math32.Min(math32.Max(d.Score, 0), 1),
			Class: d.Class,
		}
	}
	return out
}
