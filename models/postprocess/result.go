// Package postprocess - Postprocessing utilities for detection models.
package postprocess

import (
	"github.com/nvr-ai/go-yolov5/images"
)

// Detection represents a single surviving detection.
type Detection struct {
	// The corner-form bounding box of the detection.
	Box images.Rect `json:"box" yaml:"box"`
	// The effective confidence, objectness times the best class score.
	Score float32 `json:"score" yaml:"score"`
	// The predicted class index.
	Class int `json:"class" yaml:"class"`
}

// Detections is the ordered result set of one image.
type Detections []Detection

// Exists reports whether at least one detection belongs to one of the given classes. Called
// without class ids it reports whether the set holds any detection at all.
//
// Arguments:
//   - classIDs: The class indices to look for.
//
// Returns:
//   - bool: True if any detection matches.
func (d Detections) Exists(classIDs ...int) bool {
	if len(classIDs) == 0 {
		return len(d) > 0
	}
	for _, det := range d {
		for _, id := range classIDs {
			if det.Class == id {
				return true
			}
		}
	}
	return false
}

// Count returns how many detections belong to the given class.
func (d Detections) Count(classID int) int {
	n := 0
	for _, det := range d {
		if det.Class == classID {
			n++
		}
	}
	return n
}

// ExistencePrediction reports whether any image of a batch holds a detection of the given
// classes.
func ExistencePrediction(results []Detections, classIDs ...int) bool {
	for _, d := range results {
		if d.Exists(classIDs...) {
			return true
		}
	}
	return false
}
