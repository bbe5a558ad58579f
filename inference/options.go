package inference

import (
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolov5/models"
	"github.com/nvr-ai/go-yolov5/models/yolov5"
)

// Option configures a Detector at construction.
type Option func(*Detector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithLabels replaces the default COCO class names.
func WithLabels(labels *models.OutputClassSet) Option {
	return func(d *Detector) {
		if labels != nil {
			d.labels = labels
		}
	}
}

// CallOption overrides configuration for a single Predict call.
type CallOption func(*yolov5.Options)

// WithThresholds overrides the confidence and IoU thresholds.
func WithThresholds(confThres, iouThres float32) CallOption {
	return func(o *yolov5.Options) {
		o.ConfThres = confThres
		o.IouThres = iouThres
	}
}

// WithClasses keeps only the given class ids.
func WithClasses(classIDs ...int) CallOption {
	return func(o *yolov5.Options) {
		o.Classes = classIDs
	}
}

// WithMaxDetections overrides the per-image detection cap.
func WithMaxDetections(n int) CallOption {
	return func(o *yolov5.Options) {
		o.MaxDetections = n
	}
}
