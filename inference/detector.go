// Package inference - end-to-end YOLOv5 detection over batches of frames.
package inference

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/config"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/models"
	"github.com/nvr-ai/go-yolov5/models/model"
	"github.com/nvr-ai/go-yolov5/models/model/preprocess"
	"github.com/nvr-ai/go-yolov5/models/postprocess"
	"github.com/nvr-ai/go-yolov5/models/yolov5"
)

// Result is the outcome of one input frame.
type Result struct {
	// Index is the position of the frame in the call's input.
	Index int `json:"index" yaml:"index"`
	// Detections are in original image coordinates, highest score first.
	Detections postprocess.Detections `json:"detections" yaml:"detections"`
	// Metadata records how the frame was letterboxed. Zero for failed frames.
	Metadata images.ResizeMetadata `json:"metadata" yaml:"metadata"`
	// Err is set when the frame could not be processed, e.g. common.ErrInvalidImage.
	Err error `json:"-" yaml:"-"`
}

// Detector runs the full pipeline: letterbox, batch, model, decode, suppress and rescale.
// It is safe for concurrent use as long as the model is.
type Detector struct {
	model  model.Model
	config config.Config
	pre    *preprocess.Preprocessor
	labels *models.OutputClassSet
	logger *zap.Logger
}

// NewDetector creates a detector around a model.
//
// Arguments:
//   - m: The model. Its input is (N, 3, cfg.Height, cfg.Width).
//   - cfg: Thresholds, input size and limits applied to every call.
//   - opts: Logger and label overrides.
//
// Returns:
//   - *Detector: The detector.
//   - error: common.ErrConfiguration for a nil model or invalid configuration.
func NewDetector(m model.Model, cfg config.Config, opts ...Option) (*Detector, error) {
	if m == nil {
		return nil, common.Configuration("model is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pre, err := preprocess.NewPreprocessor(preprocess.ModelConfig{
		InputWidth:  cfg.Width,
		InputHeight: cfg.Height,
		PadValue:    uint8(cfg.PadValue),
		Workers:     cfg.Workers,
	})
	if err != nil {
		return nil, err
	}

	d := &Detector{
		model:  m,
		config: cfg,
		pre:    pre,
		labels: models.YOLOClasses,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() config.Config {
	return d.config
}

// Labels returns the class names used to resolve class ids.
func (d *Detector) Labels() *models.OutputClassSet {
	return d.labels
}

// Predict detects objects in a batch of frames.
//
// Every frame is letterboxed with its own metadata, the valid frames are run through the model in
// a single call, and each frame's surviving boxes are mapped back to its own coordinates.
// Frames that cannot be processed get Result.Err and do not affect their siblings.
//
// Arguments:
//   - ctx: Cancels preprocessing, the model call and post-processing.
//   - frames: The decoded frames.
//   - opts: Per-call overrides of the configured thresholds.
//
// Returns:
//   - []Result: One result per frame, in input order.
//   - error: common.ErrConfiguration for bad overrides, common.ErrModelInvocation when the model
//     fails or returns a malformed output, or the context error.
//
// @example
// results, err := detector.Predict(ctx, frames, WithThresholds(0.4, 0.5))
//
//	if err != nil {
//	    return err
//	}
//
//	for _, r := range results {
//	    if r.Err != nil {
//	        continue
//	    }
//	}
func (d *Detector) Predict(ctx context.Context, frames []images.Frame, opts ...CallOption) ([]Result, error) {
	start := time.Now()

	suppress := d.config.SuppressOptions()
	for _, opt := range opts {
		opt(&suppress)
	}
	if err := suppress.Validate(); err != nil {
		return nil, err
	}

	batch, err := d.pre.BatchPreprocess(ctx, frames)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(frames))
	for i := range results {
		results[i] = Result{Index: i, Err: batch.Errors[i]}
		if batch.Errors[i] != nil {
			d.logger.Warn("skipping frame", zap.Int("index", i), zap.Error(batch.Errors[i]))
		}
	}
	if batch.Valid() == 0 {
		d.logger.Debug("no valid frames", zap.Int("batch_size", len(frames)))
		return results, nil
	}

	out, err := d.model.Infer(ctx, batch.Tensor)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, common.Classify(common.ErrModelInvocation, err)
	}

	preds, err := yolov5.SplitPredictions(out)
	if err != nil {
		return nil, err
	}
	if len(preds) != batch.Valid() {
		return nil, common.ModelInvocation("model returned %d predictions for %d images", len(preds), batch.Valid())
	}

	dets, err := yolov5.Suppress(ctx, preds, suppress)
	if err != nil {
		return nil, err
	}

	rescaled, err := postprocess.SizeOriginal(dets, batch.Metadata)
	if err != nil {
		return nil, err
	}

	total := 0
	for row, slot := range batch.Slots {
		results[slot].Detections = rescaled[row]
		results[slot].Metadata = batch.Metadata[row]
		total += len(rescaled[row])
	}

	d.logger.Debug("prediction complete",
		zap.Int("batch_size", len(frames)),
		zap.Int("valid", batch.Valid()),
		zap.Int("invalid", len(frames)-batch.Valid()),
		zap.Int("detections", total),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return results, nil
}

// PredictFrame detects objects in a single frame.
//
// Returns:
//   - postprocess.Detections: The detections in the frame's coordinates.
//   - error: The frame's own error, or any call-level error of Predict.
func (d *Detector) PredictFrame(ctx context.Context, frame images.Frame, opts ...CallOption) (postprocess.Detections, error) {
	results, err := d.Predict(ctx, []images.Frame{frame}, opts...)
	if err != nil {
		return nil, err
	}
	return results[0].Detections, results[0].Err
}

// PredictImage detects objects in a decoded image.
func (d *Detector) PredictImage(ctx context.Context, img image.Image, opts ...CallOption) (postprocess.Detections, error) {
	return d.PredictFrame(ctx, images.FrameFromImage(img), opts...)
}

// ExistencePrediction reports whether any frame holds a detection of one of the given classes.
// Frames that failed are ignored.
//
// Arguments:
//   - ctx: Cancels the prediction.
//   - frames: The decoded frames.
//   - classIDs: The class ids to look for.
//
// Returns:
//   - bool: True if at least one surviving detection matches.
//   - error: Any call-level error of Predict.
func (d *Detector) ExistencePrediction(ctx context.Context, frames []images.Frame, classIDs ...int) (bool, error) {
	results, err := d.Predict(ctx, frames)
	if err != nil {
		return false, err
	}
	return Exists(results, classIDs...), nil
}

// Exists reports whether any successful result holds a detection of one of the given classes.
func Exists(results []Result, classIDs ...int) bool {
	sets := make([]postprocess.Detections, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			sets = append(sets, r.Detections)
		}
	}
	return postprocess.ExistencePrediction(sets, classIDs...)
}
