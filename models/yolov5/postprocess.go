// Package yolov5 - postprocess YOLOv5 model outputs.
package yolov5

import (
	"context"
	"runtime"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/models/postprocess"
)

// DefaultMaxDetections caps the number of detections kept per image.
const DefaultMaxDetections = 300

// Options controls how raw predictions are turned into detections.
type Options struct {
	// ConfThres drops candidates whose objectness times best class score is below it.
	ConfThres float32 `json:"conf_thres" yaml:"conf_thres"`
	// IouThres is the overlap above which a lower scoring box of the same class is suppressed.
	IouThres float32 `json:"iou_thres" yaml:"iou_thres"`
	// MaxDetections caps the detections kept per image. Zero keeps all.
	MaxDetections int `json:"max_det" yaml:"max_det"`
	// Classes keeps only these class ids when not empty.
	Classes []int `json:"classes" yaml:"classes"`
	// Agnostic runs suppression across classes instead of per class.
	Agnostic bool `json:"agnostic" yaml:"agnostic"`
	// Workers bounds the number of images decoded concurrently. Zero uses GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultOptions returns the thresholds YOLOv5 ships with.
func DefaultOptions() Options {
	return Options{
		ConfThres:     0.25,
		IouThres:      0.45,
		MaxDetections: DefaultMaxDetections,
	}
}

// Validate checks the thresholds and limits.
//
// Returns:
//   - error: common.ErrConfiguration describing the first invalid field, or nil.
func (o Options) Validate() error {
	if !(o.ConfThres >= 0 && o.ConfThres <= 1) {
		return common.Configuration("conf_thres must be within [0, 1], got %v", o.ConfThres)
	}
	if !(o.IouThres >= 0 && o.IouThres <= 1) {
		return common.Configuration("iou_thres must be within [0, 1], got %v", o.IouThres)
	}
	if o.MaxDetections < 0 {
		return common.Configuration("max_det must not be negative, got %d", o.MaxDetections)
	}
	if o.Workers < 0 {
		return common.Configuration("workers must not be negative, got %d", o.Workers)
	}
	return nil
}

// NonMaxSuppression decodes every image's candidates with the default limits and the given
// thresholds. Boxes stay in letterboxed coordinates.
//
// Arguments:
//   - preds: One raw prediction per image.
//   - confThres: Minimum effective confidence.
//   - iouThres: Suppression overlap threshold.
//
// Returns:
//   - []postprocess.Detections: One result set per image, in input order.
//   - error: common.ErrConfiguration or common.ErrModelInvocation.
func NonMaxSuppression(preds []RawPrediction, confThres, iouThres float32) ([]postprocess.Detections, error) {
	opts := DefaultOptions()
	opts.ConfThres = confThres
	opts.IouThres = iouThres
	return Suppress(context.Background(), preds, opts)
}

// Suppress decodes, filters and suppresses every image's candidates. Images are processed in
// parallel and the results are returned in input order.
//
// Arguments:
//   - ctx: Cancels outstanding work.
//   - preds: One raw prediction per image.
//   - opts: Thresholds and limits.
//
// Returns:
//   - []postprocess.Detections: One result set per image. An image with no surviving candidate
//     gets an empty, non-nil set.
//   - error: common.ErrConfiguration for bad options, common.ErrModelInvocation for malformed
//     predictions, or the context error.
func Suppress(ctx context.Context, preds []RawPrediction, opts Options) ([]postprocess.Detections, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	for i, p := range preds {
		if err := p.Validate(); err != nil {
			return nil, common.ModelInvocation("prediction %d: %v", i, err)
		}
	}

	workers := opts.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]postprocess.Detections, len(preds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range preds {
		i := i // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Decode(preds[i], opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Decode turns one image's candidate rows into suppressed detections.
//
// A candidate's confidence is its objectness times its best class score and its class is the
// first index holding that score. Candidates below ConfThres, NaN scores, non-finite boxes and
// boxes with negative width or height are dropped.
//
// Arguments:
//   - pred: The image's raw prediction.
//   - opts: Thresholds and limits. They are not validated here.
//
// Returns:
//   - postprocess.Detections: Detections in descending score order, ties by class then row.
func Decode(pred RawPrediction, opts Options) postprocess.Detections {
	var allowed map[int]struct{}
	if len(opts.Classes) > 0 {
		allowed = make(map[int]struct{}, len(opts.Classes))
		for _, c := range opts.Classes {
			allowed[c] = struct{}{}
		}
	}

	candidates := make([]postprocess.Detection, 0)
	for i := 0; i < pred.Rows; i++ {
		row := pred.Row(i)

		classID := 0
		best := row[attributes]
		for j, score := range row[attributes+1:] {
			if score > best {
				best = score
				classID = j + 1
			}
		}

		conf := row[4] * best
		if !(conf >= opts.ConfThres) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[classID]; !ok {
				continue
			}
		}

		w, h := row[2], row[3]
		if !(w >= 0 && h >= 0) {
			continue
		}
		box := postprocess.CenterToCorner(postprocess.CenterBox{CX: row[0], CY: row[1], W: w, H: h})
		if !box.Finite() {
			continue
		}

		candidates = append(candidates, postprocess.Detection{
			Box:   box,
			Score: math32.Min(conf, 1),
			Class: classID,
		})
	}

	kept := postprocess.ApplyClassNMS(candidates, opts.IouThres, opts.Agnostic)
	if opts.MaxDetections > 0 && len(kept) > opts.MaxDetections {
		kept = kept[:opts.MaxDetections]
	}
	if kept == nil {
		return postprocess.Detections{}
	}
	return postprocess.Detections(kept)
}
