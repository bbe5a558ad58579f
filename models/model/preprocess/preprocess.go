// Package preprocess - turns decoded frames into the batched input tensor of a detection model.
package preprocess

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/images"
)

// InputChannels is the number of color planes the model consumes (RGB).
const InputChannels = 3

// ModelConfig describes the input a model expects.
type ModelConfig struct {
	// InputWidth is the width of the model input.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the height of the model input.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// PadValue is the gray level of letterbox borders.
	PadValue uint8 `json:"pad_value" yaml:"pad_value"`
	// Workers bounds the number of frames preprocessed concurrently. Zero uses GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// PreprocessingResult contains the preprocessed image data and metadata.
type PreprocessingResult struct {
	// Data is the CHW, RGB, [0, 1] float32 tensor data of one image.
	Data []float32
	// Metadata records the letterbox transform of the image.
	Metadata images.ResizeMetadata
	// Shape contains the tensor shape [C, H, W].
	Shape []int
}

// Batch is the stacked model input of one prediction call.
//
// Invalid frames are not stacked: Tensor holds one row per valid frame and Slots maps each row
// back to the index of the frame it came from.
type Batch struct {
	// Tensor has shape (len(Slots), 3, InputHeight, InputWidth). Nil when no frame is valid.
	Tensor *tensor.Dense
	// Metadata holds the letterbox transform of each tensor row.
	Metadata []images.ResizeMetadata
	// Slots maps tensor rows to input indices.
	Slots []int
	// Errors holds one entry per input frame, nil for frames that were stacked.
	Errors []error
}

// Size returns the number of input frames.
func (b *Batch) Size() int {
	return len(b.Errors)
}

// Valid returns the number of stacked frames.
func (b *Batch) Valid() int {
	return len(b.Slots)
}

// Preprocessor handles image preprocessing for ONNX models.
type Preprocessor struct {
	config ModelConfig
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model input description.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//   - error: common.ErrConfiguration for non-positive dimensions.
//
// @example
//
//	preprocessor, err := NewPreprocessor(ModelConfig{
//	    InputWidth:  640,
//	    InputHeight: 640,
//	    PadValue:    114,
//	})
func NewPreprocessor(config ModelConfig) (*Preprocessor, error) {
	if config.InputWidth <= 0 || config.InputHeight <= 0 {
		return nil, common.Configuration("input dimensions must be positive, got %dx%d", config.InputWidth, config.InputHeight)
	}
	if config.Workers < 0 {
		return nil, common.Configuration("workers must not be negative, got %d", config.Workers)
	}
	if config.Workers == 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	return &Preprocessor{config: config}, nil
}

// Config returns the preprocessor configuration.
func (p *Preprocessor) Config() ModelConfig {
	return p.config
}

// Preprocess converts one frame to RGB, letterboxes it and lays it out as a normalized CHW
// tensor.
//
// Arguments:
//   - frame: The decoded frame.
//
// Returns:
//   - *PreprocessingResult: The tensor data and letterbox metadata.
//   - error: common.ErrInvalidImage if the frame is unusable.
func (p *Preprocessor) Preprocess(frame images.Frame) (*PreprocessingResult, error) {
	rgba, err := frame.RGBA()
	if err != nil {
		return nil, err
	}

	canvas, meta, err := images.Letterbox(
		rgba,
		p.config.InputHeight,
		p.config.InputWidth,
		images.WithPadValue(p.config.PadValue),
	)
	if err != nil {
		return nil, errors.Wrap(err, "letterbox failed")
	}

	data := make([]float32, InputChannels*p.config.InputHeight*p.config.InputWidth)
	imageToTensor(canvas.Pix, data)

	return &PreprocessingResult{
		Data:     data,
		Metadata: meta,
		Shape:    []int{InputChannels, p.config.InputHeight, p.config.InputWidth},
	}, nil
}

// imageToTensor writes tightly packed RGBA pixels into three planes scaled to [0, 1].
func imageToTensor(pix []uint8, dst []float32) {
	plane := len(dst) / InputChannels
	for i := 0; i < plane; i++ {
		px := pix[i*4 : i*4+3]
		dst[i] = float32(px[0]) / 255
		dst[plane+i] = float32(px[1]) / 255
		dst[2*plane+i] = float32(px[2]) / 255
	}
}

// BatchPreprocess preprocesses frames concurrently and stacks the valid ones into one tensor.
//
// A frame that fails is recorded in Batch.Errors and does not stop its siblings. Only
// cancellation of ctx fails the whole call.
//
// Arguments:
//   - ctx: Cancels outstanding work.
//   - frames: The decoded frames.
//
// Returns:
//   - *Batch: The stacked tensor and per-frame bookkeeping.
//   - error: The context error, or nil.
//
// @example
// batch, err := preprocessor.BatchPreprocess(ctx, []images.Frame{f1, f2, f3})
//
//	if err != nil {
//	    return err
//	}
func (p *Preprocessor) BatchPreprocess(ctx context.Context, frames []images.Frame) (*Batch, error) {
	results := make([]*PreprocessingResult, len(frames))
	errs := make([]error, len(frames))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for i := range frames {
		i := i // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := p.Preprocess(frames[i])
			if err != nil {
				errs[i] = errors.Wrapf(err, "failed to preprocess image %d", i)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{Errors: errs}
	for i, r := range results {
		if r != nil {
			batch.Slots = append(batch.Slots, i)
			batch.Metadata = append(batch.Metadata, r.Metadata)
		}
	}
	if len(batch.Slots) == 0 {
		return batch, nil
	}

	stride := InputChannels * p.config.InputHeight * p.config.InputWidth
	backing := make([]float32, len(batch.Slots)*stride)
	for row, slot := range batch.Slots {
		copy(backing[row*stride:(row+1)*stride], results[slot].Data)
	}
	batch.Tensor = tensor.New(
		tensor.WithShape(len(batch.Slots), InputChannels, p.config.InputHeight, p.config.InputWidth),
		tensor.WithBacking(backing),
	)

	return batch, nil
}
