// Package yolov5 - decodes YOLOv5 detection head output into per-image detections.
package yolov5

import (
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov5/common"
)

// attributes is the number of leading columns of a candidate row: cx, cy, w, h and objectness.
const attributes = 5

// RawPrediction is the detection head output for one image: Rows candidate rows of
// cx, cy, w, h, objectness, classScore_0 ... classScore_K-1 in letterboxed coordinates.
type RawPrediction struct {
	// Data holds Rows*Cols values in row-major order.
	Data []float32
	// Rows is the number of candidates.
	Rows int
	// Cols is 5 plus the number of classes.
	Cols int
}

// NewRawPrediction wraps a row-major buffer.
//
// Arguments:
//   - data: Candidate rows back to back.
//   - cols: Values per row, 5 plus the number of classes.
//
// Returns:
//   - RawPrediction: The prediction. data is not copied.
//   - error: common.ErrModelInvocation if the buffer does not hold whole rows.
func NewRawPrediction(data []float32, cols int) (RawPrediction, error) {
	if cols <= attributes {
		return RawPrediction{}, common.ModelInvocation("prediction rows need more than %d columns, got %d", attributes, cols)
	}
	if len(data)%cols != 0 {
		return RawPrediction{}, common.ModelInvocation("prediction buffer of %d values is not a multiple of %d", len(data), cols)
	}
	return RawPrediction{Data: data, Rows: len(data) / cols, Cols: cols}, nil
}

// NumClasses returns the number of class score columns.
func (p RawPrediction) NumClasses() int {
	return p.Cols - attributes
}

// Row returns candidate i without copying.
func (p RawPrediction) Row(i int) []float32 {
	return p.Data[i*p.Cols : (i+1)*p.Cols]
}

// Validate checks that the buffer holds exactly Rows*Cols values.
func (p RawPrediction) Validate() error {
	if p.Cols <= attributes {
		return common.ModelInvocation("prediction rows need more than %d columns, got %d", attributes, p.Cols)
	}
	if p.Rows < 0 || len(p.Data) != p.Rows*p.Cols {
		return common.ModelInvocation("prediction holds %d values, want %dx%d", len(p.Data), p.Rows, p.Cols)
	}
	return nil
}

// SplitPredictions slices a batched model output of shape (N, candidates, 5+K) into one
// RawPrediction per image. A two dimensional output is treated as a batch of one. The
// predictions share the tensor's backing array.
//
// Arguments:
//   - out: The model output tensor.
//
// Returns:
//   - []RawPrediction: One prediction per batch row.
//   - error: common.ErrModelInvocation for malformed output.
func SplitPredictions(out *tensor.Dense) ([]RawPrediction, error) {
	if out == nil {
		return nil, common.ModelInvocation("model returned no output")
	}

	data, ok := out.Data().([]float32)
	if !ok {
		return nil, common.ModelInvocation("model output has dtype %v, want float32", out.Dtype())
	}

	shape := out.Shape()
	var batch, rows, cols int
	switch len(shape) {
	case 2:
		batch, rows, cols = 1, shape[0], shape[1]
	case 3:
		batch, rows, cols = shape[0], shape[1], shape[2]
	default:
		return nil, common.ModelInvocation("model output has shape %v, want (batch, candidates, 5+classes)", shape)
	}
	if cols <= attributes {
		return nil, common.ModelInvocation("model output has %d columns, want more than %d", cols, attributes)
	}
	if len(data) != batch*rows*cols {
		return nil, common.ModelInvocation("model output holds %d values for shape %v", len(data), shape)
	}

	preds := make([]RawPrediction, batch)
	stride := rows * cols
	for b := range preds {
		preds[b] = RawPrediction{
			Data: data[b*stride : (b+1)*stride],
			Rows: rows,
			Cols: cols,
		}
	}
	return preds, nil
}
