// Package model - the contract between the detection pipeline and a model runtime.
package model

import (
	"context"

	"gorgonia.org/tensor"
)

// Model runs a detector on a batched input.
//
// The input has shape (N, 3, H, W) holding RGB values in [0, 1]. The output has shape
// (N, candidates, 5+classes). Implementations are treated as synchronous black boxes; a
// returned error aborts the prediction call.
type Model interface {
	Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)
}

// Func adapts a plain function to the Model interface.
type Func func(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)

// Infer calls f.
func (f Func) Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	return f(ctx, input)
}
