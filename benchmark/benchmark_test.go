package benchmark

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/config"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/inference"
	"github.com/nvr-ai/go-yolov5/models/model"
)

// newEngine builds an engine whose model reports one confident box per image.
func newEngine(t *testing.T) inference.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Width, cfg.Height = 32, 32

	m := model.Func(func(_ context.Context, input *tensor.Dense) (*tensor.Dense, error) {
		n := input.Shape()[0]
		data := make([]float32, 0, n*6)
		for i := 0; i < n; i++ {
			data = append(data, 16, 16, 8, 8, 0.9, 0.9)
		}
		return tensor.New(tensor.WithShape(n, 1, 6), tensor.WithBacking(data)), nil
	})

	e, err := inference.NewEngineBuilder(cfg).WithModel(m).Build()
	require.NoError(t, err)
	return e
}

func TestRun(t *testing.T) {
	frames := []images.Frame{
		images.FrameFromImage(image.NewRGBA(image.Rect(0, 0, 64, 48))),
		{},
	}

	metrics, err := Run(context.Background(), newEngine(t), frames, Scenario{
		Name:       "fake",
		BatchSize:  2,
		Iterations: 5,
		WarmupRuns: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "fake", metrics.Scenario.Name)
	assert.Equal(t, 5, metrics.DetectionCount, "one detection per valid frame")
	assert.InDelta(t, 0.5, metrics.ErrorRate, 1e-9, "every other frame is empty")
	assert.Positive(t, metrics.FramesPerSecond)
	assert.LessOrEqual(t, metrics.P50Latency, metrics.P95Latency)
}

func TestRun_Errors(t *testing.T) {
	e := newEngine(t)
	frames := []images.Frame{{}}

	_, err := Run(context.Background(), e, frames, Scenario{BatchSize: 0, Iterations: 1})
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, err = Run(context.Background(), e, nil, Scenario{BatchSize: 1, Iterations: 1})
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, e, frames, Scenario{BatchSize: 1, Iterations: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 0.5))
	assert.Equal(t, time.Duration(10), percentile(sorted, 0.95))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 0.5))
}
