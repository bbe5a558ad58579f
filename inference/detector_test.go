package inference

import (
	"context"
	"image"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/config"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/models"
	"github.com/nvr-ai/go-yolov5/models/model"
)

// candidates are the rows every fake image yields: one confident class 1 box centered on the
// 64x64 canvas and one row far below the confidence threshold.
var candidates = []float32{
	32, 32, 20, 20, 0.9, 0.1, 0.9, 0.2,
	32, 32, 20, 20, 0.1, 0.5, 0.1, 0.1,
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Width = 64
	cfg.Height = 64
	cfg.Workers = 2
	return cfg
}

// fakeModel answers every batch row with the same candidates and counts its calls.
func fakeModel(calls *int32, shapes *[]int) model.Func {
	return func(_ context.Context, input *tensor.Dense) (*tensor.Dense, error) {
		atomic.AddInt32(calls, 1)
		if shapes != nil {
			*shapes = append([]int(nil), input.Shape()...)
		}
		n := input.Shape()[0]
		data := make([]float32, 0, n*len(candidates))
		for i := 0; i < n; i++ {
			data = append(data, candidates...)
		}
		return tensor.New(tensor.WithShape(n, 2, 8), tensor.WithBacking(data)), nil
	}
}

func solidFrame(w, h int) images.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return images.FrameFromImage(img)
}

func newTestDetector(t *testing.T, m model.Model, opts ...Option) *Detector {
	t.Helper()
	d, err := NewDetector(m, testConfig(), opts...)
	require.NoError(t, err, "detector should accept a valid configuration")
	return d
}

// TestPredict_CorruptMiddleImage runs a batch whose middle frame is unusable. The other two
// frames are detected and rescaled to their own coordinates.
func TestPredict_CorruptMiddleImage(t *testing.T) {
	var calls int32
	var shape []int
	d := newTestDetector(t, fakeModel(&calls, &shape))

	frames := []images.Frame{
		solidFrame(128, 64),
		{Width: 16, Height: 16, Channels: 3, Order: images.ColorOrderRGB},
		solidFrame(32, 64),
	}

	results, err := d.Predict(context.Background(), frames)
	require.NoError(t, err, "one bad frame must not fail the call")
	require.Len(t, results, 3)

	assert.Equal(t, int32(1), calls, "valid frames share a single model call")
	assert.Equal(t, []int{2, 3, 64, 64}, shape)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}

	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Detections, 1, "the low confidence row is dropped")
	det := results[0].Detections[0]
	assert.Equal(t, 1, det.Class)
	assert.InDelta(t, 0.81, det.Score, 1e-5)
	assert.InDelta(t, 44, det.Box.X1, 1e-3)
	assert.InDelta(t, 12, det.Box.Y1, 1e-3)
	assert.InDelta(t, 84, det.Box.X2, 1e-3)
	assert.InDelta(t, 52, det.Box.Y2, 1e-3)
	assert.True(t, results[0].Metadata.IsH())

	assert.True(t, errors.Is(results[1].Err, common.ErrInvalidImage))
	assert.Empty(t, results[1].Detections)

	require.NoError(t, results[2].Err)
	require.Len(t, results[2].Detections, 1)
	det = results[2].Detections[0]
	assert.InDelta(t, 6, det.Box.X1, 1e-3)
	assert.InDelta(t, 22, det.Box.Y1, 1e-3)
	assert.InDelta(t, 26, det.Box.X2, 1e-3)
	assert.InDelta(t, 42, det.Box.Y2, 1e-3)
	assert.True(t, results[2].Metadata.IsW())
}

func TestPredict_AllInvalidSkipsModel(t *testing.T) {
	var calls int32
	d := newTestDetector(t, fakeModel(&calls, nil))

	results, err := d.Predict(context.Background(), []images.Frame{{}, {}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Zero(t, calls, "the model is not called without a valid frame")
	for _, r := range results {
		assert.True(t, errors.Is(r.Err, common.ErrInvalidImage))
	}
}

func TestPredict_ModelError(t *testing.T) {
	boom := errors.New("device lost")
	d := newTestDetector(t, model.Func(func(context.Context, *tensor.Dense) (*tensor.Dense, error) {
		return nil, boom
	}))

	_, err := d.Predict(context.Background(), []images.Frame{solidFrame(32, 32)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrModelInvocation))
	assert.True(t, errors.Is(err, boom), "the model error stays reachable")
}

func TestPredict_MalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		out  *tensor.Dense
	}{
		{
			name: "too many rows",
			out:  tensor.New(tensor.WithShape(3, 2, 8), tensor.WithBacking(make([]float32, 48))),
		},
		{
			name: "four dimensions",
			out:  tensor.New(tensor.WithShape(1, 1, 2, 8), tensor.WithBacking(make([]float32, 16))),
		},
		{
			name: "too few columns",
			out:  tensor.New(tensor.WithShape(1, 2, 5), tensor.WithBacking(make([]float32, 10))),
		},
		{
			name: "float64 output",
			out:  tensor.New(tensor.WithShape(1, 2, 8), tensor.WithBacking(make([]float64, 16))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(t, model.Func(func(context.Context, *tensor.Dense) (*tensor.Dense, error) {
				return tt.out, nil
			}))

			_, err := d.Predict(context.Background(), []images.Frame{solidFrame(32, 32)})
			assert.True(t, errors.Is(err, common.ErrModelInvocation), "got %v", err)
		})
	}
}

func TestPredict_Canceled(t *testing.T) {
	var calls int32
	d := newTestDetector(t, fakeModel(&calls, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Predict(ctx, []images.Frame{solidFrame(32, 32)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestPredict_CallOptions(t *testing.T) {
	var calls int32
	d := newTestDetector(t, fakeModel(&calls, nil))
	frames := []images.Frame{solidFrame(32, 32)}

	results, err := d.Predict(context.Background(), frames, WithThresholds(0.9, 0.45))
	require.NoError(t, err)
	assert.Empty(t, results[0].Detections, "a stricter threshold drops the 0.81 box")

	results, err = d.Predict(context.Background(), frames, WithClasses(0, 2))
	require.NoError(t, err)
	assert.Empty(t, results[0].Detections)

	results, err = d.Predict(context.Background(), frames, WithMaxDetections(1))
	require.NoError(t, err)
	assert.Len(t, results[0].Detections, 1)

	_, err = d.Predict(context.Background(), frames, WithThresholds(1.5, 0.45))
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	// Overrides do not leak into later calls.
	results, err = d.Predict(context.Background(), frames)
	require.NoError(t, err)
	assert.Len(t, results[0].Detections, 1)
}

func TestDetector_Existence(t *testing.T) {
	var calls int32
	d := newTestDetector(t, fakeModel(&calls, nil))
	frames := []images.Frame{solidFrame(32, 32), {}}

	found, err := d.ExistencePrediction(context.Background(), frames, 1)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = d.ExistencePrediction(context.Background(), frames, 0, 2)
	require.NoError(t, err)
	assert.False(t, found)

	dets, err := d.PredictImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.True(t, errors.Is(err, common.ErrInvalidImage), "an empty image has no pixels")
	assert.Empty(t, dets)

	dets, err = d.PredictImage(context.Background(), image.NewGray(image.Rect(0, 0, 48, 24)))
	require.NoError(t, err)
	assert.Len(t, dets, 1)
}

func TestPredictFrame(t *testing.T) {
	var calls int32
	d := newTestDetector(t, fakeModel(&calls, nil))

	dets, err := d.PredictFrame(context.Background(), solidFrame(64, 64))
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "bicycle", d.Labels().Name(dets[0].Class))

	_, err = d.PredictFrame(context.Background(), images.Frame{})
	assert.True(t, errors.Is(err, common.ErrInvalidImage))
}

func TestNewDetector_Errors(t *testing.T) {
	_, err := NewDetector(nil, testConfig())
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	cfg := testConfig()
	cfg.IouThres = -0.1
	_, err = NewDetector(fakeModel(new(int32), nil), cfg)
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	cfg = testConfig()
	cfg.Width = 0
	_, err = NewDetector(fakeModel(new(int32), nil), cfg)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestDetector_Options(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	labels := models.NewOutputClassSet(models.ModelFamilyCustom, []string{"car", "person", "truck"})

	d := newTestDetector(t, fakeModel(new(int32), nil), WithLogger(zap.New(core)), WithLabels(labels))
	assert.Same(t, labels, d.Labels())

	_, err := d.Predict(context.Background(), []images.Frame{solidFrame(32, 32), {}})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("skipping frame").Len())
	done := logs.FilterMessage("prediction complete").All()
	require.Len(t, done, 1)
	fields := done[0].ContextMap()
	assert.EqualValues(t, 2, fields["batch_size"])
	assert.EqualValues(t, 1, fields["valid"])
	assert.EqualValues(t, 1, fields["invalid"])
	assert.EqualValues(t, 1, fields["detections"])
}

func TestEngineBuilder(t *testing.T) {
	var calls int32
	e, err := NewEngineBuilder(testConfig()).WithModel(fakeModel(&calls, nil)).Build()
	require.NoError(t, err)
	defer func() { assert.NoError(t, e.Close()) }()

	results, err := e.Predict(context.Background(), []images.Frame{solidFrame(32, 32)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Detections, 1)
	assert.Same(t, models.YOLOClasses, e.Detector().Labels())
}

func TestEngineBuilder_Errors(t *testing.T) {
	_, err := NewEngineBuilder(testConfig()).Build()
	assert.True(t, errors.Is(err, common.ErrConfiguration), "a model is required")

	cfg := testConfig()
	cfg.Provider = "tpu"
	_, err = NewEngineBuilder(cfg).WithProvider().WithModel(fakeModel(new(int32), nil)).Build()
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	cfg = testConfig()
	cfg.Labels = "testdata/does-not-exist.yaml"
	_, err = NewEngineBuilder(cfg).WithLabels().WithModel(fakeModel(new(int32), nil)).Build()
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Model = "testdata/does-not-exist.onnx"
	_, err = NewEngineBuilder(cfg).WithProvider().WithSession().Build()
	assert.True(t, errors.Is(err, common.ErrConfiguration), "a missing model fails before the runtime loads")

	assert.Panics(t, func() { NewEngineBuilder(testConfig()).MustBuild() })
}

// TestEngineBuilder_ReplacedSessionIsClosed replaces an opened session with another model. The
// session is closed at once and the engine does not close it again.
func TestEngineBuilder_ReplacedSessionIsClosed(t *testing.T) {
	var closes int
	b := NewEngineBuilder(testConfig())
	b.model = fakeModel(new(int32), nil)
	b.closer = func() error {
		closes++
		return nil
	}

	e, err := b.WithModel(fakeModel(new(int32), nil)).Build()
	require.NoError(t, err)
	assert.Equal(t, 1, closes)

	require.NoError(t, e.Close())
	assert.Equal(t, 1, closes)
}
