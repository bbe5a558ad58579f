package inference

import (
	"context"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolov5/common"
	"github.com/nvr-ai/go-yolov5/config"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/inference/providers"
	"github.com/nvr-ai/go-yolov5/models"
	"github.com/nvr-ai/go-yolov5/models/model"
)

// Engine defines the interface for ML inference engines
type Engine interface {
	Predict(ctx context.Context, frames []images.Frame, opts ...CallOption) ([]Result, error)
	Detector() *Detector
	Close() error
}

// EngineBuilder assembles an engine from a configuration with a fluent API.
type EngineBuilder struct {
	config   config.Config
	provider providers.ExecutionProvider
	model    model.Model
	closer   func() error
	labels   *models.OutputClassSet
	logger   *zap.Logger
	err      error
}

// NewEngineBuilder creates a new engine builder.
//
// Arguments:
//   - cfg: The configuration. It is validated by Build.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder(cfg config.Config) *EngineBuilder {
	return &EngineBuilder{config: cfg, logger: zap.NewNop()}
}

// WithLogger sets the logger for the engine.
func (b *EngineBuilder) WithLogger(logger *zap.Logger) *EngineBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithProvider resolves the execution provider named by the configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithProvider() *EngineBuilder {
	if b.HasError() {
		return b
	}

	backend, err := providers.ParseBackend(b.config.Provider)
	if err != nil {
		b.err = err
		return b
	}
	provider, err := providers.NewProviderForBackend(backend, b.config.DeviceID)
	if err != nil {
		b.err = err
		return b
	}
	b.provider = provider
	return b
}

// WithLabels loads class names from the configured dataset YAML. Without it, or with an empty
// path, the COCO classes are used.
func (b *EngineBuilder) WithLabels() *EngineBuilder {
	if b.HasError() || b.config.Labels == "" {
		return b
	}

	labels, err := models.LoadLabels(b.config.Labels)
	if err != nil {
		b.err = err
		return b
	}
	b.labels = labels
	return b
}

// WithSession opens an ONNX Runtime session on the configured model and provider.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithSession() *EngineBuilder {
	if b.HasError() {
		return b
	}

	session, err := providers.NewSession(providers.NewSessionArgs{
		ModelPath:   b.config.Model,
		LibraryPath: b.config.LibraryPath,
		Provider:    b.provider,
	})
	if err != nil {
		b.err = err
		return b
	}
	b.model = session
	b.closer = session.Close

	b.logger.Info("session opened",
		zap.String("model", b.config.Model),
		zap.String("provider", string(session.Backend())),
	)
	return b
}

// WithModel uses an already constructed model instead of an ONNX Runtime session. A session
// opened earlier by WithSession is closed.
//
// Arguments:
//   - m: The model.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(m model.Model) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.release()
	b.model = m
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// engine implements the Engine interface.
type engine struct {
	detector *Detector
	closer   func() error
}

func (e *engine) Predict(ctx context.Context, frames []images.Frame, opts ...CallOption) ([]Result, error) {
	return e.detector.Predict(ctx, frames, opts...)
}

func (e *engine) Detector() *Detector {
	return e.detector
}

func (e *engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build builds the engine.
//
// Returns:
//   - Engine: The engine.
//   - error: The first error recorded by the builder, or common.ErrConfiguration when no model
//     was configured.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		b.release()
		return nil, b.err
	}
	if b.model == nil {
		return nil, common.Configuration("model not configured")
	}

	detector, err := NewDetector(b.model, b.config, WithLogger(b.logger), WithLabels(b.labels))
	if err != nil {
		b.release()
		return nil, err
	}

	return &engine{detector: detector, closer: b.closer}, nil
}

func (b *EngineBuilder) release() {
	if b.closer != nil {
		_ = b.closer()
		b.closer = nil
	}
}
