// Package providers - Inference sessions.
package providers

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolov5/common"
)

// environment guards the process-wide ONNX Runtime initialization. owned is set when this package
// initialized the environment and is therefore the one to destroy it.
var environment struct {
	sync.Mutex
	refs  int
	owned bool
}

// ONNX Runtime environment hooks, replaced in tests.
var (
	ortIsInitialized = ort.IsInitialized
	ortSetLibrary    = ort.SetSharedLibraryPath
	ortInitialize    = ort.InitializeEnvironment
	ortDestroy       = ort.DestroyEnvironment
)

// Session runs a YOLOv5 ONNX model and implements model.Model.
type Session struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	backend    ProviderBackend
	mu         sync.Mutex
}

// NewSessionArgs represents the arguments for creating a new ONNX session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// The path to the onnxruntime shared library. Empty falls back to GetSharedLibPath.
	LibraryPath string
	// The execution provider. Nil uses the CPU.
	Provider ExecutionProvider
	// The input node name. Empty uses the model's first input.
	InputName string
	// The output node name. Empty uses the model's first output.
	OutputName string
}

// NewSession creates a new ONNX Runtime session.
//
// Order of operations:
//  1. Library path check: Ensures native runtime is accessible.
//  2. Environment setup: Required once per process, reference counted across sessions.
//  3. Node discovery: Reads input/output names from the model when not given.
//  4. Session options: Graph optimization level and the execution provider.
//  5. Session creation: Loads the model. Tensors are allocated per call so that batch sizes
//     may vary.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The runnable session. Close it when done.
//   - error: common.ErrConfiguration for missing files, common.ErrModelInvocation when the
//     runtime rejects the model.
func NewSession(args NewSessionArgs) (*Session, error) {
	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, common.Configuration("model not found at %s: %v", args.ModelPath, err)
	}

	libPath := args.LibraryPath
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if libPath != "" {
		if _, err := os.Stat(libPath); err != nil {
			return nil, common.Configuration("ONNX Runtime library not found at %s: %v", libPath, err)
		}
	}

	if err := acquireEnvironment(libPath); err != nil {
		return nil, err
	}

	s, err := newSession(args)
	if err != nil {
		releaseEnvironment()
		return nil, err
	}
	return s, nil
}

func newSession(args NewSessionArgs) (*Session, error) {
	inputName, outputName := args.InputName, args.OutputName
	if inputName == "" || outputName == "" {
		inputs, outputs, err := ort.GetInputOutputInfo(args.ModelPath)
		if err != nil {
			return nil, common.ModelInvocation("error reading model nodes: %v", err)
		}
		if len(inputs) == 0 || len(outputs) == 0 {
			return nil, common.ModelInvocation("model %s has no inputs or outputs", args.ModelPath)
		}
		if inputName == "" {
			inputName = inputs[0].Name
		}
		if outputName == "" {
			outputName = outputs[0].Name
		}
	}

	provider := args.Provider
	if provider == nil {
		provider = NewCPUProvider(CPUOptions{})
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}
	if err := provider.Append(options); err != nil {
		return nil, common.Configuration("%s provider: %v", provider.Backend(), err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		args.ModelPath,
		[]string{inputName},
		[]string{outputName},
		options,
	)
	if err != nil {
		return nil, common.ModelInvocation("error creating ORT session: %v", err)
	}

	return &Session{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
		backend:    provider.Backend(),
	}, nil
}

// Backend returns the execution provider the session runs on.
func (s *Session) Backend() ProviderBackend {
	return s.backend
}

// Infer runs the model on a batched (N, 3, H, W) input and returns its (N, candidates, 5+K)
// output.
//
// Arguments:
//   - ctx: Checked before the call; a running inference is not interrupted.
//   - input: The input tensor.
//
// Returns:
//   - *tensor.Dense: The output, copied out of native memory.
//   - error: common.ErrModelInvocation on failure.
func (s *Session) Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, common.ModelInvocation("input tensor is nil")
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, common.ModelInvocation("input has dtype %v, want float32", input.Dtype())
	}

	in, err := ort.NewTensor(toShape(input.Shape()), data)
	if err != nil {
		return nil, common.ModelInvocation("error creating input tensor: %v", err)
	}
	defer in.Destroy()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, common.ModelInvocation("session is closed")
	}

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, common.ModelInvocation("error running session: %v", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, common.ModelInvocation("output %s is %T, want a float32 tensor", s.outputName, outputs[0])
	}

	values := make([]float32, len(out.GetData()))
	copy(values, out.GetData())
	return tensor.New(tensor.WithShape(fromShape(out.GetShape())...), tensor.WithBacking(values)), nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	releaseEnvironment()
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}

func acquireEnvironment(libPath string) error {
	environment.Lock()
	defer environment.Unlock()

	if environment.refs == 0 && !ortIsInitialized() {
		if libPath != "" {
			ortSetLibrary(libPath)
		}
		if err := ortInitialize(); err != nil {
			return common.Configuration("error initializing ORT environment: %v", err)
		}
		environment.owned = true
	}
	environment.refs++
	return nil
}

func releaseEnvironment() {
	environment.Lock()
	defer environment.Unlock()

	if environment.refs == 0 {
		return
	}
	environment.refs--
	if environment.refs == 0 && environment.owned {
		_ = ortDestroy()
		environment.owned = false
	}
}

func toShape(shape tensor.Shape) ort.Shape {
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	return ort.NewShape(dims...)
}

func fromShape(shape ort.Shape) []int {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return dims
}
