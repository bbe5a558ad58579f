// Package providers - ONNX Runtime execution providers and sessions.
package providers

import (
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-yolov5/common"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend identifies the provider.
	Backend() ProviderBackend
	// Options returns the provider-specific options.
	Options() ProviderOptions
	// Append registers the provider on session options.
	Append(options *ort.SessionOptions) error
}

// ParseBackend maps a configuration string onto a backend.
//
// Arguments:
//   - name: One of cpu, cuda, coreml or openvino. Case is ignored and empty means cpu.
//
// Returns:
//   - ProviderBackend: The backend.
//   - error: common.ErrConfiguration for unknown names.
func ParseBackend(name string) (ProviderBackend, error) {
	switch b := ProviderBackend(strings.ToLower(strings.TrimSpace(name))); b {
	case "":
		return CPUProviderBackend, nil
	case CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend:
		return b, nil
	default:
		return "", common.Configuration("unsupported execution provider %q", name)
	}
}

// NewProvider creates a new provider based on the required options.
//
// Arguments:
//   - options: The options for the provider. Their type selects the backend.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the options type is unknown.
func NewProvider(options ProviderOptions) (ExecutionProvider, error) {
	switch opts := options.(type) {
	case CPUOptions:
		return NewCPUProvider(opts), nil
	case CoreMLOptions:
		return NewCoreMLProvider(opts), nil
	case OpenVINOOptions:
		return NewOpenVINOProvider(opts), nil
	case CUDAOptions:
		return NewCUDAProvider(opts), nil
	default:
		return nil, common.Configuration("unsupported provider options type: %T", opts)
	}
}

// NewProviderForBackend creates a provider with default options for a backend and device.
func NewProviderForBackend(backend ProviderBackend, deviceID int) (ExecutionProvider, error) {
	switch backend {
	case CPUProviderBackend, "":
		return NewProvider(CPUOptions{})
	case CUDAProviderBackend:
		return NewProvider(DefaultCUDAOptions(deviceID))
	case CoreMLProviderBackend:
		return NewProvider(CoreMLOptions{})
	case OpenVINOProviderBackend:
		return NewProvider(DefaultOpenVINOOptions(deviceID))
	default:
		return nil, common.Configuration("unsupported execution provider %q", backend)
	}
}
