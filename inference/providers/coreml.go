// Package providers - CoreML based execution provider.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML provider flags.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
const (
	coreMLFlagUseCPUOnly              uint32 = 0x001
	coreMLFlagOnlyEnableDeviceWithANE uint32 = 0x004
	coreMLFlagCreateMLProgram         uint32 = 0x010
)

// CoreMLOptions contains arguments for the CoreML provider.
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	CPUOnly bool `json:"cpuOnly" yaml:"cpuOnly"`
	// Only enable CoreML on devices with an Apple Neural Engine.
	RequireANE bool `json:"requireANE" yaml:"requireANE"`
	// Create an MLProgram format model. Requires Core ML 5 or later (iOS 15+ or macOS 12+).
	MLProgram bool `json:"mlProgram" yaml:"mlProgram"`
}

// Flags packs the options into the bit set ONNX Runtime expects.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= coreMLFlagUseCPUOnly
	}
	if o.RequireANE {
		flags |= coreMLFlagOnlyEnableDeviceWithANE
	}
	if o.MLProgram {
		flags |= coreMLFlagCreateMLProgram
	}
	return flags
}

func (CoreMLOptions) isProviderOptions() {}

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Options returns the options of the CoreML provider.
func (p *CoreMLProvider) Options() ProviderOptions {
	return p.options
}

// Append enables CoreML on the session options.
func (p *CoreMLProvider) Append(options *ort.SessionOptions) error {
	return errors.Wrap(options.AppendExecutionProviderCoreML(p.options.Flags()), "error enabling CoreML")
}

// NewCoreMLProvider creates a new CoreML provider.
func NewCoreMLProvider(options CoreMLOptions) *CoreMLProvider {
	return &CoreMLProvider{
		options: options,
	}
}
