// Package providers - CPU based execution provider.
package providers

import (
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CPUProviderBackend uses the default ONNX Runtime CPU kernels.
	CPUProviderBackend ProviderBackend = "cpu"
)

// CPUOptions contains arguments for the CPU provider.
type CPUOptions struct {
	// IntraOpNumThreads bounds the threads used inside one operator. Zero lets ONNX Runtime decide.
	IntraOpNumThreads int `json:"intraOpNumThreads" yaml:"intraOpNumThreads"`
}

func (CPUOptions) isProviderOptions() {}

// CPUProvider implements the ExecutionProvider interface.
type CPUProvider struct {
	options CPUOptions
}

// NewCPUProvider creates a new CPU provider.
func NewCPUProvider(options CPUOptions) *CPUProvider {
	return &CPUProvider{options: options}
}

// Backend returns the backend of the CPU provider.
func (p *CPUProvider) Backend() ProviderBackend {
	return CPUProviderBackend
}

// Options returns the options of the CPU provider.
func (p *CPUProvider) Options() ProviderOptions {
	return p.options
}

// Append applies the thread setting. The CPU kernels are always registered.
func (p *CPUProvider) Append(options *ort.SessionOptions) error {
	if p.options.IntraOpNumThreads > 0 {
		return options.SetIntraOpNumThreads(p.options.IntraOpNumThreads)
	}
	return nil
}
