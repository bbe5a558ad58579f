// Package providers - OpenVINO based execution provider.
package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-yolov5/models/model"
)

const (
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type, e.g. CPU, GPU, GPU.0, NPU.
	DeviceType string `json:"deviceType" yaml:"deviceType"`
	// Supported precisions for HW {CPU:FP32, GPU:[FP32, FP16, ACCURACY], NPU:FP16}.
	Precision model.Precision `json:"precision" yaml:"precision"`
	// Overrides the accelerator default number of threads. Zero leaves the default.
	NumOfThreads int `json:"numOfThreads" yaml:"numOfThreads"`
	// This option enables rewriting dynamic shaped models to static shape at runtime and execute.
	DisableDynamicShapes bool `json:"disableDynamicShapes" yaml:"disableDynamicShapes"`
}

// DefaultOpenVINOOptions targets the CPU for device 0 and the numbered GPU otherwise.
func DefaultOpenVINOOptions(deviceID int) OpenVINOOptions {
	if deviceID <= 0 {
		return OpenVINOOptions{DeviceType: "CPU", Precision: model.PrecisionFP32}
	}
	return OpenVINOOptions{DeviceType: "GPU." + strconv.Itoa(deviceID-1), Precision: model.PrecisionFP16}
}

// Map returns the options in the key/value form ONNX Runtime expects.
func (o OpenVINOOptions) Map() map[string]string {
	m := map[string]string{
		"disable_dynamic_shapes": strconv.FormatBool(o.DisableDynamicShapes),
	}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = string(o.Precision)
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	return m
}

// isProviderOptions is a marker function to ensure the options are valid.
func (OpenVINOOptions) isProviderOptions() {}

// OpenVINOProvider implements the ExecutionProvider interface.
type OpenVINOProvider struct {
	options OpenVINOOptions
}

// Backend returns the backend of the OpenVINO provider.
func (p *OpenVINOProvider) Backend() ProviderBackend {
	return OpenVINOProviderBackend
}

// Options returns the options of the OpenVINO provider.
func (p *OpenVINOProvider) Options() ProviderOptions {
	return p.options
}

// Append enables OpenVINO on the session options.
func (p *OpenVINOProvider) Append(options *ort.SessionOptions) error {
	return errors.Wrap(options.AppendExecutionProviderOpenVINO(p.options.Map()), "error enabling OpenVINO")
}

// NewOpenVINOProvider creates a new OpenVINO provider.
func NewOpenVINOProvider(args OpenVINOOptions) *OpenVINOProvider {
	return &OpenVINOProvider{options: args}
}
