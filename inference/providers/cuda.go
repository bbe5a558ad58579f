// Package providers - CUDA based execution provider.
package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CUDAProviderBackend uses NVIDIA CUDA for inference optimization.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// CUDAProvider implements the ExecutionProvider interface.
type CUDAProvider struct {
	options CUDAOptions
}

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID" yaml:"deviceID"`
	// Whether to do copies in the default stream or use separate streams.
	DoCopyInDefaultStream bool `json:"doCopyInDefaultStream" yaml:"doCopyInDefaultStream"`
	// The size limit of the device memory arena in bytes. Zero leaves the default.
	GPUMemLimit int64 `json:"gpuMemLimit" yaml:"gpuMemLimit"`
	// The strategy for extending the device memory arena.
	// 0: kNextPowerOfTwo, 1: kSameAsRequested.
	ArenaExtendStrategy int `json:"arenaExtendStrategy" yaml:"arenaExtendStrategy"`
	// The type of search done for cuDNN convolution algorithms.
	// 0: EXHAUSTIVE, 1: HEURISTIC, 2: DEFAULT.
	CudnnConvAlgoSearch int `json:"cudnnConvAlgoSearch" yaml:"cudnnConvAlgoSearch"`
	// TF32 math on Ampere and newer GPUs.
	UseTF32 int `json:"useTF32" yaml:"useTF32"`
}

// DefaultCUDAOptions returns the recommended settings for one device.
func DefaultCUDAOptions(deviceID int) CUDAOptions {
	return CUDAOptions{
		DeviceID:              deviceID,
		DoCopyInDefaultStream: true,
		CudnnConvAlgoSearch:   0,
		UseTF32:               1,
	}
}

// Map returns the options in the key/value form ONNX Runtime expects.
func (o CUDAOptions) Map() map[string]string {
	m := map[string]string{
		"device_id":                 strconv.Itoa(o.DeviceID),
		"do_copy_in_default_stream": strconv.Itoa(boolToInt(o.DoCopyInDefaultStream)),
		"arena_extend_strategy":     arenaStrategies[o.ArenaExtendStrategy%len(arenaStrategies)],
		"cudnn_conv_algo_search":    convAlgoSearches[o.CudnnConvAlgoSearch%len(convAlgoSearches)],
		"use_tf32":                  strconv.Itoa(o.UseTF32),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	return m
}

var (
	arenaStrategies  = []string{"kNextPowerOfTwo", "kSameAsRequested"}
	convAlgoSearches = []string{"EXHAUSTIVE", "HEURISTIC", "DEFAULT"}
)

// ToNativeProviderOptions converts the CUDA options to native CUDA provider options. The caller
// destroys the result.
func (o CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating CUDA options")
	}

	if err := opts.Update(o.Map()); err != nil {
		opts.Destroy()
		return nil, errors.Wrap(err, "error updating CUDA options")
	}

	return opts, nil
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CUDAOptions) isProviderOptions() {}

// Backend returns the backend of the CUDA provider.
func (p *CUDAProvider) Backend() ProviderBackend {
	return CUDAProviderBackend
}

// Options returns the options of the CUDA provider.
func (p *CUDAProvider) Options() ProviderOptions {
	return p.options
}

// Append enables CUDA on the session options.
func (p *CUDAProvider) Append(options *ort.SessionOptions) error {
	cuda, err := p.options.ToNativeProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()

	return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "error enabling CUDA")
}

// NewCUDAProvider creates a new CUDA provider.
func NewCUDAProvider(args CUDAOptions) *CUDAProvider {
	return &CUDAProvider{
		options: args,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
