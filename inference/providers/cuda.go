package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// CUDAOptions configures the CUDA execution provider.
type CUDAOptions struct {
	// DeviceID selects the GPU to run on.
	DeviceID int `json:"device_id"              yaml:"device_id"`
	// GPUMemLimit caps the CUDA arena, in bytes. Zero means no limit.
	GPUMemLimit uint64 `json:"gpu_mem_limit"          yaml:"gpu_mem_limit"`
	// ArenaExtendStrategy is kNextPowerOfTwo or kSameAsRequested.
	ArenaExtendStrategy string `json:"arena_extend_strategy"  yaml:"arena_extend_strategy"`
	// CudnnConvAlgoSearch is EXHAUSTIVE, HEURISTIC or DEFAULT.
	CudnnConvAlgoSearch string `json:"cudnn_conv_algo_search" yaml:"cudnn_conv_algo_search"`
	// DoCopyInDefaultStream serializes copies with compute when true.
	DoCopyInDefaultStream bool `json:"do_copy_in_default_stream" yaml:"do_copy_in_default_stream"`
}

func (CUDAOptions) isProviderOptions() {}

// DefaultCUDAOptions returns CUDA options suitable for batch inference on
// the given device.
func DefaultCUDAOptions(deviceID int) CUDAOptions {
	return CUDAOptions{
		DeviceID:              deviceID,
		ArenaExtendStrategy:   "kNextPowerOfTwo",
		CudnnConvAlgoSearch:   "EXHAUSTIVE",
		DoCopyInDefaultStream: true,
	}
}

// ToNativeProviderOptions converts the options into the onnxruntime
// representation. The caller owns the returned options and must Destroy them.
func (o CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, errors.Wrap(err, "creating CUDA provider options")
	}

	keys := map[string]string{
		"device_id":                 strconv.Itoa(o.DeviceID),
		"do_copy_in_default_stream": boolKey(o.DoCopyInDefaultStream),
	}
	if o.GPUMemLimit > 0 {
		keys["gpu_mem_limit"] = strconv.FormatUint(o.GPUMemLimit, 10)
	}
	if o.ArenaExtendStrategy != "" {
		keys["arena_extend_strategy"] = o.ArenaExtendStrategy
	}
	if o.CudnnConvAlgoSearch != "" {
		keys["cudnn_conv_algo_search"] = o.CudnnConvAlgoSearch
	}

	if err := opts.Update(keys); err != nil {
		opts.Destroy()
		return nil, errors.Wrap(err, "updating CUDA provider options")
	}
	return opts, nil
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
