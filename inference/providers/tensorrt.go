package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// TensorRTOptions configures the TensorRT execution provider.
type TensorRTOptions struct {
	// DeviceID selects the GPU to run on.
	DeviceID int `json:"device_id"          yaml:"device_id"`
	// MaxWorkspaceSize caps TensorRT scratch memory, in bytes.
	MaxWorkspaceSize uint64 `json:"max_workspace_size" yaml:"max_workspace_size"`
	// FP16Enable lets TensorRT quantize eligible layers to half precision.
	FP16Enable bool `json:"fp16_enable"        yaml:"fp16_enable"`
	// EngineCacheEnable persists built engines between runs.
	EngineCacheEnable bool `json:"engine_cache_enable" yaml:"engine_cache_enable"`
	// EngineCachePath is where cached engines are written.
	EngineCachePath string `json:"engine_cache_path"  yaml:"engine_cache_path"`
}

func (TensorRTOptions) isProviderOptions() {}

// DefaultTensorRTOptions returns TensorRT options for the given device.
// Engine caching is on so repeated runs skip the build step.
func DefaultTensorRTOptions(deviceID int) TensorRTOptions {
	return TensorRTOptions{
		DeviceID:          deviceID,
		FP16Enable:        true,
		EngineCacheEnable: true,
		EngineCachePath:   ".trt-cache",
	}
}

// ToNativeProviderOptions converts the options into the onnxruntime
// representation. The caller owns the returned options and must Destroy them.
func (o TensorRTOptions) ToNativeProviderOptions() (*ort.TensorRTProviderOptions, error) {
	opts, err := ort.NewTensorRTProviderOptions()
	if err != nil {
		return nil, errors.Wrap(err, "creating TensorRT provider options")
	}

	keys := map[string]string{
		"device_id":               strconv.Itoa(o.DeviceID),
		"trt_fp16_enable":         boolKey(o.FP16Enable),
		"trt_engine_cache_enable": boolKey(o.EngineCacheEnable),
	}
	if o.MaxWorkspaceSize > 0 {
		keys["trt_max_workspace_size"] = strconv.FormatUint(o.MaxWorkspaceSize, 10)
	}
	if o.EngineCacheEnable && o.EngineCachePath != "" {
		keys["trt_engine_cache_path"] = o.EngineCachePath
	}

	if err := opts.Update(keys); err != nil {
		opts.Destroy()
		return nil, errors.Wrap(err, "updating TensorRT provider options")
	}
	return opts, nil
}
