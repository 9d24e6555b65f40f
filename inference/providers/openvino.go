package providers

import "strconv"

// OpenVINOOptions configures the OpenVINO execution provider.
type OpenVINOOptions struct {
	// DeviceType is the OpenVINO target, for example CPU or GPU.0.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// NumThreads bounds the OpenVINO thread pool. Zero lets the runtime pick.
	NumThreads int `json:"num_threads" yaml:"num_threads"`
	// CacheDir persists compiled blobs between runs.
	CacheDir string `json:"cache_dir"   yaml:"cache_dir"`
}

func (OpenVINOOptions) isProviderOptions() {}

// DefaultOpenVINOOptions returns OpenVINO options for the given device.
// Device zero maps to the bare CPU target, higher IDs to the numbered GPUs.
func DefaultOpenVINOOptions(deviceID int) OpenVINOOptions {
	device := "CPU"
	if deviceID > 0 {
		device = "GPU." + strconv.Itoa(deviceID-1)
	}
	return OpenVINOOptions{DeviceType: device}
}

// ToMap flattens the options into the key set onnxruntime expects.
func (o OpenVINOOptions) ToMap() map[string]string {
	keys := map[string]string{}
	if o.DeviceType != "" {
		keys["device_type"] = o.DeviceType
	}
	if o.NumThreads > 0 {
		keys["num_of_threads"] = strconv.Itoa(o.NumThreads)
	}
	if o.CacheDir != "" {
		keys["cache_dir"] = o.CacheDir
	}
	return keys
}
