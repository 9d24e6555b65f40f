package providers

// CPUOptions configures the CPU fallback. The CPU provider is built into
// onnxruntime and takes no options, so this exists to satisfy the marker.
type CPUOptions struct{}

func (CPUOptions) isProviderOptions() {}
