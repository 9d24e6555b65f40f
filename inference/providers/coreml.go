package providers

// CoreMLOptions configures the CoreML execution provider.
type CoreMLOptions struct {
	// Flags is the CoreML flag bitmask passed straight through to
	// onnxruntime. Zero enables the provider with defaults.
	Flags uint32 `json:"flags" yaml:"flags"`
}

func (CoreMLOptions) isProviderOptions() {}
