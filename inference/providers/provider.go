// Package providers - Provider construction and session option wiring.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// Provider couples a backend with device-targeted options.
type Provider struct {
	Backend Backend
	Options ProviderOptions
}

// DefaultProvider builds a provider with this package's defaults for the
// given backend, targeted at the given device.
func DefaultProvider(backend Backend, deviceID int) Provider {
	switch backend {
	case BackendCoreML:
		return Provider{Backend: backend, Options: CoreMLOptions{}}
	case BackendTensorRT:
		return Provider{Backend: backend, Options: DefaultTensorRTOptions(deviceID)}
	case BackendCUDA:
		return Provider{Backend: backend, Options: DefaultCUDAOptions(deviceID)}
	case BackendOpenVINO:
		return Provider{Backend: backend, Options: DefaultOpenVINOOptions(deviceID)}
	default:
		return Provider{Backend: BackendCPU, Options: CPUOptions{}}
	}
}

// Apply appends the provider to the given session options. A failure here is
// how an unavailable backend announces itself, both at probe time and at
// session build time.
func (p Provider) Apply(options *ort.SessionOptions) error {
	switch p.Backend {
	case BackendCPU:
		// Always present, nothing to append.
		return nil
	case BackendCoreML:
		opts, ok := p.Options.(CoreMLOptions)
		if !ok {
			return errors.Errorf("invalid options type for CoreML: %T", p.Options)
		}
		if err := options.AppendExecutionProviderCoreML(opts.Flags); err != nil {
			return errors.Wrap(err, "enabling CoreML")
		}
	case BackendOpenVINO:
		opts, ok := p.Options.(OpenVINOOptions)
		if !ok {
			return errors.Errorf("invalid options type for OpenVINO: %T", p.Options)
		}
		if err := options.AppendExecutionProviderOpenVINO(opts.ToMap()); err != nil {
			return errors.Wrap(err, "enabling OpenVINO")
		}
	case BackendCUDA:
		opts, ok := p.Options.(CUDAOptions)
		if !ok {
			return errors.Errorf("invalid options type for CUDA: %T", p.Options)
		}
		cuda, err := opts.ToNativeProviderOptions()
		if err != nil {
			return errors.Wrap(err, "converting CUDA options")
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "enabling CUDA")
		}
	case BackendTensorRT:
		opts, ok := p.Options.(TensorRTOptions)
		if !ok {
			return errors.Errorf("invalid options type for TensorRT: %T", p.Options)
		}
		trt, err := opts.ToNativeProviderOptions()
		if err != nil {
			return errors.Wrap(err, "converting TensorRT options")
		}
		defer trt.Destroy()
		if err := options.AppendExecutionProviderTensorRT(trt); err != nil {
			return errors.Wrap(err, "enabling TensorRT")
		}
	default:
		return errors.Errorf("unknown backend %q", p.Backend)
	}
	return nil
}
