// Package providers - Execution provider selection, probing and caching.
//
// Backends form a closed set resolved at startup: each configured device is
// probed once, the usable backends are written to a per-device cache
// artifact, and sessions are built by walking the capability order with
// fallback. Nothing outside this package appends execution providers.
package providers

import "github.com/pkg/errors"

// Backend identifies one ONNX Runtime execution provider.
type Backend string

const (
	// BackendCoreML uses Apple CoreML acceleration.
	BackendCoreML Backend = "coreml"
	// BackendTensorRT uses NVIDIA TensorRT optimized inference.
	BackendTensorRT Backend = "tensorrt"
	// BackendCUDA uses NVIDIA CUDA GPU acceleration.
	BackendCUDA Backend = "cuda"
	// BackendOpenVINO uses Intel OpenVINO acceleration.
	BackendOpenVINO Backend = "openvino"
	// BackendCPU is the plain CPU provider, always usable.
	BackendCPU Backend = "cpu"
)

// CapabilityOrder lists every backend, most capable first. Probing and
// session fallback walk this order; CPU closes the list so a device always
// resolves to something.
var CapabilityOrder = []Backend{
	BackendCoreML,
	BackendTensorRT,
	BackendCUDA,
	BackendOpenVINO,
	BackendCPU,
}

// Valid reports whether b names a known backend.
func (b Backend) Valid() bool {
	for _, known := range CapabilityOrder {
		if b == known {
			return true
		}
	}
	return false
}

// ParseBackend converts a user-supplied string into a Backend.
func ParseBackend(s string) (Backend, error) {
	b := Backend(s)
	if !b.Valid() {
		return "", errors.Errorf("unknown backend %q", s)
	}
	return b, nil
}
