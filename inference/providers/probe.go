package providers

import (
	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// Prober reports whether a backend can be enabled on a device.
type Prober interface {
	Available(deviceID int, backend Backend) bool
}

// ORTProber probes by appending each execution provider to a scratch set of
// session options. onnxruntime rejects providers whose runtime libraries or
// hardware are missing, which is exactly the signal wanted here.
type ORTProber struct{}

// Available implements Prober.
func (ORTProber) Available(deviceID int, backend Backend) bool {
	if backend == BackendCPU {
		return true
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		log.WithError(err).Warn("Could not create session options for probing")
		return false
	}
	defer options.Destroy()

	if err := DefaultProvider(backend, deviceID).Apply(options); err != nil {
		log.WithFields(log.Fields{
			"backend": backend,
			"device":  deviceID,
		}).WithError(err).Debug("Backend not available")
		return false
	}
	return true
}

// ProbeDevice walks the capability order and returns every backend the
// device supports, most capable first. The CPU backend is always included,
// so the result is never empty.
func ProbeDevice(prober Prober, deviceID int) []Backend {
	var usable []Backend
	for _, backend := range CapabilityOrder {
		if backend == BackendCPU || prober.Available(deviceID, backend) {
			usable = append(usable, backend)
		}
	}
	return usable
}
