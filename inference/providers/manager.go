package providers

import (
	log "github.com/sirupsen/logrus"
)

// Manager resolves the usable backends for each configured device, probing
// at most once per device per run and caching the result on disk.
type Manager struct {
	Cache  Cache
	Prober Prober
	// Reprobe discards any cached artifact and probes again.
	Reprobe bool
}

// NewManager returns a manager that probes through onnxruntime and caches
// results under dir.
func NewManager(dir string) *Manager {
	return &Manager{
		Cache:  Cache{Dir: dir},
		Prober: ORTProber{},
	}
}

// Resolve returns the backends usable on a device, most capable first.
// A well formed cache artifact short-circuits probing. A missing, stale or
// malformed artifact triggers exactly one probe, and the fresh result is
// written back before returning.
func (m *Manager) Resolve(deviceID int) ([]Backend, error) {
	logger := log.WithField("device", deviceID)

	if !m.Reprobe {
		info, err := m.Cache.Load(deviceID)
		if err != nil {
			logger.WithError(err).Warn("Ignoring unusable probe cache")
		} else if info != nil {
			logger.WithField("backends", info.Backends).Debug("Using cached probe result")
			return info.Backends, nil
		}
	}

	logger.Info("Probing execution providers")
	backends := ProbeDevice(m.Prober, deviceID)
	logger.WithField("backends", backends).Info("Probe complete")

	if err := m.Cache.Save(Info{DeviceID: deviceID, Probed: true, Backends: backends}); err != nil {
		return nil, err
	}
	return backends, nil
}
