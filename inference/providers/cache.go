package providers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Info is the per-device probe artifact persisted between runs.
type Info struct {
	DeviceID int       `json:"device_id"`
	Probed   bool      `json:"probed"`
	Backends []Backend `json:"backends"`
}

// Cache persists probe results as one JSON file per device so later runs
// can skip probing entirely.
type Cache struct {
	// Dir is the directory the artifacts live in.
	Dir string
}

func (c Cache) path(deviceID int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("device-%d.json", deviceID))
}

// Load reads the cached probe result for a device. A missing artifact
// returns nil with no error. A malformed or invalid artifact returns an
// error so the caller can log it and reprobe.
func (c Cache) Load(deviceID int) (*Info, error) {
	raw, err := os.ReadFile(c.path(deviceID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading probe cache for device %d", deviceID)
	}

	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, errors.Wrapf(err, "parsing probe cache for device %d", deviceID)
	}
	if !info.Probed || len(info.Backends) == 0 {
		return nil, errors.Errorf("probe cache for device %d is incomplete", deviceID)
	}
	for _, backend := range info.Backends {
		if !backend.Valid() {
			return nil, errors.Errorf("probe cache for device %d lists unknown backend %q", deviceID, backend)
		}
	}
	return &info, nil
}

// Save writes the probe result for a device, creating the cache directory
// if needed.
func (c Cache) Save(info Info) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return errors.Wrap(err, "creating probe cache directory")
	}
	raw, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding probe cache")
	}
	if err := os.WriteFile(c.path(info.DeviceID), raw, 0o644); err != nil {
		return errors.Wrapf(err, "writing probe cache for device %d", info.DeviceID)
	}
	return nil
}

// Invalidate removes the cached artifact for a device. Removing an artifact
// that does not exist is not an error.
func (c Cache) Invalidate(deviceID int) error {
	err := os.Remove(c.path(deviceID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing probe cache for device %d", deviceID)
	}
	return nil
}
