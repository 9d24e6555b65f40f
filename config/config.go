// Package config - Run configuration.
//
// Flags are bound in main; this package owns the structure, the defaults
// and the cross-field validation, plus the device-worker map syntax
// shared by the --devices flag and the YAML device map file.
package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DeviceWorkers maps a device id to its inference worker count.
type DeviceWorkers map[int]int

// IDs returns the configured device ids in ascending order.
func (d DeviceWorkers) IDs() []int {
	ids := make([]int, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TotalWorkers sums the worker counts across devices.
func (d DeviceWorkers) TotalWorkers() int {
	total := 0
	for _, workers := range d {
		total += workers
	}
	return total
}

// String renders the map in --devices syntax, ids ascending.
func (d DeviceWorkers) String() string {
	parts := make([]string, 0, len(d))
	for _, id := range d.IDs() {
		parts = append(parts, strconv.Itoa(id)+":"+strconv.Itoa(d[id]))
	}
	return strings.Join(parts, ",")
}

// Config is one run's full configuration.
type Config struct {
	// Input is the folder to process.
	Input string
	// ModelConfig optionally points at a YAML model description; empty
	// selects the built-in MegaDetector defaults.
	ModelConfig string

	// OutputCSV and OutputJSON are the export destinations. Empty
	// disables that format; at least one must be set.
	OutputCSV  string
	OutputJSON string

	// Devices is the device to worker-count map.
	Devices DeviceWorkers
	// CacheDir holds the per-device execution provider artifacts.
	CacheDir string
	// Reprobe ignores existing provider artifacts and probes again.
	Reprobe bool

	// BatchSize is the dispatch capacity.
	BatchSize int
	// Confidence drops detections at or below the threshold.
	Confidence float64
	// IoU is the NMS overlap threshold.
	IoU float64
	// TopK caps retained detections per frame; 0 means unlimited.
	TopK int
	// IdleFlush bounds how long a partial batch waits for more frames.
	IdleFlush time.Duration
	// Checkpoint is the export flush interval in finalized files;
	// 0 flushes only at the end.
	Checkpoint int

	// MaxFrames caps frames per video; 0 takes every decoded frame.
	MaxFrames int
	// IFrameOnly decodes video keyframes only.
	IFrameOnly bool
	// ExtractWorkers caps concurrent media decoders.
	ExtractWorkers int

	// Resume skips files already present in the CSV export.
	Resume bool
	// Timing prints per-worker batch latency statistics at exit.
	Timing bool
	// Profile samples runtime memory and goroutine peaks during the run.
	Profile bool
	// Verbose enables debug logging.
	Verbose bool
}

// Default returns the MegaDetector v5 operating point.
func Default() Config {
	return Config{
		OutputCSV:      "output/results.csv",
		OutputJSON:     "output/results.json",
		Devices:        DeviceWorkers{0: 2},
		CacheDir:       ".ep-cache",
		BatchSize:      2,
		Confidence:     0.2,
		IoU:            0.45,
		TopK:           100,
		IdleFlush:      10 * time.Millisecond,
		Checkpoint:     100,
		IFrameOnly:     true,
		ExtractWorkers: 4,
	}
}

// DefaultWorkersPerDevice is applied when a --devices entry names a
// device without a worker count.
const DefaultWorkersPerDevice = 2

// ParseDevices parses a --devices value like "0:2,1:1" into a device to
// worker-count map. A bare id takes DefaultWorkersPerDevice.
func ParseDevices(s string) (DeviceWorkers, error) {
	devices := make(DeviceWorkers)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errors.Errorf("empty entry in devices spec %q", s)
		}
		fields := strings.SplitN(part, ":", 2)
		id, err := strconv.Atoi(fields[0])
		if err != nil || id < 0 {
			return nil, errors.Errorf("invalid device id %q", fields[0])
		}
		workers := DefaultWorkersPerDevice
		if len(fields) == 2 {
			workers, err = strconv.Atoi(fields[1])
			if err != nil || workers <= 0 {
				return nil, errors.Errorf("invalid worker count %q for device %d", fields[1], id)
			}
		}
		if _, ok := devices[id]; ok {
			return nil, errors.Errorf("device %d listed twice", id)
		}
		devices[id] = workers
	}
	return devices, nil
}

// LoadDeviceMap reads a YAML device map: a mapping of device id to
// worker count.
func LoadDeviceMap(path string) (DeviceWorkers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading device map")
	}
	raw := map[int]int{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing device map %s", path)
	}
	if len(raw) == 0 {
		return nil, errors.Errorf("device map %s is empty", path)
	}
	devices := make(DeviceWorkers, len(raw))
	for id, workers := range raw {
		if id < 0 {
			return nil, errors.Errorf("invalid device id %d in %s", id, path)
		}
		if workers <= 0 {
			return nil, errors.Errorf("invalid worker count %d for device %d in %s", workers, id, path)
		}
		devices[id] = workers
	}
	return devices, nil
}

// Validate checks the cross-field constraints flags cannot express.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New("input folder is required")
	}
	if c.OutputCSV == "" && c.OutputJSON == "" {
		return errors.New("at least one export destination is required")
	}
	if c.Resume && c.OutputCSV == "" {
		return errors.New("resume requires a csv export to read back")
	}
	if len(c.Devices) == 0 {
		return errors.New("at least one device is required")
	}
	for id, workers := range c.Devices {
		if id < 0 {
			return errors.Errorf("invalid device id %d", id)
		}
		if workers <= 0 {
			return errors.Errorf("device %d needs a positive worker count, got %d", id, workers)
		}
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.Confidence < 0 || c.Confidence >= 1 {
		return errors.Errorf("confidence must be in [0,1), got %g", c.Confidence)
	}
	if c.IoU <= 0 || c.IoU > 1 {
		return errors.Errorf("iou must be in (0,1], got %g", c.IoU)
	}
	if c.TopK < 0 {
		return errors.Errorf("topk must not be negative, got %d", c.TopK)
	}
	if c.IdleFlush <= 0 {
		return errors.Errorf("idle flush must be positive, got %s", c.IdleFlush)
	}
	if c.Checkpoint < 0 {
		return errors.Errorf("checkpoint interval must not be negative, got %d", c.Checkpoint)
	}
	if c.MaxFrames < 0 {
		return errors.Errorf("max frames must not be negative, got %d", c.MaxFrames)
	}
	if c.ExtractWorkers <= 0 {
		return errors.Errorf("extract workers must be positive, got %d", c.ExtractWorkers)
	}
	return nil
}
