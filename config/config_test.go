package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDevices(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    DeviceWorkers
		wantErr bool
	}{
		{name: "single with count", spec: "0:2", want: DeviceWorkers{0: 2}},
		{name: "multiple", spec: "0:2,1:1", want: DeviceWorkers{0: 2, 1: 1}},
		{name: "bare id gets default", spec: "1", want: DeviceWorkers{1: DefaultWorkersPerDevice}},
		{name: "spaces tolerated", spec: " 0:2 , 1:4 ", want: DeviceWorkers{0: 2, 1: 4}},
		{name: "empty", spec: "", wantErr: true},
		{name: "trailing comma", spec: "0:2,", wantErr: true},
		{name: "negative device", spec: "-1:2", wantErr: true},
		{name: "zero workers", spec: "0:0", wantErr: true},
		{name: "garbage id", spec: "gpu:2", wantErr: true},
		{name: "duplicate device", spec: "0:2,0:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDevices(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeviceWorkersHelpers(t *testing.T) {
	d := DeviceWorkers{2: 1, 0: 2, 1: 4}
	assert.Equal(t, []int{0, 1, 2}, d.IDs())
	assert.Equal(t, 7, d.TotalWorkers())
	assert.Equal(t, "0:2,1:4,2:1", d.String())
}

func TestLoadDeviceMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("0: 2\n1: 1\n"), 0o644))

	devices, err := LoadDeviceMap(path)
	require.NoError(t, err)
	assert.Equal(t, DeviceWorkers{0: 2, 1: 1}, devices)
}

func TestLoadDeviceMapRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "zero workers", yaml: "0: 0\n"},
		{name: "negative device", yaml: "-1: 2\n"},
		{name: "empty", yaml: ""},
		{name: "not a map", yaml: "- 1\n- 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "devices.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := LoadDeviceMap(path)
			require.Error(t, err)
		})
	}
}

func TestLoadDeviceMapMissingFile(t *testing.T) {
	_, err := LoadDeviceMap(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Input = "/cams"
		return c
	}

	t.Run("default plus input is valid", func(t *testing.T) {
		c := valid()
		require.NoError(t, c.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing input", func(c *Config) { c.Input = "" }},
		{"no export destination", func(c *Config) { c.OutputCSV = ""; c.OutputJSON = "" }},
		{"resume without csv", func(c *Config) { c.Resume = true; c.OutputCSV = "" }},
		{"no devices", func(c *Config) { c.Devices = nil }},
		{"zero workers", func(c *Config) { c.Devices = DeviceWorkers{0: 0} }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"confidence too high", func(c *Config) { c.Confidence = 1 }},
		{"iou zero", func(c *Config) { c.IoU = 0 }},
		{"negative topk", func(c *Config) { c.TopK = -1 }},
		{"zero idle flush", func(c *Config) { c.IdleFlush = 0 }},
		{"negative checkpoint", func(c *Config) { c.Checkpoint = -1 }},
		{"negative max frames", func(c *Config) { c.MaxFrames = -1 }},
		{"zero extract workers", func(c *Config) { c.ExtractWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
