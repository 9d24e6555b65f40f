package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	cache := Cache{Dir: filepath.Join(t.TempDir(), "probe")}

	info := Info{
		DeviceID: 1,
		Probed:   true,
		Backends: []Backend{BackendCUDA, BackendCPU},
	}
	require.NoError(t, cache.Save(info))

	loaded, err := cache.Load(1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, info, *loaded)
}

func TestCacheLoadMissing(t *testing.T) {
	cache := Cache{Dir: t.TempDir()}

	info, err := cache.Load(0)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestCacheLoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "invalid json", raw: "{not json"},
		{name: "not probed", raw: `{"device_id":0,"probed":false,"backends":["cpu"]}`},
		{name: "no backends", raw: `{"device_id":0,"probed":true,"backends":[]}`},
		{name: "unknown backend", raw: `{"device_id":0,"probed":true,"backends":["vulkan"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := Cache{Dir: t.TempDir()}
			path := filepath.Join(cache.Dir, "device-0.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.raw), 0o644))

			info, err := cache.Load(0)
			assert.Error(t, err)
			assert.Nil(t, info)
		})
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache := Cache{Dir: t.TempDir()}

	require.NoError(t, cache.Save(Info{DeviceID: 0, Probed: true, Backends: []Backend{BackendCPU}}))
	require.NoError(t, cache.Invalidate(0))

	info, err := cache.Load(0)
	require.NoError(t, err)
	assert.Nil(t, info)

	// Removing an artifact that is already gone is fine.
	assert.NoError(t, cache.Invalidate(0))
}
