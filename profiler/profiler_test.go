package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerTracksPeaks(t *testing.T) {
	s := &Sampler{}
	s.sample()
	s.sample()

	stats := s.Snapshot()
	assert.Equal(t, 2, stats.Samples)
	assert.GreaterOrEqual(t, stats.PeakGoroutines, 1)
	assert.Greater(t, stats.PeakHeap, uint64(0))
	assert.Greater(t, stats.PeakSys, uint64(0))
}

func TestSamplerStartStop(t *testing.T) {
	s := &Sampler{Interval: time.Millisecond}
	s.Start()
	s.Start() // second start is a no-op

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	// Stop always takes a final reading.
	stats := s.Snapshot()
	require.GreaterOrEqual(t, stats.Samples, 1)

	s.Stop() // second stop is a no-op
	assert.Equal(t, stats.Samples, s.Snapshot().Samples)
}

func TestSamplerStopWithoutStart(t *testing.T) {
	s := &Sampler{}
	s.Stop()
	assert.Equal(t, 0, s.Snapshot().Samples)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KB"},
		{3 << 20, "3.0 MB"},
		{5 << 30, "5.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}
