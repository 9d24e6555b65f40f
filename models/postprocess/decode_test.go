package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBoxes(t *testing.T) {
	output := []float32{
		100, 50, 200, 150, 0.92, 0,
		10, 10, 20, 20, 0.05, 1,
		300, 300, 400, 380, 0.35, 2,
	}

	got, err := DecodeBoxes(output, 0.2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, Result{Box: box(100, 50, 200, 150), Score: 0.92, Class: 0}, got[0])
	assert.Equal(t, Result{Box: box(300, 300, 400, 380), Score: 0.35, Class: 2}, got[1])
}

func TestDecodeBoxesThresholdIsStrict(t *testing.T) {
	output := []float32{0, 0, 10, 10, 0.2, 0}

	got, err := DecodeBoxes(output, 0.2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeBoxesMisaligned(t *testing.T) {
	_, err := DecodeBoxes(make([]float32, 13), 0.2)
	assert.Error(t, err)
}

func TestDecodeBoxesEmpty(t *testing.T) {
	got, err := DecodeBoxes(nil, 0.2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeYOLO(t *testing.T) {
	// Rows of [cx, cy, w, h, obj, animal, person, vehicle].
	output := []float32{
		100, 100, 40, 20, 0.9, 0.1, 0.8, 0.1, // person at 0.72
		50, 50, 10, 10, 0.9, 0.2, 0.1, 0.1, // best class 0.2 -> 0.18, dropped
		200, 150, 60, 80, 0.95, 0.9, 0.05, 0.05, // animal at 0.855
	}

	got, err := DecodeYOLO(output, 3, 0.2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Class)
	assert.InDelta(t, 0.72, got[0].Score, 1e-5)
	assert.Equal(t, box(80, 90, 120, 110), got[0].Box)

	assert.Equal(t, 0, got[1].Class)
	assert.InDelta(t, 0.855, got[1].Score, 1e-5)
	assert.Equal(t, box(170, 110, 230, 190), got[1].Box)
}

func TestDecodeYOLOMisaligned(t *testing.T) {
	_, err := DecodeYOLO(make([]float32, 9), 3, 0.2)
	assert.Error(t, err)
}

func TestDecodeYOLONeedsClasses(t *testing.T) {
	_, err := DecodeYOLO(make([]float32, 8), 0, 0.2)
	assert.Error(t, err)
}

func BenchmarkDecodeBoxes(b *testing.B) {
	output := make([]float32, 0, 300*6)
	for i := 0; i < 300; i++ {
		x := float32(i%20) * 60
		y := float32(i/20) * 80
		output = append(output, x, y, x+50, y+50, 0.1+float32(i%9)*0.1, float32(i%3))
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeBoxes(output, 0.2); err != nil {
			b.Fatal(err)
		}
	}
}
