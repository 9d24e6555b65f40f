package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailsense/go-detect/images"
	"github.com/trailsense/go-detect/media"
	"github.com/trailsense/go-detect/models"
	"github.com/trailsense/go-detect/models/postprocess"
)

// brightnessRunner stands in for a real model: frames containing bright
// pixels get one fixed detection row, the rest get none.
type brightnessRunner struct{}

func (brightnessRunner) Run(batch [][]float32) ([][]float32, error) {
	outs := make([][]float32, len(batch))
	for i, tensor := range batch {
		bright := false
		for _, v := range tensor {
			if v > 0.9 {
				bright = true
				break
			}
		}
		if bright {
			outs[i] = []float32{10, 10, 50, 50, 0.9, 0}
		} else {
			outs[i] = []float32{}
		}
	}
	return outs, nil
}

func writeScenePNG(t *testing.T, path string, bright bool) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	fill := color.RGBA{30, 30, 30, 255}
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	if bright {
		white := color.RGBA{255, 255, 255, 255}
		for y := 10; y < 22; y++ {
			for x := 14; x < 26; x++ {
				img.SetRGBA(x, y, white)
			}
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeScenePNG(t, filepath.Join(dir, "animal.png"), true)
	writeScenePNG(t, filepath.Join(dir, "blank.png"), false)

	items := []media.Item{
		{ID: 0, Path: filepath.Join(dir, "animal.png"), Kind: media.KindImage, Format: images.FormatPNG},
		{ID: 1, Path: filepath.Join(dir, "blank.png"), Kind: media.KindImage, Format: images.FormatPNG},
		{ID: 2, Path: filepath.Join(dir, "missing.png"), Kind: media.KindImage, Format: images.FormatPNG},
	}

	model := models.MegaDetector()
	model.InputSize = 64

	workers := map[int][]Runner{0: {brightnessRunner{}, brightnessRunner{}}}
	out, progress := Run(context.Background(), items, workers, Options{
		Model: model,
		Post: postprocess.Config{
			Confidence: 0.2,
			NMS:        postprocess.NMSConfig{IoUThreshold: 0.45, TopK: 100},
		},
		BatchSize:      2,
		ExtractWorkers: 2,
	})

	var results []FileResult
	for result := range out {
		results = append(results, result)
	}
	require.Len(t, results, 3)

	// Scan order survives whatever order the stages finished in.
	for i, result := range results {
		assert.Equal(t, i, result.Item.ID)
	}

	animal := results[0]
	assert.Equal(t, media.StatusDone, animal.Status)
	assert.Equal(t, "animal", animal.Label)
	require.Len(t, animal.Frames, 1)
	require.Len(t, animal.Frames[0].Detections, 1)

	// The fixed row [10,10,50,50] inverts through the 40x30→64x64
	// letterbox (scale 1.6, pad y 8) back into source coordinates.
	box := animal.Frames[0].Detections[0].Box
	assert.InDelta(t, 6.25, box.X1, 1e-3)
	assert.InDelta(t, 1.25, box.Y1, 1e-3)
	assert.InDelta(t, 31.25, box.X2, 1e-3)
	assert.InDelta(t, 26.25, box.Y2, 1e-3)

	blank := results[1]
	assert.Equal(t, media.StatusDone, blank.Status)
	assert.Equal(t, models.LabelBlank, blank.Label)
	require.Len(t, blank.Frames, 1)
	assert.Empty(t, blank.Frames[0].Detections)

	missing := results[2]
	assert.Equal(t, media.StatusFailed, missing.Status)
	assert.Equal(t, ClassMediaRead, ClassOf(missing.Err))

	snapshot := progress.Snapshot()
	assert.Equal(t, int64(2), snapshot.FilesDone)
	assert.Equal(t, int64(1), snapshot.FilesFailed)
	assert.Equal(t, int64(2), snapshot.Frames)
}

func TestRunCanceledStops(t *testing.T) {
	dir := t.TempDir()
	writeScenePNG(t, filepath.Join(dir, "a.png"), false)

	items := []media.Item{
		{ID: 0, Path: filepath.Join(dir, "a.png"), Kind: media.KindImage, Format: images.FormatPNG},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := models.MegaDetector()
	model.InputSize = 64
	out, _ := Run(ctx, items, map[int][]Runner{0: {brightnessRunner{}}}, Options{
		Model:     model,
		Post:      postprocess.Config{Confidence: 0.2, NMS: postprocess.NMSConfig{IoUThreshold: 0.45, TopK: 100}},
		BatchSize: 1,
	})

	// All stages unwind; the result stream closes without hanging.
	for range out {
	}
}
