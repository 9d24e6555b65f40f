package frames

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTools puts fake ffmpeg/ffprobe scripts first on PATH so extraction
// tests exercise the real process plumbing without a codec in sight.
func stubTools(t *testing.T, ffmpegScript, ffprobeScript string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte(ffmpegScript), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffprobe"), []byte(ffprobeScript), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func probeScript(w, h int, duration float64) string {
	return fmt.Sprintf(
		"#!/bin/sh\nprintf '%%s' '{\"streams\":[{\"width\":%d,\"height\":%d}],\"format\":{\"duration\":\"%.6f\"}}'\n",
		w, h, duration)
}

// framePayload builds n raw rgb24 frames, frame i filled with value 10+40*i.
func framePayload(t *testing.T, w, h, n int) string {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		b := byte(10 + 40*i)
		buf.Write(bytes.Repeat([]byte{b}, w*h*3))
	}
	path := filepath.Join(t.TempDir(), "frames.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func catScript(payload string) string {
	return fmt.Sprintf("#!/bin/sh\ncat '%s'\n", payload)
}

func TestFFmpegArgs(t *testing.T) {
	info := VideoInfo{Width: 1920, Height: 1080, Duration: 11.2}

	tests := []struct {
		name     string
		opts     ExtractOptions
		contains []string
		absent   []string
	}{
		{
			name:     "plain decode",
			opts:     ExtractOptions{},
			contains: []string{"-an", "-pix_fmt", "rgb24"},
			absent:   []string{"-skip_frame", "-vf"},
		},
		{
			name:     "uniform sampling",
			opts:     ExtractOptions{MaxFrames: 3},
			contains: []string{"-vf", fmt.Sprintf("fps=%.6f", 3/11.2)},
			absent:   []string{"-skip_frame"},
		},
		{
			name:     "keyframes only",
			opts:     ExtractOptions{IFrameOnly: true, MaxFrames: 3},
			contains: []string{"-skip_frame", "nokey"},
			absent:   []string{"-vf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			joined := strings.Join(ffmpegArgs("in.mp4", info, tt.opts), " ")
			for _, s := range tt.contains {
				assert.Contains(t, joined, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, joined, s)
			}
			assert.True(t, strings.HasSuffix(joined, "-"))
		})
	}
}

func TestFFmpegArgsUnknownDuration(t *testing.T) {
	joined := strings.Join(ffmpegArgs("in.mp4", VideoInfo{Width: 64, Height: 64}, ExtractOptions{MaxFrames: 3}), " ")
	assert.NotContains(t, joined, "-vf")
}

func TestTolerated(t *testing.T) {
	assert.True(t, tolerated("[h264 @ 0x5555] decode_slice_header error"))
	assert.True(t, tolerated("[h264 @ 0x5555] Frame num change from 2 to 7"))
	assert.True(t, tolerated("[h264 @ 0x5555] error while decoding MB 12 34"))
	assert.False(t, tolerated("moov atom not found"))
}

func TestRGBImage(t *testing.T) {
	raw := []byte{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}
	img := rgbImage(raw, 2, 2)

	assert.Equal(t, []byte{1, 2, 3, 255}, img.Pix[:4])
	assert.Equal(t, []byte{10, 11, 12, 255}, img.Pix[12:16])
}

func TestExtractMaxFrames(t *testing.T) {
	payload := framePayload(t, 4, 3, 5)
	stubTools(t, catScript(payload), probeScript(4, 3, 2.0))

	tests := []struct {
		name      string
		maxFrames int
		want      int
	}{
		{"capped below available", 3, 3},
		{"cap above available", 10, 5},
		{"uncapped", 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var indices []int
			var first []byte
			n, err := Extract(context.Background(), "clip.mp4",
				ExtractOptions{MaxFrames: tt.maxFrames},
				func(index int, img *image.RGBA) error {
					indices = append(indices, index)
					first = append(first, img.Pix[0])
					return nil
				})
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			require.Len(t, indices, tt.want)
			for i, idx := range indices {
				assert.Equal(t, i, idx)
				assert.Equal(t, byte(10+40*i), first[i])
			}
		})
	}
}

func TestExtractDecoderCrash(t *testing.T) {
	payload := framePayload(t, 4, 3, 1)
	script := fmt.Sprintf("#!/bin/sh\ncat '%s'\necho 'moov atom not found' >&2\nexit 1\n", payload)
	stubTools(t, script, probeScript(4, 3, 2.0))

	n, err := Extract(context.Background(), "broken.mp4", ExtractOptions{},
		func(int, *image.RGBA) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moov atom not found")
	assert.Equal(t, 1, n)
}

func TestExtractToleratedNoise(t *testing.T) {
	payload := framePayload(t, 4, 3, 2)
	script := fmt.Sprintf(
		"#!/bin/sh\necho '[h264] decode_slice_header error' >&2\necho '[h264] error while decoding MB 1 2' >&2\ncat '%s'\n",
		payload)
	stubTools(t, script, probeScript(4, 3, 2.0))

	n, err := Extract(context.Background(), "noisy.mp4", ExtractOptions{},
		func(int, *image.RGBA) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExtractNoFrames(t *testing.T) {
	stubTools(t, "#!/bin/sh\nexit 0\n", probeScript(4, 3, 2.0))

	_, err := Extract(context.Background(), "empty.mp4", ExtractOptions{},
		func(int, *image.RGBA) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no frames decoded")
}

func TestExtractCanceled(t *testing.T) {
	payload := framePayload(t, 4, 3, 5)
	stubTools(t, catScript(payload), probeScript(4, 3, 2.0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := Extract(ctx, "clip.mp4", ExtractOptions{},
		func(index int, _ *image.RGBA) error {
			if index == 1 {
				cancel()
				return ctx.Err()
			}
			return nil
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}

func TestExtractProbeFailure(t *testing.T) {
	stubTools(t, "#!/bin/sh\nexit 0\n", "#!/bin/sh\nexit 1\n")

	_, err := Extract(context.Background(), "clip.mp4", ExtractOptions{},
		func(int, *image.RGBA) error { return nil })
	assert.Error(t, err)
}

func TestProbeVideo(t *testing.T) {
	stubTools(t, "#!/bin/sh\nexit 0\n", probeScript(1920, 1080, 12.5))

	info, err := ProbeVideo(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 12.5, info.Duration, 1e-6)
}

func TestProbeVideoNoStream(t *testing.T) {
	stubTools(t, "#!/bin/sh\nexit 0\n",
		"#!/bin/sh\nprintf '%s' '{\"streams\":[],\"format\":{}}'\n")

	_, err := ProbeVideo(context.Background(), "audio-only.m4a")
	assert.Error(t, err)
}

func TestCheckTools(t *testing.T) {
	stubTools(t, "#!/bin/sh\n", "#!/bin/sh\n")
	assert.NoError(t, CheckTools())

	t.Setenv("PATH", t.TempDir())
	assert.Error(t, CheckTools())
}
