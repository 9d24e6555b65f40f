package frames

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const probeTimeout = 10 * time.Second

// VideoInfo is the subset of ffprobe output the extractor needs.
type VideoInfo struct {
	Width    int
	Height   int
	Duration float64 // seconds, 0 when the container does not report one
}

// ProbeVideo asks ffprobe for the first video stream's geometry and the
// container duration.
func ProbeVideo(ctx context.Context, path string) (VideoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration",
		"-print_format", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, errors.Wrap(err, "ffprobe")
	}

	var raw struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &raw); err != nil {
		return VideoInfo{}, errors.Wrap(err, "parsing ffprobe output")
	}
	if len(raw.Streams) == 0 || raw.Streams[0].Width <= 0 || raw.Streams[0].Height <= 0 {
		return VideoInfo{}, errors.New("no usable video stream")
	}

	info := VideoInfo{
		Width:  raw.Streams[0].Width,
		Height: raw.Streams[0].Height,
	}
	// ffprobe reports duration as a decimal string; some streams omit it.
	if d, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil && d > 0 {
		info.Duration = d
	}
	return info, nil
}
