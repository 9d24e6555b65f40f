package postprocess

import (
	"github.com/pkg/errors"

	"github.com/trailsense/go-detect/images"
)

// Config bundles the full frame postprocessing parameters.
type Config struct {
	// Layout selects the decode rule; empty means LayoutBoxes.
	Layout Layout
	// Classes is the model's class count, required by LayoutYOLO.
	Classes int
	// Confidence is the score threshold; rows at or below it are dropped.
	Confidence float32
	NMS        NMSConfig
}

// Process turns one frame's raw output into final detections in source pixel
// space: decode and threshold per the declared layout, stable sort by
// descending confidence, greedy suppression, then inversion of the letterbox
// transform and a clip to the frame bounds.
//
// Arguments:
//   - output: The frame's flat output tensor slice.
//   - tr: The letterbox transform recorded at preprocessing.
//   - width, height: Source frame dimensions for clipping.
//   - config: Layout, thresholds and suppression parameters.
//
// Returns:
//   - Retained detections with boxes in original frame coordinates.
func Process(output []float32, tr images.Transform, width, height int, config *Config) ([]Result, error) {
	var (
		candidates []Result
		err        error
	)
	switch config.Layout {
	case LayoutBoxes, "":
		candidates, err = DecodeBoxes(output, config.Confidence)
	case LayoutYOLO:
		candidates, err = DecodeYOLO(output, config.Classes, config.Confidence)
	default:
		err = errors.Errorf("unknown output layout %q", config.Layout)
	}
	if err != nil {
		return nil, err
	}
	SortByScore(candidates)
	retained := ApplyGreedyNMS(candidates, &config.NMS)

	for i := range retained {
		retained[i].Box = tr.InvertRect(retained[i].Box).Clip(float32(width), float32(height))
	}
	return retained, nil
}
