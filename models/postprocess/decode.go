package postprocess

import (
	"github.com/pkg/errors"

	"github.com/trailsense/go-detect/images"
)

// Layout identifies how a model's output tensor encodes detections.
type Layout string

const (
	// LayoutBoxes is rows of [x1, y1, x2, y2, confidence, class] in input
	// pixel space, the shape of detector exports with suppression baked in
	// (the MegaDetector "pp" models).
	LayoutBoxes Layout = "boxes"
	// LayoutYOLO is rows of [cx, cy, w, h, objectness, class scores...] in
	// input pixel space, the raw YOLOv5-family export.
	LayoutYOLO Layout = "yolo"
)

// Valid reports whether l names a known layout.
func (l Layout) Valid() bool {
	return l == LayoutBoxes || l == LayoutYOLO
}

// boxesCols is the row width of the "boxes" output layout:
// [x1, y1, x2, y2, confidence, class].
const boxesCols = 6

// DecodeBoxes parses one frame's output rows, keeping rows whose confidence
// is strictly above the threshold. Coordinates stay in letterboxed input
// space; inversion happens after suppression.
//
// Arguments:
//   - output: The frame's flat output tensor slice.
//   - confidence: Threshold below or at which rows are dropped.
//
// Returns:
//   - Decoded candidates in row order.
func DecodeBoxes(output []float32, confidence float32) ([]Result, error) {
	if len(output)%boxesCols != 0 {
		return nil, errors.Errorf("output length %d is not a multiple of %d", len(output), boxesCols)
	}

	numRows := len(output) / boxesCols
	results := make([]Result, 0, numRows)
	for i := 0; i < numRows; i++ {
		row := output[i*boxesCols : (i+1)*boxesCols]
		score := row[4]
		if score <= confidence {
			continue
		}
		results = append(results, Result{
			Box:   images.Rect{X1: row[0], Y1: row[1], X2: row[2], Y2: row[3]},
			Score: score,
			Class: int(row[5]),
		})
	}
	return results, nil
}

// DecodeYOLO parses one frame's raw YOLO output rows. Each row is
// [cx, cy, w, h, objectness] followed by one score per class; a candidate's
// confidence is objectness times its best class score, and rows whose
// confidence is not strictly above the threshold are dropped. Boxes are
// converted from centre form to corners, still in letterboxed input space.
//
// Arguments:
//   - output: The frame's flat output tensor slice.
//   - classes: The model's class count, fixing the row width at 5+classes.
//   - confidence: Threshold below or at which rows are dropped.
//
// Returns:
//   - Decoded candidates in row order.
func DecodeYOLO(output []float32, classes int, confidence float32) ([]Result, error) {
	if classes <= 0 {
		return nil, errors.Errorf("yolo layout needs a positive class count, got %d", classes)
	}
	cols := 5 + classes
	if len(output)%cols != 0 {
		return nil, errors.Errorf("output length %d is not a multiple of row width %d", len(output), cols)
	}

	numRows := len(output) / cols
	results := make([]Result, 0, numRows)
	for i := 0; i < numRows; i++ {
		row := output[i*cols : (i+1)*cols]

		classID := 0
		best := float32(0)
		for j := 5; j < cols; j++ {
			if row[j] > best {
				best = row[j]
				classID = j - 5
			}
		}
		score := row[4] * best
		if score <= confidence {
			continue
		}

		cx, cy, w, h := row[0], row[1], row[2], row[3]
		results = append(results, Result{
			Box: images.Rect{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			},
			Score: score,
			Class: classID,
		})
	}
	return results, nil
}
