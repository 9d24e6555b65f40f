// Package postprocess - Decoding, suppression and coordinate inversion for
// detection outputs.
package postprocess

import (
	"sort"

	"github.com/trailsense/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 // Overlap threshold for suppression, exceed to suppress.
	ClassAware   bool    // If true, suppress only within the same class.
	TopK         int     // Cap on retained results, 0 for unlimited.
}

// SortByScore orders detections by descending confidence. The sort is stable:
// equal scores keep their decode order, which keeps suppression deterministic.
func SortByScore(detections []Result) {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})
}

// ApplyGreedyNMS performs greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: Suppression parameters.
//
// Returns:
//   - Filtered slice of detections, at most TopK long. Running the function
//     on its own output returns it unchanged.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		if config.TopK > 0 && len(filtered) >= config.TopK {
			break
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Class != detections[j].Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
