package models

import "github.com/trailsense/go-detect/models/postprocess"

// LabelBlank is the file-level label for media with no retained detections.
const LabelBlank = "blank"

// Label returns the class name for an id, or the empty string when the id is
// outside the configured class set.
func (c Config) Label(id int) string {
	if id < 0 || id >= len(c.Classes) {
		return ""
	}
	return c.Classes[id]
}

// FileLabel aggregates a file's retained detections into one label: the class
// with the smallest id wins (animal over person over vehicle in the default
// set), and no detections at all means LabelBlank.
func (c Config) FileLabel(detections []postprocess.Result) string {
	best := -1
	for _, d := range detections {
		if best == -1 || d.Class < best {
			best = d.Class
		}
	}
	if best == -1 {
		return LabelBlank
	}
	if label := c.Label(best); label != "" {
		return label
	}
	return LabelBlank
}
