// Package frames - Turning media items into decoded RGB frames.
//
// Images decode in-process with the standard library plus chai2010/webp.
// Videos are handed to an external ffmpeg process emitting raw rgb24 on
// stdout, read incrementally so a long clip never has to fit in memory.
package frames

import (
	"image"

	"github.com/trailsense/go-detect/media"
)

// Frame is one decoded frame of a media item. Index is strictly increasing
// within an item, starting at zero; an image always produces exactly one
// frame with Index 0.
type Frame struct {
	MediaID int
	Index   int
	// Width and Height are the original dimensions, kept for clipping
	// detections back into source space.
	Width  int
	Height int
	Image  image.Image
	// Keyframe is set when the frame came from a keyframe-only decode.
	Keyframe bool
}

// ItemStatus reports the outcome of extracting one item. It is emitted after
// the item's last frame has been handed downstream, so TotalFrames is the
// exact number of frames in flight for the item. Err non-nil marks the item
// failed; any frames already emitted are dropped at aggregation.
type ItemStatus struct {
	Item        media.Item
	TotalFrames int
	Err         error
}
