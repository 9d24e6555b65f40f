// Package media - Media discovery and per-item bookkeeping.
package media

import (
	"time"

	"github.com/trailsense/go-detect/images"
)

// Kind distinguishes the two decode paths.
type Kind int

const (
	// KindImage is a still image decoded in-process.
	KindImage Kind = iota
	// KindVideo is a video extracted through the external decoder.
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

// Status tracks an item's lifecycle through the pipeline.
type Status int

const (
	// StatusPending means the item has been scanned but not finished.
	StatusPending Status = iota
	// StatusDone means every frame of the item completed inference.
	StatusDone
	// StatusFailed means the item was abandoned; Reason explains why.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Item is one scanned media file. The scan-order ID is the export ordering
// key: results are written in ascending ID regardless of which device
// finished them first.
type Item struct {
	// ID is the position of this item in scan order, starting at 0.
	ID int
	// Path is the absolute or input-relative file path.
	Path string
	// Kind selects the decode path.
	Kind Kind
	// Format is the classified container format.
	Format images.Format
	// CaptureTime is the embedded capture timestamp when one could be
	// extracted; nil otherwise. Absence is normal, not an error.
	CaptureTime *time.Time
}
