// Package pipeline - Work units flowing between stages.
package pipeline

import (
	"github.com/trailsense/go-detect/images"
	"github.com/trailsense/go-detect/media"
	"github.com/trailsense/go-detect/models/postprocess"
)

// FrameMeta is the identity a frame keeps through every stage: which item
// it belongs to, where it sits in that item, its source geometry, and the
// letterbox transform recorded at preprocessing. The transform travels with
// the work unit so no stage ever re-derives geometry.
type FrameMeta struct {
	// MediaID is the owning item's scan-order ID.
	MediaID int
	// Index is the frame position within the item, strictly increasing.
	Index int
	// Width and Height are the source frame dimensions.
	Width  int
	Height int
	// Keyframe marks frames taken from keyframe-only extraction.
	Keyframe bool
	// Transform maps source pixel space into model input space.
	Transform images.Transform
}

// PreprocessedFrame is a frame letterboxed into model geometry.
type PreprocessedFrame struct {
	FrameMeta
	// Tensor is the normalized float32 buffer, laid out per the model's
	// channel order.
	Tensor []float32
}

// Batch is an ordered group of preprocessed frames bound for one device.
// All members share the model's target geometry.
type Batch struct {
	// Seq numbers batches in dispatch order, for logging.
	Seq int
	// Device is the target device ID.
	Device int
	Frames []PreprocessedFrame
}

// Tensors returns the member frame tensors in batch order.
func (b *Batch) Tensors() [][]float32 {
	tensors := make([][]float32, len(b.Frames))
	for i := range b.Frames {
		tensors[i] = b.Frames[i].Tensor
	}
	return tensors
}

// DetectionRaw is one frame's share of a batch output, still in model
// output space. Err is set when the batch failed inference; such frames
// count toward their item but carry no output.
type DetectionRaw struct {
	FrameMeta
	// Output is the frame's slice of the raw output tensor.
	Output []float32
	Err    error
}

// FrameResult is one frame's final detections in source pixel space.
type FrameResult struct {
	FrameMeta
	Detections []postprocess.Result
	Err        error
}

// FrameDetections pairs a frame index with its retained detections, for
// export.
type FrameDetections struct {
	Index      int
	Keyframe   bool
	Detections []postprocess.Result
}

// FileResult is the finalized outcome for one media item. Results are
// released in ascending Item.ID regardless of completion order.
type FileResult struct {
	Item   media.Item
	Status media.Status
	// Frames holds per-frame detections in frame order. Empty for failed
	// items.
	Frames []FrameDetections
	// Label is the file-level class aggregate, LabelBlank when nothing
	// was detected.
	Label string
	// Err is the failure reason for StatusFailed items.
	Err error
}

// Detections flattens every retained detection across frames, the input to
// file-level label aggregation.
func (r *FileResult) Detections() []postprocess.Result {
	var all []postprocess.Result
	for _, frame := range r.Frames {
		all = append(all, frame.Detections...)
	}
	return all
}
