// Package pipeline - Scan-order result aggregation.
package pipeline

import (
	"context"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/trailsense/go-detect/frames"
	"github.com/trailsense/go-detect/media"
	"github.com/trailsense/go-detect/models"
)

// Aggregator reassembles per-frame results into per-file results and
// releases them strictly in ascending scan-order ID, whatever order the
// devices finish in.
//
// An item finalizes when its status has arrived and every expected frame
// is in, or immediately when the status reports a failed extraction. Late
// frames of finalized items are dropped.
type Aggregator struct {
	Model    models.Config
	Progress *Progress
}

type itemSlot struct {
	item   media.Item
	frames map[int]FrameResult
	// expected is the item's total frame count, -1 until its status lands.
	expected int
	err      error
}

// Run consumes frame results and item statuses until both streams close.
// The returned channel closes once everything finalized has been released.
func (a *Aggregator) Run(
	ctx context.Context,
	results <-chan FrameResult,
	statuses <-chan frames.ItemStatus,
) <-chan FileResult {
	out := make(chan FileResult, 4)
	go func() {
		defer close(out)
		a.run(ctx, results, statuses, out)
	}()
	return out
}

func (a *Aggregator) run(
	ctx context.Context,
	results <-chan FrameResult,
	statuses <-chan frames.ItemStatus,
	out chan<- FileResult,
) {
	slots := map[int]*itemSlot{}
	finalized := map[int]bool{}
	ready := map[int]FileResult{}
	next := 0

	touch := func(id int) *itemSlot {
		slot := slots[id]
		if slot == nil {
			slot = &itemSlot{expected: -1, frames: map[int]FrameResult{}}
			slots[id] = slot
		}
		return slot
	}

	// release emits ready results in scan order until it hits a gap.
	release := func() bool {
		for {
			result, ok := ready[next]
			if !ok {
				return true
			}
			select {
			case out <- result:
			case <-ctx.Done():
				return false
			}
			delete(ready, next)
			next++
		}
	}

	finalize := func(id int) bool {
		slot := slots[id]
		delete(slots, id)
		finalized[id] = true
		ready[id] = a.finish(slot)
		return release()
	}

	for results != nil || statuses != nil {
		select {
		case result, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if finalized[result.MediaID] {
				continue
			}
			slot := touch(result.MediaID)
			slot.frames[result.Index] = result
			if result.Err != nil && slot.err == nil {
				slot.err = result.Err
			}
			if slot.expected >= 0 && len(slot.frames) >= slot.expected {
				if !finalize(result.MediaID) {
					return
				}
			}

		case status, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			if finalized[status.Item.ID] {
				continue
			}
			slot := touch(status.Item.ID)
			slot.item = status.Item
			if status.Err != nil {
				// Failed extraction finalizes now; in-flight frames of
				// this item will be dropped on arrival.
				if slot.err == nil {
					slot.err = Tag(classify(status.Item, status.Err), status.Err)
				}
				if !finalize(status.Item.ID) {
					return
				}
				continue
			}
			slot.expected = status.TotalFrames
			if len(slot.frames) >= slot.expected {
				if !finalize(status.Item.ID) {
					return
				}
			}

		case <-ctx.Done():
			return
		}
	}

	// A canceled run can leave gaps in the ID sequence; release whatever
	// finalized, still in ascending order.
	remaining := make([]int, 0, len(ready))
	for id := range ready {
		remaining = append(remaining, id)
	}
	sort.Ints(remaining)
	for _, id := range remaining {
		select {
		case out <- ready[id]:
		case <-ctx.Done():
			return
		}
	}
}

// finish builds the FileResult for a complete or failed slot.
func (a *Aggregator) finish(slot *itemSlot) FileResult {
	result := FileResult{Item: slot.item, Err: slot.err}

	if slot.err != nil {
		result.Status = media.StatusFailed
		result.Label = models.LabelBlank
	} else {
		result.Status = media.StatusDone
		indices := make([]int, 0, len(slot.frames))
		for index := range slot.frames {
			indices = append(indices, index)
		}
		sort.Ints(indices)
		for _, index := range indices {
			frame := slot.frames[index]
			result.Frames = append(result.Frames, FrameDetections{
				Index:      index,
				Keyframe:   frame.Keyframe,
				Detections: frame.Detections,
			})
		}
		result.Label = a.Model.FileLabel(result.Detections())
	}

	if a.Progress != nil {
		a.Progress.FileDone(result.Status == media.StatusFailed)
	}
	return result
}

// classify maps an extraction failure to its taxonomy class from the item
// kind and the root cause.
func classify(item media.Item, err error) Class {
	cause := errors.Cause(err)
	if _, ok := cause.(*os.PathError); ok {
		return ClassMediaRead
	}
	if item.Kind == media.KindVideo {
		return ClassProcess
	}
	return ClassDecode
}
