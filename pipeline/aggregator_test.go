package pipeline

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailsense/go-detect/frames"
	"github.com/trailsense/go-detect/images"
	"github.com/trailsense/go-detect/media"
	"github.com/trailsense/go-detect/models"
	"github.com/trailsense/go-detect/models/postprocess"
)

func imageItem(id int, path string) media.Item {
	return media.Item{ID: id, Path: path, Kind: media.KindImage, Format: images.FormatJPEG}
}

func videoItem(id int, path string) media.Item {
	return media.Item{ID: id, Path: path, Kind: media.KindVideo, Format: images.FormatVideo}
}

func detection(class int, score float32) postprocess.Result {
	return postprocess.Result{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: score, Class: class}
}

func TestAggregatorReleasesInScanOrder(t *testing.T) {
	agg := &Aggregator{Model: models.MegaDetector()}
	results := make(chan FrameResult)
	statuses := make(chan frames.ItemStatus)

	out := agg.Run(context.Background(), results, statuses)

	// Item 1 finishes first; it must still come out after item 0.
	statuses <- frames.ItemStatus{Item: imageItem(1, "b.jpg"), TotalFrames: 1}
	results <- FrameResult{FrameMeta: FrameMeta{MediaID: 1, Index: 0}}
	statuses <- frames.ItemStatus{Item: imageItem(0, "a.jpg"), TotalFrames: 1}
	results <- FrameResult{FrameMeta: FrameMeta{MediaID: 0, Index: 0}}
	close(results)
	close(statuses)

	var ids []int
	for result := range out {
		ids = append(ids, result.Item.ID)
		assert.Equal(t, media.StatusDone, result.Status)
	}
	assert.Equal(t, []int{0, 1}, ids)
}

func TestAggregatorFrameOrderAndLabel(t *testing.T) {
	agg := &Aggregator{Model: models.MegaDetector()}
	results := make(chan FrameResult, 4)
	statuses := make(chan frames.ItemStatus, 1)

	// Frames arrive out of order; person in frame 2, animal in frame 0.
	results <- FrameResult{
		FrameMeta:  FrameMeta{MediaID: 0, Index: 2, Keyframe: true},
		Detections: []postprocess.Result{detection(1, 0.9)},
	}
	results <- FrameResult{
		FrameMeta:  FrameMeta{MediaID: 0, Index: 0},
		Detections: []postprocess.Result{detection(0, 0.6)},
	}
	results <- FrameResult{FrameMeta: FrameMeta{MediaID: 0, Index: 1}}
	statuses <- frames.ItemStatus{Item: videoItem(0, "clip.mp4"), TotalFrames: 3}
	close(results)
	close(statuses)

	out := agg.Run(context.Background(), results, statuses)
	result, ok := <-out
	require.True(t, ok)

	require.Len(t, result.Frames, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{result.Frames[0].Index, result.Frames[1].Index, result.Frames[2].Index})
	assert.True(t, result.Frames[2].Keyframe)
	assert.Empty(t, result.Frames[1].Detections)

	// Smallest class ID among retained detections wins: animal beats person.
	assert.Equal(t, "animal", result.Label)

	_, more := <-out
	assert.False(t, more)
}

func TestAggregatorBlankLabel(t *testing.T) {
	agg := &Aggregator{Model: models.MegaDetector()}
	results := make(chan FrameResult, 1)
	statuses := make(chan frames.ItemStatus, 1)

	results <- FrameResult{FrameMeta: FrameMeta{MediaID: 0, Index: 0}}
	statuses <- frames.ItemStatus{Item: imageItem(0, "empty.jpg"), TotalFrames: 1}
	close(results)
	close(statuses)

	out := agg.Run(context.Background(), results, statuses)
	result := <-out
	assert.Equal(t, models.LabelBlank, result.Label)
	assert.Equal(t, media.StatusDone, result.Status)
}

func TestAggregatorFailedExtractionTombstones(t *testing.T) {
	progress := NewProgress()
	agg := &Aggregator{Model: models.MegaDetector(), Progress: progress}
	results := make(chan FrameResult)
	statuses := make(chan frames.ItemStatus)

	out := agg.Run(context.Background(), results, statuses)

	// The failed status finalizes the item; the frame that was already in
	// flight arrives afterwards and must be dropped.
	statuses <- frames.ItemStatus{
		Item:        videoItem(0, "broken.mp4"),
		TotalFrames: 1,
		Err:         errors.New("ffmpeg exited with code 1"),
	}
	results <- FrameResult{FrameMeta: FrameMeta{MediaID: 0, Index: 0}}
	close(results)
	close(statuses)

	result, ok := <-out
	require.True(t, ok)
	assert.Equal(t, media.StatusFailed, result.Status)
	assert.Equal(t, ClassProcess, ClassOf(result.Err))
	assert.Equal(t, models.LabelBlank, result.Label)
	assert.Empty(t, result.Frames)

	_, more := <-out
	assert.False(t, more, "the dropped frame must not produce a second result")

	snapshot := progress.Snapshot()
	assert.Equal(t, int64(1), snapshot.FilesFailed)
	assert.Equal(t, int64(0), snapshot.FilesDone)
}

func TestAggregatorFrameErrorFailsFile(t *testing.T) {
	agg := &Aggregator{Model: models.MegaDetector()}
	results := make(chan FrameResult, 2)
	statuses := make(chan frames.ItemStatus, 1)

	results <- FrameResult{FrameMeta: FrameMeta{MediaID: 0, Index: 0}}
	results <- FrameResult{
		FrameMeta: FrameMeta{MediaID: 0, Index: 1},
		Err:       Tag(ClassRuntime, errors.New("session run failed")),
	}
	statuses <- frames.ItemStatus{Item: videoItem(0, "clip.mp4"), TotalFrames: 2}
	close(results)
	close(statuses)

	out := agg.Run(context.Background(), results, statuses)
	result := <-out
	assert.Equal(t, media.StatusFailed, result.Status)
	assert.Equal(t, "inference_runtime: session run failed", Reason(result.Err))
}

func TestAggregatorZeroFrameItem(t *testing.T) {
	agg := &Aggregator{Model: models.MegaDetector()}
	results := make(chan FrameResult)
	statuses := make(chan frames.ItemStatus, 1)

	statuses <- frames.ItemStatus{Item: imageItem(0, "a.jpg"), TotalFrames: 0}
	close(results)
	close(statuses)

	out := agg.Run(context.Background(), results, statuses)
	result := <-out
	assert.Equal(t, media.StatusDone, result.Status)
	assert.Empty(t, result.Frames)
	assert.Equal(t, models.LabelBlank, result.Label)
}

func TestClassify(t *testing.T) {
	pathErr := &os.PathError{Op: "open", Path: "gone.jpg", Err: os.ErrNotExist}

	tests := []struct {
		name string
		item media.Item
		err  error
		want Class
	}{
		{
			name: "unreadable file",
			item: imageItem(0, "gone.jpg"),
			err:  errors.Wrap(pathErr, "opening image"),
			want: ClassMediaRead,
		},
		{
			name: "undecodable image",
			item: imageItem(0, "bad.jpg"),
			err:  errors.New("invalid JPEG format"),
			want: ClassDecode,
		},
		{
			name: "decoder failure",
			item: videoItem(0, "bad.mp4"),
			err:  errors.New("ffmpeg exited with code 1"),
			want: ClassProcess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.item, tt.err))
		})
	}
}
