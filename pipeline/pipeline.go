// Package pipeline - Stage orchestration.
//
// Stages are explicit goroutine tasks joined by bounded channels; a full
// downstream channel blocks the producer, which is the sole backpressure
// mechanism. Cancellation stops the earliest stage and the channels close
// in sequence while downstream drains in-flight work.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/trailsense/go-detect/frames"
	"github.com/trailsense/go-detect/images"
	"github.com/trailsense/go-detect/media"
	"github.com/trailsense/go-detect/models"
	"github.com/trailsense/go-detect/models/postprocess"
)

// Options configures a run.
type Options struct {
	Model models.Config
	Post  postprocess.Config
	// Kernel selects the letterbox interpolation.
	Kernel images.Kernel
	// BatchSize is the dispatch capacity.
	BatchSize int
	// IdleFlush bounds how long a partial batch waits for more frames.
	IdleFlush time.Duration
	// ExtractWorkers caps concurrent decoders (images and videos share it).
	ExtractWorkers int
	// Video holds the video sampling options.
	Video frames.ExtractOptions
	// PreprocessWorkers defaults to runtime.NumCPU().
	PreprocessWorkers int
	// Timing prints per-worker batch latency stats at shutdown.
	Timing bool
}

// Run wires every stage over the scanned items and returns the finalized
// result stream plus the shared progress counters. workers maps each
// device ID to its runners, one runner per worker; runners are owned by
// the caller and must stay valid until the result channel closes.
func Run(ctx context.Context, items []media.Item, workers map[int][]Runner, opts Options) (<-chan FileResult, *Progress) {
	progress := NewProgress()
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	source := &frames.Source{
		Items:   items,
		Workers: opts.ExtractWorkers,
		Buffer:  2 * batchSize,
		Video:   opts.Video,
	}
	frameStream, statusStream := source.Run(ctx)

	preprocessor := &Preprocessor{
		Model:   opts.Model,
		Kernel:  opts.Kernel,
		Workers: opts.PreprocessWorkers,
	}
	preprocessed := preprocessor.Run(ctx, frameStream)

	counts := make(map[int]int, len(workers))
	for device, runners := range workers {
		counts[device] = len(runners)
	}
	dispatcher := NewDispatcher(batchSize, opts.IdleFlush, counts)
	go dispatcher.Run(ctx, preprocessed)

	raw := make(chan DetectionRaw, 2*batchSize)
	var pools sync.WaitGroup
	for device, runners := range workers {
		pool := &Pool{Device: device, Runners: runners, Timing: opts.Timing}
		pools.Add(1)
		go func(device int, pool *Pool) {
			defer pools.Done()
			pool.Run(ctx, dispatcher.Batches(device), func() { dispatcher.Complete(device) }, raw, progress)
		}(device, pool)
	}
	go func() {
		pools.Wait()
		close(raw)
	}()

	postprocessor := &Postprocessor{Config: opts.Post}
	frameResults := postprocessor.Run(ctx, raw)

	aggregator := &Aggregator{Model: opts.Model, Progress: progress}
	return aggregator.Run(ctx, frameResults, statusStream), progress
}
