// Package pipeline - Per-device inference worker pools.
package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/8ff/prettyTimer"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Runner executes one batch of frame tensors and returns one raw output
// per frame. inference.Session satisfies this; tests substitute fakes.
type Runner interface {
	Run(batch [][]float32) ([][]float32, error)
}

// Pool drives one device's workers. Each worker owns exactly one runner,
// never shared, and locks its OS thread for the native runtime. A failed
// batch marks only its own frames; the worker keeps going.
type Pool struct {
	Device  int
	Runners []Runner
	// Timing prints each worker's batch latency stats at shutdown.
	Timing bool
}

// Run starts one worker per runner and blocks until the batch stream
// closes and every worker drains. checkIn is invoked after each batch's
// results are fully emitted.
func (p *Pool) Run(ctx context.Context, batches <-chan Batch, checkIn func(), out chan<- DetectionRaw, progress *Progress) {
	var wg sync.WaitGroup
	for i, runner := range p.Runners {
		wg.Add(1)
		go func(worker int, runner Runner) {
			defer wg.Done()
			p.work(ctx, worker, runner, batches, checkIn, out, progress)
		}(i, runner)
	}
	wg.Wait()
}

func (p *Pool) work(
	ctx context.Context,
	worker int,
	runner Runner,
	batches <-chan Batch,
	checkIn func(),
	out chan<- DetectionRaw,
	progress *Progress,
) {
	// The native runtime keeps per-thread state; keep this goroutine pinned.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger := log.WithFields(log.Fields{"device": p.Device, "worker": worker})
	stats := prettyTimer.NewTimingStats()
	processed := 0

	defer func() {
		if p.Timing && processed > 0 {
			logger.Infof("Batch latency over %d batches:", processed)
			stats.PrintStats()
		}
	}()

	for batch := range batches {
		stats.Start()
		outputs, err := runner.Run(batch.Tensors())
		stats.Finish()
		processed++

		if err == nil && len(outputs) != len(batch.Frames) {
			err = errors.Errorf("runner returned %d outputs for %d frames", len(outputs), len(batch.Frames))
		}
		if err != nil {
			logger.WithField("batch", batch.Seq).WithError(err).Error("Batch inference failed")
			err = Tag(ClassRuntime, err)
		}
		if progress != nil {
			progress.BatchDone(len(batch.Frames))
		}

		for i, frame := range batch.Frames {
			raw := DetectionRaw{FrameMeta: frame.FrameMeta, Err: err}
			if err == nil {
				raw.Output = outputs[i]
			}
			select {
			case out <- raw:
			case <-ctx.Done():
				return
			}
		}

		if checkIn != nil {
			checkIn()
		}
	}
}
