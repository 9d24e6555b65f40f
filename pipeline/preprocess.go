// Package pipeline - Parallel preprocessing stage.
package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/trailsense/go-detect/frames"
	"github.com/trailsense/go-detect/images"
	"github.com/trailsense/go-detect/models"
)

// Preprocessor letterboxes frames into model geometry on a pool of workers.
// Output order is unconstrained; frame identity carries the ordering.
type Preprocessor struct {
	Model models.Config
	// Kernel selects the resize interpolation.
	Kernel images.Kernel
	// Workers defaults to runtime.NumCPU().
	Workers int
}

// Run consumes frames until in closes and returns the preprocessed stream.
// The output channel closes once all workers drain.
func (p *Preprocessor) Run(ctx context.Context, in <-chan frames.Frame) <-chan PreprocessedFrame {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make(chan PreprocessedFrame, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for frame := range in {
				select {
				case out <- p.process(frame):
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (p *Preprocessor) process(frame frames.Frame) PreprocessedFrame {
	size := p.Model.InputSize
	canvas, transform := images.Letterbox(frame.Image, size, size, p.Kernel, p.Model.Normalization.Fill)

	norm := 1 / p.Model.Normalization.Scale
	var tensor []float32
	if p.Model.ChannelOrder == models.OrderHWC {
		tensor = images.ToTensorHWC(canvas, norm)
	} else {
		tensor = images.ToTensor(canvas, norm)
	}

	return PreprocessedFrame{
		FrameMeta: FrameMeta{
			MediaID:   frame.MediaID,
			Index:     frame.Index,
			Width:     frame.Width,
			Height:    frame.Height,
			Keyframe:  frame.Keyframe,
			Transform: transform,
		},
		Tensor: tensor,
	}
}
