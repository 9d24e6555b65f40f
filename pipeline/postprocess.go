// Package pipeline - Postprocessing stage.
package pipeline

import (
	"context"
	"sync"

	"github.com/trailsense/go-detect/models/postprocess"
)

// Decode and suppression stay far behind inference at this width.
const postprocessWorkers = 2

// Postprocessor turns raw model outputs into source-space detections using
// the transform each frame carried through the pipeline.
type Postprocessor struct {
	Config postprocess.Config
}

// Run consumes raw detections until in closes. Frames that already failed
// pass straight through; a decode failure fails only its own frame.
func (p *Postprocessor) Run(ctx context.Context, in <-chan DetectionRaw) <-chan FrameResult {
	out := make(chan FrameResult, postprocessWorkers)

	var wg sync.WaitGroup
	for i := 0; i < postprocessWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range in {
				select {
				case out <- p.process(raw):
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

func (p *Postprocessor) process(raw DetectionRaw) FrameResult {
	result := FrameResult{FrameMeta: raw.FrameMeta, Err: raw.Err}
	if raw.Err != nil {
		return result
	}

	detections, err := postprocess.Process(raw.Output, raw.Transform, raw.Width, raw.Height, &p.Config)
	if err != nil {
		result.Err = Tag(ClassRuntime, err)
		return result
	}
	result.Detections = detections
	return result
}
