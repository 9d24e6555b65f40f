// Package pipeline - Run progress accounting.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Progress aggregates run counters across stages. All methods are safe for
// concurrent use.
type Progress struct {
	filesDone   atomic.Int64
	filesFailed atomic.Int64
	frames      atomic.Int64
	batches     atomic.Int64
	started     time.Time
}

// ProgressSnapshot is a point-in-time copy of the counters.
type ProgressSnapshot struct {
	FilesDone   int64
	FilesFailed int64
	Frames      int64
	Batches     int64
	Elapsed     time.Duration
}

// NewProgress starts the run clock.
func NewProgress() *Progress {
	return &Progress{started: time.Now()}
}

// BatchDone records one completed batch carrying n frames.
func (p *Progress) BatchDone(n int) {
	p.batches.Add(1)
	p.frames.Add(int64(n))
}

// FileDone records one finalized file.
func (p *Progress) FileDone(failed bool) {
	if failed {
		p.filesFailed.Add(1)
		return
	}
	p.filesDone.Add(1)
}

// Snapshot copies the counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		FilesDone:   p.filesDone.Load(),
		FilesFailed: p.filesFailed.Load(),
		Frames:      p.frames.Load(),
		Batches:     p.batches.Load(),
		Elapsed:     time.Since(p.started),
	}
}

// Report logs the counters every interval until ctx is canceled.
func (p *Progress) Report(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := p.Snapshot()
			log.WithFields(log.Fields{
				"files_done":   snapshot.FilesDone,
				"files_failed": snapshot.FilesFailed,
				"frames":       snapshot.Frames,
				"batches":      snapshot.Batches,
				"elapsed":      snapshot.Elapsed.Round(time.Second).String(),
			}).Info("Progress")
		}
	}
}
