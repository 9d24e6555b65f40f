// Package profiler - Runtime resource sampling for long runs.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sampler polls runtime memory and scheduler statistics on an interval
// and keeps the peaks. Peaks survive GC cycles, so the report at the
// end of a run reflects the worst moment rather than the last one.
type Sampler struct {
	// Interval between samples. Zero means one second.
	Interval time.Duration

	mu         sync.Mutex
	started    time.Time
	samples    int
	goroutines int
	heap       uint64
	sys        uint64
	pauseTotal time.Duration
	gcCycles   uint32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Stats is a point-in-time copy of the tracked peaks.
type Stats struct {
	Samples        int
	PeakGoroutines int
	PeakHeap       uint64
	PeakSys        uint64
	GCCycles       uint32
	GCPauseTotal   time.Duration
}

// Start launches the sampling loop. Starting a running sampler is a
// no-op.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if s.Interval <= 0 {
		s.Interval = time.Second
	}
	s.started = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop ends sampling, takes a final reading so short runs still report
// something, and logs the peaks. Stopping a stopped sampler is a no-op.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.sample()

	stats := s.Snapshot()
	log.WithFields(log.Fields{
		"samples":         stats.Samples,
		"peak_goroutines": stats.PeakGoroutines,
		"peak_heap":       formatBytes(stats.PeakHeap),
		"peak_sys":        formatBytes(stats.PeakSys),
		"gc_cycles":       stats.GCCycles,
		"gc_pause_total":  stats.GCPauseTotal.Round(time.Millisecond).String(),
		"elapsed":         time.Since(s.started).Round(time.Millisecond).String(),
	}).Info("Runtime profile")
}

// Snapshot copies the tracked peaks.
func (s *Sampler) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Samples:        s.samples,
		PeakGoroutines: s.goroutines,
		PeakHeap:       s.heap,
		PeakSys:        s.sys,
		GCCycles:       s.gcCycles,
		GCPauseTotal:   s.pauseTotal,
	}
}

func (s *Sampler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples++
	if n := runtime.NumGoroutine(); n > s.goroutines {
		s.goroutines = n
	}
	if m.HeapAlloc > s.heap {
		s.heap = m.HeapAlloc
	}
	if m.Sys > s.sys {
		s.sys = m.Sys
	}
	// Cumulative runtime counters, latest reading wins.
	s.pauseTotal = time.Duration(m.PauseTotalNs)
	s.gcCycles = m.NumGC
}

// formatBytes renders byte counts in human-readable form.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
