// Package export - Result writers.
//
// Both formats consume finalized file results in release order. Losing
// results defeats the run, so every write error is fatal and tagged
// accordingly.
package export

import (
	"github.com/trailsense/go-detect/pipeline"
)

// Writer is one output format.
type Writer interface {
	// Append records one finalized file result.
	Append(result pipeline.FileResult) error
	// Flush makes everything appended so far durable.
	Flush() error
	// Close flushes and releases the destination.
	Close() error
}

// Sink fans results out to every configured writer and flushes them all
// every Interval finalized files, so an interrupted run still leaves
// usable partial output on disk.
type Sink struct {
	Writers []Writer
	// Interval is the checkpoint period in files; 0 disables checkpoints.
	Interval int

	appended int
}

// Append records the result in every writer, checkpointing when due.
func (s *Sink) Append(result pipeline.FileResult) error {
	for _, w := range s.Writers {
		if err := w.Append(result); err != nil {
			return err
		}
	}
	s.appended++
	if s.Interval > 0 && s.appended%s.Interval == 0 {
		return s.Flush()
	}
	return nil
}

// Flush checkpoints every writer.
func (s *Sink) Flush() error {
	for _, w := range s.Writers {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer, returning the first failure.
func (s *Sink) Close() error {
	var first error
	for _, w := range s.Writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
