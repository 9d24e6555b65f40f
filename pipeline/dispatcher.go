// Package pipeline - Batch accumulation and device routing.
package pipeline

import (
	"context"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultIdleFlush bounds how long a partial batch waits for more frames
// before being dispatched anyway.
const DefaultIdleFlush = 10 * time.Millisecond

// Dispatcher groups preprocessed frames into batches of a fixed capacity
// and routes each batch to the least busy device. A batch goes out when it
// fills, when the input stream ends, or when the idle timeout passes with
// no new frame. The timeout is armed on frame receive, never polled.
//
// Workers report finished batches through Complete; the per-device
// in-flight count never exceeds that device's worker count.
type Dispatcher struct {
	capacity int
	idle     time.Duration
	workers  map[int]int

	devices  []int
	batches  map[int]chan Batch
	done     chan int
	inflight map[int]int
	seq      int
}

// NewDispatcher builds a dispatcher for the given per-device worker counts.
func NewDispatcher(capacity int, idle time.Duration, workers map[int]int) *Dispatcher {
	if capacity <= 0 {
		capacity = 1
	}
	if idle <= 0 {
		idle = DefaultIdleFlush
	}

	d := &Dispatcher{
		capacity: capacity,
		idle:     idle,
		workers:  workers,
		batches:  make(map[int]chan Batch, len(workers)),
		inflight: make(map[int]int, len(workers)),
	}

	total := 0
	for device, count := range workers {
		d.devices = append(d.devices, device)
		d.batches[device] = make(chan Batch)
		total += count
	}
	sort.Ints(d.devices)

	// Sized so a worker checking in after the dispatcher exits never blocks.
	d.done = make(chan int, total)
	return d
}

// Batches returns the batch stream for one device. It closes when the
// dispatcher finishes.
func (d *Dispatcher) Batches(device int) <-chan Batch {
	return d.batches[device]
}

// Complete reports one finished batch on a device. Never blocks.
func (d *Dispatcher) Complete(device int) {
	d.done <- device
}

// Run accumulates frames until in closes, then flushes the remainder and
// closes every device's batch channel.
func (d *Dispatcher) Run(ctx context.Context, in <-chan PreprocessedFrame) {
	defer func() {
		for _, device := range d.devices {
			close(d.batches[device])
		}
	}()

	var pending []PreprocessedFrame
	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			<-timer.C
		}
		timer, timerC = nil, nil
	}

	flush := func() bool {
		if len(pending) == 0 {
			return true
		}
		ok := d.route(ctx, pending)
		pending = nil
		return ok
	}

	for {
		select {
		case frame, ok := <-in:
			if !ok {
				stopTimer()
				flush()
				return
			}
			pending = append(pending, frame)
			if len(pending) >= d.capacity {
				stopTimer()
				if !flush() {
					return
				}
				continue
			}
			// Trailing idle flush: rearm on every receive.
			if timer == nil {
				timer = time.NewTimer(d.idle)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(d.idle)
			}

		case <-timerC:
			timer, timerC = nil, nil
			if !flush() {
				return
			}

		case device := <-d.done:
			d.inflight[device]--

		case <-ctx.Done():
			stopTimer()
			return
		}
	}
}

// route hands one batch to the least busy device with a free worker,
// waiting on completions when every device is saturated. Returns false
// only on cancellation.
func (d *Dispatcher) route(ctx context.Context, batchFrames []PreprocessedFrame) bool {
	for {
		// Fold in completions so the ratios are current.
		draining := true
		for draining {
			select {
			case device := <-d.done:
				d.inflight[device]--
			default:
				draining = false
			}
		}

		device, ok := d.pick()
		if !ok {
			select {
			case device := <-d.done:
				d.inflight[device]--
			case <-ctx.Done():
				return false
			}
			continue
		}

		batch := Batch{Seq: d.seq, Device: device, Frames: batchFrames}
		select {
		case d.batches[device] <- batch:
			d.seq++
			d.inflight[device]++
			log.WithFields(log.Fields{
				"batch":  batch.Seq,
				"device": device,
				"frames": len(batchFrames),
			}).Debug("Dispatched batch")
			return true
		case <-ctx.Done():
			return false
		}
	}
}

// pick returns the device with the smallest in-flight/capacity ratio among
// devices that still have a free worker.
func (d *Dispatcher) pick() (int, bool) {
	best := -1
	var bestRatio float64
	for _, device := range d.devices {
		capacity := d.workers[device]
		used := d.inflight[device]
		if capacity <= 0 || used >= capacity {
			continue
		}
		ratio := float64(used) / float64(capacity)
		if best < 0 || ratio < bestRatio {
			best = device
			bestRatio = ratio
		}
	}
	return best, best >= 0
}
