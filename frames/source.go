package frames

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/trailsense/go-detect/media"
)

// Source drives frame extraction for a batch of scanned items. Images and
// videos share one worker pool whose size caps concurrent decoders; a full
// output channel blocks the workers, which is the stage's backpressure.
type Source struct {
	Items   []media.Item
	Workers int
	Buffer  int
	Video   ExtractOptions
}

// Run starts the extraction workers and returns the frame stream plus the
// per-item status stream. Both channels close once every item has been
// handled or the context is canceled. A failed item never stops the others.
func (s *Source) Run(ctx context.Context) (<-chan Frame, <-chan ItemStatus) {
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	out := make(chan Frame, s.Buffer)
	status := make(chan ItemStatus, workers)
	queue := make(chan media.Item)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range queue {
				s.extract(ctx, item, out, status)
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, item := range s.Items {
			select {
			case queue <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
		close(status)
	}()

	return out, status
}

func (s *Source) extract(ctx context.Context, item media.Item, out chan<- Frame, status chan<- ItemStatus) {
	var (
		total int
		err   error
	)
	switch item.Kind {
	case media.KindImage:
		total, err = s.extractImage(ctx, item, out)
	default:
		total, err = s.extractVideo(ctx, item, out)
	}

	if err != nil && ctx.Err() == nil {
		log.WithError(err).WithField("path", item.Path).Warn("extraction failed")
	}
	select {
	case status <- ItemStatus{Item: item, TotalFrames: total, Err: err}:
	case <-ctx.Done():
	}
}

func (s *Source) extractImage(ctx context.Context, item media.Item, out chan<- Frame) (int, error) {
	img, err := DecodeImage(item.Path, item.Format)
	if err != nil {
		return 0, err
	}
	b := img.Bounds()
	frame := Frame{
		MediaID: item.ID,
		Index:   0,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Image:   img,
	}
	select {
	case out <- frame:
		return 1, nil
	case <-ctx.Done():
		return 0, errors.Wrap(ctx.Err(), "emitting frame")
	}
}

func (s *Source) extractVideo(ctx context.Context, item media.Item, out chan<- Frame) (int, error) {
	return Extract(ctx, item.Path, s.Video, func(index int, img *image.RGBA) error {
		b := img.Bounds()
		frame := Frame{
			MediaID:  item.ID,
			Index:    index,
			Width:    b.Dx(),
			Height:   b.Dy(),
			Image:    img,
			Keyframe: s.Video.IFrameOnly,
		}
		select {
		case out <- frame:
			return nil
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "emitting frame")
		}
	})
}
