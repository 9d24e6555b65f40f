package media

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	log "github.com/sirupsen/logrus"
)

// captureTime resolves the best-effort capture timestamp for an item. Images
// are read for EXIF DateTimeOriginal, falling back to DateTime; videos use
// the file modification time. A missing or unreadable timestamp returns nil.
func captureTime(item *Item) *time.Time {
	if item.Kind == KindVideo {
		info, err := os.Stat(item.Path)
		if err != nil {
			return nil
		}
		t := info.ModTime()
		return &t
	}
	return exifTime(item.Path)
}

func exifTime(path string) *time.Time {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// Most camera-trap JPEGs carry EXIF; PNGs and stripped files
		// do not. Either way the record just has no timestamp.
		log.WithField("path", path).Trace("no exif data")
		return nil
	}
	t, err := x.DateTime()
	if err != nil {
		return nil
	}
	return &t
}
