package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trailsense/go-detect/media"
	"github.com/trailsense/go-detect/models"
	"github.com/trailsense/go-detect/pipeline"
)

// csvHeader is the fixed column set. Readers (including Resume) key on
// the first column, so its position is load-bearing.
var csvHeader = []string{
	"file_path", "capture_time", "frame_index",
	"class_label", "confidence", "x_min", "y_min", "x_max", "y_max",
}

// CSV writes one row per detection. Files with nothing detected, and
// failed files, emit exactly one row with the detection columns empty,
// so every scanned file is accounted for in the output.
type CSV struct {
	model models.Config
	file  *os.File
	w     *csv.Writer
}

// NewCSV opens path for export. With resume set an existing file is
// appended to instead of truncated; the header is only written when the
// file starts out empty.
func NewCSV(path string, model models.Config, resume bool) (*CSV, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, pipeline.Tag(pipeline.ClassExport, errors.Wrapf(err, "opening csv export %s", path))
	}

	c := &CSV{model: model, file: file, w: csv.NewWriter(file)}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "inspecting csv export"))
	}
	if info.Size() == 0 {
		if err := c.w.Write(csvHeader); err != nil {
			file.Close()
			return nil, pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "writing csv header"))
		}
	}
	return c, nil
}

// Append writes the result's rows.
func (c *CSV) Append(result pipeline.FileResult) error {
	captured := ""
	if result.Item.CaptureTime != nil {
		captured = result.Item.CaptureTime.Format(time.RFC3339)
	}

	if result.Status == media.StatusFailed || len(result.Detections()) == 0 {
		row := []string{result.Item.Path, captured, "", "", "", "", "", "", ""}
		if err := c.w.Write(row); err != nil {
			return pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "writing csv row"))
		}
		return nil
	}

	for _, frame := range result.Frames {
		for _, d := range frame.Detections {
			label := c.model.Label(d.Class)
			if label == "" {
				label = strconv.Itoa(d.Class)
			}
			row := []string{
				result.Item.Path,
				captured,
				strconv.Itoa(frame.Index),
				label,
				fmt.Sprintf("%.4f", d.Score),
				fmt.Sprintf("%.2f", d.Box.X1),
				fmt.Sprintf("%.2f", d.Box.Y1),
				fmt.Sprintf("%.2f", d.Box.X2),
				fmt.Sprintf("%.2f", d.Box.Y2),
			}
			if err := c.w.Write(row); err != nil {
				return pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "writing csv row"))
			}
		}
	}
	return nil
}

// Flush pushes buffered rows through to the file.
func (c *CSV) Flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "flushing csv export"))
	}
	return nil
}

// Close flushes and closes the file.
func (c *CSV) Close() error {
	if err := c.Flush(); err != nil {
		c.file.Close()
		return err
	}
	if err := c.file.Close(); err != nil {
		return pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "closing csv export"))
	}
	return nil
}
